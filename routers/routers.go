package routers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"member/handlers"
	"member/middleware"
	"member/services"
)

type Dependencies struct {
	Users     *services.UserService
	Addresses *services.AddressService
	Sessions  *services.SessionService
	Logger    *slog.Logger
}

func SetupRouters(deps Dependencies) (*gin.Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	//建立Gin路由器
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.RequestLogMiddleware(logger),
		middleware.CORSMiddleware(),
	)
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	//健康檢查
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "電子商務會員系統 API",
		})
	})

	////無須登入，使用中間件解析Token
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.Sessions, logger))
	{
		//註冊帳號
		api.POST("/register", func(context *gin.Context) {
			handlers.RegisterHandler(context, deps.Users, logger)
		})
		//登入帳號
		api.POST("/login", func(context *gin.Context) {
			handlers.LoginHandler(context, deps.Sessions, deps.Users, logger)
		})

		////需要登入，使用中間件檢查是否登入及帳號是否啟用
		loginRequired := api.Group("/users/me")
		loginRequired.Use(middleware.CheckLoginMiddleware(deps.Sessions))
		{
			//查詢使用者資料
			loginRequired.GET("", func(context *gin.Context) {
				handlers.GetMeHandler(context, deps.Addresses, logger)
			})
			//修改使用者資料
			loginRequired.PUT("", func(context *gin.Context) {
				handlers.UpdateMeHandler(context, deps.Users, deps.Sessions, logger)
			})
			//刪除帳戶
			loginRequired.DELETE("", func(context *gin.Context) {
				handlers.DeleteMeHandler(context, deps.Users, logger)
			})
			//變更密碼
			loginRequired.PUT("/password", func(context *gin.Context) {
				handlers.ChangePasswordHandler(context, deps.Users, logger)
			})
			//查詢地址列表
			loginRequired.GET("/addresses", func(context *gin.Context) {
				handlers.GetAddressListHandler(context, deps.Addresses, logger)
			})
			//新增地址
			loginRequired.POST("/addresses", func(context *gin.Context) {
				handlers.CreateAddressHandler(context, deps.Addresses, logger)
			})
			//查詢地址詳細資料
			loginRequired.GET("/addresses/:addressID", func(context *gin.Context) {
				handlers.GetAddressHandler(context, deps.Addresses, logger)
			})
			//修改地址
			loginRequired.PUT("/addresses/:addressID", func(context *gin.Context) {
				handlers.UpdateAddressHandler(context, deps.Addresses, logger)
			})
			//刪除地址
			loginRequired.DELETE("/addresses/:addressID", func(context *gin.Context) {
				handlers.DeleteAddressHandler(context, deps.Addresses, logger)
			})
		}
	}

	return router, nil
}
