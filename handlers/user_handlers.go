package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"member/middleware"
	"member/services"
)

const tokenType = "bearer"

// 註冊使用者帳戶
func RegisterHandler(c *gin.Context, users *services.UserService, logger *slog.Logger) {
	var req struct {
		Username string  `json:"username" binding:"required,min=3,max=50"`
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required,min=6"`
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := users.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(c, logger, err, "註冊失敗")
		return
	}

	//成功註冊
	c.JSON(http.StatusCreated, gin.H{
		"message": "使用者已成功註冊",
		"user":    user,
	})
}

func LoginHandler(c *gin.Context, sessions *services.SessionService, users *services.UserService, logger *slog.Logger) {
	//從請求擷取帳號和密碼
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, _, err := sessions.Login(c.Request.Context(), users, req.Username, req.Password)
	if err != nil {
		respondError(c, logger, err, "使用者名稱或密碼不正確")
		return
	}

	//成功登入 回傳Token
	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{
		"message":      "成功登入",
		"access_token": token,
		"token_type":   tokenType,
		"expires_in":   int64(sessions.TokenTTL().Seconds()),
	})
}

// 查詢使用者資料，包含地址
func GetMeHandler(c *gin.Context, addresses *services.AddressService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	list, err := addresses.ListForUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, logger, err, "查詢使用者資料失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "成功查詢使用者資料",
		"user":      user,
		"addresses": list,
	})
}

// 變更使用者資料(非密碼)，使用者名稱變更時回傳新的Token
func UpdateMeHandler(c *gin.Context, users *services.UserService, sessions *services.SessionService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	var req struct {
		Username *string `json:"username" binding:"omitempty,min=3,max=50"`
		Email    *string `json:"email" binding:"omitempty,email"`
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := users.UpdateProfile(c.Request.Context(), user, services.ProfilePatch{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(c, logger, err, "修改使用者資料失敗")
		return
	}

	resp := gin.H{
		"message": "成功修改使用者資料",
		"user":    updated,
	}
	if updated.Username != user.Username {
		token, err := sessions.IssueFor(updated)
		if err != nil {
			respondError(c, logger, err, "生成Token錯誤")
			return
		}
		c.Header("Authorization", "Bearer "+token)
		resp["access_token"] = token
		resp["token_type"] = tokenType
		resp["expires_in"] = int64(sessions.TokenTTL().Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// 變更密碼
func ChangePasswordHandler(c *gin.Context, users *services.UserService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := users.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, logger, err, "變更密碼失敗")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "成功變更密碼",
		"user":    user,
	})
}

// 刪除帳戶及其所有地址
func DeleteMeHandler(c *gin.Context, users *services.UserService, logger *slog.Logger) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, logger, services.ErrUnauthorized, "無法取得使用者")
		return
	}

	if err := users.DeleteAccount(c.Request.Context(), user); err != nil {
		respondError(c, logger, err, "刪除帳戶失敗")
		return
	}

	c.Status(http.StatusNoContent)
}
