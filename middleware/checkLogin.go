package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.JSON(http.StatusUnauthorized, gin.H{
		"message": message,
	})
	c.Abort()
}

// 檢查是否有登入且帳號已啟用，沒有則中止請求
func CheckLoginMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := CurrentUser(c)
		if !exists {
			unauthorized(c, "無法驗證憑證")
			return
		}
		if _, err := sessions.RequireActive(user); err != nil {
			unauthorized(c, "使用者帳戶未啟用")
			return
		}

		c.Next()
	}
}
