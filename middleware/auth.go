package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"member/models"
	"member/services"
)

const (
	userKey   = "User"
	userIDKey = "UserID"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
	RequireActive(user *models.User) (*models.User, error)
}

// 取出 Bearer Token，格式不符時回傳空字串
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// 解析 Token 並將使用者存入 Context，Token 不合法時不中止請求
func AuthMiddleware(sessions SessionResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		user, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				logger.ErrorContext(c.Request.Context(), "resolve session failed", slog.String("error", err.Error()))
				c.JSON(http.StatusInternalServerError, gin.H{
					"message": "無法驗證使用者",
				})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// 取得目前登入的使用者
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
