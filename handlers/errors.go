package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"member/services"
)

// 將服務層錯誤轉為HTTP回應
func respondError(c *gin.Context, logger *slog.Logger, err error, message string) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{
			"message": message,
			"error":   "舊密碼不正確",
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{
			"message": message,
			"error":   "無法驗證憑證",
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"message": message,
			"error":   "資料未找到或不屬於此使用者",
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"message": message,
			"error":   "使用者名稱、信箱或電話已被使用",
		})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"message": message,
			"error":   "不合法的請求資料",
		})
	default:
		logger.ErrorContext(c.Request.Context(), message, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": message,
			"error":   "伺服器錯誤",
		})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": "綁定請求資料錯誤",
		"error":   err.Error(),
	})
}
