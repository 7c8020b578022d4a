package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	gormLogger "gorm.io/gorm/logger"
)

// 解析日誌等級，無法辨識時使用 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// 建立輸出至 stdout 的 JSON logger
func NewDefault(level string) *slog.Logger {
	return New(os.Stdout, level, "json")
}

func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// 非 debug 等級時關閉 GORM SQL 日誌
func GormLogMode(level string) gormLogger.Interface {
	if ParseLevel(level) == slog.LevelDebug {
		return gormLogger.Default.LogMode(gormLogger.Info)
	}
	return gormLogger.Default.LogMode(gormLogger.Silent)
}
