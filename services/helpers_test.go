package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"member/config"
	"member/models"
	"member/password"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.SetupDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "member.db"),
	}, "error")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUserService(db *gorm.DB, cache AddressCache) *UserService {
	return NewUserService(db, password.NewHasher(bcrypt.MinCost), cache, newTestLogger())
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func mustRegister(t *testing.T, users *UserService, username string) *models.User {
	t.Helper()
	user, err := users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Test1234",
	})
	require.NoError(t, err)
	return user
}

func countUsers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	return n
}

func findUser(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
