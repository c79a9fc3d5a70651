package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
	"gorm.io/gorm"
)

// setupTestDB points the package-wide connection at a fresh in-memory
// database. One open connection keeps sqlite happy under the parallel
// enrichment fetches.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.Conversation{},
		&models.Message{},
		&models.ChatReport{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	database.DB = db
	cache.Shared = cache.New(time.Minute)
	// in-process change feed so mutations invalidate the fresh cache
	if err := realtime.Init("", cache.Shared); err != nil {
		t.Fatalf("init change feed: %v", err)
	}
}

func createUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func strPtr(s string) *string {
	return &s
}
