package database

import (
	"fmt"
	"log"

	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:            false,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.Conversation{},
		&models.Message{},
		&models.ChatReport{},
	)
	if err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	fmt.Println("✅ Database migration successful")
}

// SeedAdmin creates the bootstrap admin profile and its user_roles row.
// The role row is what grants dashboard access; roles are never carried in
// JWT claims.
func SeedAdmin() {
	adminEmail := config.Config("ADMIN_EMAIL")
	adminPassword := config.Config("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️ ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return
	}

	var admin models.User
	err := DB.Where("email = ?", adminEmail).First(&admin).Error
	if err == nil {
		log.Println("Admin user already exists.")
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("🔥 Failed to check for admin user: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("🔥 Failed to hash admin password: %v", err)
	}

	admin = models.User{
		Username: config.Config("ADMIN_USERNAME"),
		Email:    adminEmail,
		Password: string(hashedPassword),
	}
	if admin.Username == "" {
		admin.Username = "admin"
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
	}

	role := models.UserRole{UserID: admin.ID, Role: models.RoleAdmin}
	if err := DB.Create(&role).Error; err != nil {
		log.Fatalf("🔥 Failed to seed admin role: %v", err)
	}

	log.Println("✅ Admin user seeded successfully")
}
