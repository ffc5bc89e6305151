package database

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// SetupDatabase opens the configured database and migrates the schema.
// When DB_HOST is set a MySQL server is used; otherwise the service falls
// back to an embedded SQLite file (local development, single-node deploys).
// All callers see the same *gorm.DB regardless of driver.
func SetupDatabase() {
	var err error

	if host := env.GetEnv("DB_HOST", ""); host != "" {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			env.GetEnv("DB_USER", "kampai"),
			env.GetEnv("DB_PASSWORD", ""),
			host,
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", "kampai"),
		)

		for i := 0; i < maxRetries; i++ {
			DB, err = gorm.Open(mysql.New(mysql.Config{
				DSN:                      dsn,
				DefaultStringSize:        256,
				DisableDatetimePrecision: true,
				DontSupportRenameIndex:   true,
				DontSupportRenameColumn:  true,
			}), &gorm.Config{TranslateError: true})
			if err == nil {
				break
			}

			log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
			}
		}
	} else {
		path := env.GetEnv("DB_PATH", "kampai.db")
		DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	}

	if err != nil {
		panic(err)
	}

	migrateModels()
}

func migrateModels() {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.UsageCounter{},
		&models.Generation{},
		&models.Payment{},
		&models.Announcement{},
		&models.AdminLog{},
	); err != nil {
		panic(err)
	}
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared handle; used by tests.
func SetDB(db *gorm.DB) {
	DB = db
}
