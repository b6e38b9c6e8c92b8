package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/models"
)

var db *gorm.DB

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.Role{},
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.UploadedFile{},
	}
}

// InitDatabase connects using configuration values, migrates the schema and seeds roles.
func InitDatabase() *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	dialector, err := Dialector(cfg)
	if err != nil {
		log.Fatalf("database config: %v", err)
	}

	// Configure GORM logger: derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gLogger})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	// Ping at startup so network/auth problems surface before the first query
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	if err := Migrate(conn); err != nil {
		log.Fatalf("auto migration failed: %v", err)
	}
	if err := SeedRoles(conn, cfg.AdminEmails); err != nil {
		log.Printf("seeding roles failed: %v", err)
	}

	db = conn
	return db
}

// Dialector picks the gorm driver for cfg.DBDriver.
func Dialector(cfg AppConfig) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql", "":
		dsn := cfg.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := cfg.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
				cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := cfg.DatabaseURI
		if dsn == "" {
			dsn = cfg.DBName + ".db"
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// Migrate creates or extends all tables.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// SeedRoles makes sure the Admin role exists and grants it to the given emails.
func SeedRoles(conn *gorm.DB, adminEmails []string) error {
	role := models.Role{Name: models.RoleAdmin}
	if err := conn.Where(models.Role{Name: models.RoleAdmin}).FirstOrCreate(&role).Error; err != nil {
		return err
	}
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		var user models.User
		if err := conn.Where("email = ?", email).First(&user).Error; err != nil {
			continue // granted at registration instead
		}
		if err := conn.Model(&user).Association("Roles").Append(&role); err != nil {
			return err
		}
	}
	return nil
}

// IsAdminEmail reports whether email is listed in AdminEmails.
func IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range Get().AdminEmails {
		if strings.ToLower(strings.TrimSpace(e)) == email {
			return true
		}
	}
	return false
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}

// SetDB installs an already opened connection, e.g. an in-memory sqlite database in tests.
func SetDB(conn *gorm.DB) { db = conn }
