package models

import (
	"fmt"

	"kaienv/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.SQLite.Path)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.MySQL.Username,
			cfg.Database.MySQL.Password,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.Database,
			cfg.Database.MySQL.Charset,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&Account{},
		&Profile{},
		&Session{},
		&VM{},
		&Service{},
		&ServiceType{},
		&VMGroup{},
		&AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	DB = db
	return db, nil
}

// SeedServiceTypes inserts the built-in service type catalog when the
// table is empty.
func SeedServiceTypes(db *gorm.DB) error {
	var count int64
	if err := db.Model(&ServiceType{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	types := []ServiceType{
		{
			Name: "Oracle Database",
			PropertyFields: PropertyFieldList{
				{Name: "dbType", Label: "Database Type", Type: "text"},
				{Name: "version", Label: "Version", Type: "text"},
				{Name: "port", Label: "Port", Type: "number"},
				{Name: "sid", Label: "SID", Type: "text"},
				{Name: "dataFilePath", Label: "Data File Path", Type: "text"},
				{Name: "sysPassword", Label: "SYS Password", Type: "password"},
			},
		},
		{
			Name: "PostgreSQL",
			PropertyFields: PropertyFieldList{
				{Name: "version", Label: "Version", Type: "text"},
				{Name: "port", Label: "Port", Type: "number"},
				{Name: "database", Label: "Database", Type: "text"},
				{Name: "dataFilePath", Label: "Data Directory", Type: "text"},
				{Name: "superuserPassword", Label: "Superuser Password", Type: "password"},
			},
		},
		{
			Name: "IFS Cloud",
			PropertyFields: PropertyFieldList{
				{Name: "version", Label: "Version", Type: "text"},
				{Name: "port", Label: "Port", Type: "number"},
				{Name: "deploymentPath", Label: "Deployment Path", Type: "text"},
				{Name: "jvmMemory", Label: "JVM Memory", Type: "text"},
			},
		},
		{
			Name: "Web Server",
			PropertyFields: PropertyFieldList{
				{Name: "type", Label: "Server Type", Type: "text"},
				{Name: "version", Label: "Version", Type: "text"},
				{Name: "port", Label: "Port", Type: "number"},
				{Name: "configPath", Label: "Config Path", Type: "text"},
			},
		},
		{
			Name: "KaiMig",
			PropertyFields: PropertyFieldList{
				{Name: "version", Label: "Version", Type: "text"},
				{Name: "configPath", Label: "Config Path", Type: "text"},
				{Name: "logPath", Label: "Log Path", Type: "text"},
				{Name: "scheduledJobs", Label: "Scheduled Jobs", Type: "array"},
			},
		},
	}

	return db.Create(&types).Error
}
