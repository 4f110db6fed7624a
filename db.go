package main

import (
	"log"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenDB connects to the hosted Postgres database when DATABASE_URL is set
// and falls back to the local SQLite file when it is unset or unreachable.
func OpenDB(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseURL != "" {
		db, err := openPostgres(cfg.DatabaseURL)
		if err == nil {
			log.Println("Connected to hosted Postgres database")
			return db, nil
		}
		log.Printf("Hosted database unavailable, falling back to %s: %v", cfg.SQLitePath, err)
	}
	return OpenSQLite(cfg.SQLitePath)
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "postgres handle")
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Question{},
		&Option{},
		&AnswerField{},
		&Exam{},
		&ExamQuestion{},
		&Answer{},
	)
}

func IsQuestionTableEmpty(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&Question{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// KnownCategories lists every category in the question bank, sorted.
func KnownCategories(db *gorm.DB) ([]string, error) {
	var cats []string
	if err := db.Model(&Question{}).Distinct("category").Order("category").Pluck("category", &cats).Error; err != nil {
		return nil, errors.Wrap(err, "load categories")
	}
	return cats, nil
}
