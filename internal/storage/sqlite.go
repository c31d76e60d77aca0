package storage

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB 開啟本機 sqlite 檔案，用於開發與測試
//
// sqlite 同時只允許一個寫入者，連線池限制為單一連線，
// 讓並發的寫入在 Go 端排隊而不是回傳 "database is locked"。
// 交易一律以 BEGIN IMMEDIATE 開始，多個程序共用同一個檔案時寫入交易會互相等待。
func NewSQLiteDB(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &Database{DB: db}, nil
}

// Open 依 driver 名稱開啟資料庫
func Open(driver, dsnOrPath string) (*Database, error) {
	switch driver {
	case "postgres":
		return NewPostgresDB(dsnOrPath)
	case "sqlite":
		return NewSQLiteDB(dsnOrPath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
