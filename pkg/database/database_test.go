package database

import (
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

type testItem struct {
	ID        int64 `gorm:"primaryKey"`
	Name      string
	CreatedAt time.Time
}

func TestInitDB_SQLite(t *testing.T) {
	db, err := InitDB(Options{Driver: "sqlite", DSN: ":memory:", LogLevel: logger.Silent}, nil, &testItem{})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := db.Create(&testItem{Name: "a"}).Error; err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var count int64
	db.Model(&testItem{}).Count(&count)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestInitDB_UnknownDriver(t *testing.T) {
	if _, err := InitDB(Options{Driver: "oracle"}, nil); err == nil {
		t.Error("InitDB() with unknown driver should fail")
	}
}
