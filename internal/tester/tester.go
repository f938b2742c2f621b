package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/mediakit/internal/model"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB opens a migrated sqlite database that lives for the duration of the test.
func DB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mediakit.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// sqlite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err = model.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// Redis returns a client for MEDIAKIT_TEST_REDIS or skips the test when the
// variable is unset.
func Redis(t testing.TB) *redis.Client {
	t.Helper()

	addr := os.Getenv("MEDIAKIT_TEST_REDIS")
	if addr == "" {
		t.Skip("MEDIAKIT_TEST_REDIS not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Protocol: 2,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
