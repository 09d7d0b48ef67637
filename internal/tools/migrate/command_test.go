package migrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:migrate_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPlanStatusUp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	details, err := plan(ctx, db)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if details[0] != "would create table users" {
		t.Fatalf("unexpected plan: %v", details)
	}

	if _, err := up(ctx, db); err != nil {
		t.Fatalf("up: %v", err)
	}

	details, err = status(ctx, db)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := []string{"database reachable", "users: present", "products: present", "orders: present"}
	if len(details) != len(want) {
		t.Fatalf("unexpected status: %v", details)
	}
	for i := range want {
		if details[i] != want[i] {
			t.Fatalf("status[%d] = %q, want %q", i, details[i], want[i])
		}
	}
}
