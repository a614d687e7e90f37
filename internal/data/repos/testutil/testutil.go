package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	datadb "github.com/yungbote/concierge-backend/internal/data/db"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// DSNEnv names the variable that opts repo tests into a live Postgres with
// the vector extension installed.
const DSNEnv = "TEST_POSTGRES_DSN"

var shared = struct {
	once sync.Once
	db   *gorm.DB
	err  error
}{}

// Logger returns a silent logger; repo tests assert on rows, not log lines.
func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens and migrates the shared test database once per package run and
// skips the test when DSNEnv is unset.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := strings.TrimSpace(os.Getenv(DSNEnv))
	if dsn == "" {
		tb.Skipf("set %s to run repo integration tests", DSNEnv)
	}
	shared.once.Do(func() {
		shared.db, shared.err = open(dsn)
	})
	if shared.err != nil {
		tb.Fatalf("test postgres: %v", shared.err)
	}
	return shared.db
}

func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Discard,
	})
	if err != nil {
		return nil, err
	}
	for _, step := range []func(*gorm.DB) error{
		datadb.EnsureExtensions,
		datadb.AutoMigrateAll,
		datadb.EnsureSearchIndexes,
	} {
		if err := step(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Tx opens a transaction that is rolled back when the test ends, so tests
// sharing the database never see each other's rows.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if err := tx.Error; err != nil {
		tb.Fatalf("begin tx: %v", err)
	}
	tb.Cleanup(func() { tx.Rollback() })
	return tx
}
