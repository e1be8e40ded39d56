package configs

import (
	"testing"

	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestAppLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "KAFKA_BROKER", "ADMIN_TOKEN", "SUBMIT_RATE_PER_MINUTE", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := AppLoad()
	assert.Equal(t, repository.DriverSQLite, cfg.Database.Driver)
	assert.Empty(t, cfg.KafkaEvent.Broker)
	assert.Empty(t, cfg.AdminToken)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestAppLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "queue")
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("SUBMIT_BURST", "not-a-number")
	t.Setenv("DEBUG", "true")

	cfg := AppLoad()
	assert.Equal(t, repository.DriverPostgres, cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN(), "host=db")
	assert.Contains(t, cfg.Database.DSN(), "dbname=queue")
	assert.Equal(t, 50, cfg.Ingester.BatchSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.True(t, cfg.Debug)
}

func TestSQLiteDSN(t *testing.T) {
	cfg := DatabaseConfig{Driver: repository.DriverSQLite, SQLitePath: "/tmp/q.db"}
	assert.Equal(t, "/tmp/q.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DSN())
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}
