package spend

import (
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Uuq114/JanusBedrock/internal/metrics"
	"github.com/Uuq114/JanusBedrock/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func haiku() *models.ModelConfig {
	catalog := models.DefaultCatalog()
	return catalog.CurrentModel()
}

func TestCost(t *testing.T) {
	cost := Cost(haiku(), 1000, 1000)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.0015")), "got %s", cost)

	cost = Cost(haiku(), 5, 3)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.0000050")), "got %s", cost)

	assert.True(t, Cost(nil, 1000, 1000).IsZero())
}

func TestNewUsageRecord(t *testing.T) {
	record := NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3)

	assert.Equal(t, "req-1", record.RequestId)
	assert.Equal(t, "claude-3-haiku", record.Model)
	assert.Equal(t, "us-east-1", record.Endpoint)
	assert.Equal(t, 8, record.TotalTokens)
	assert.Equal(t, 5, record.InputTokens)
	assert.Equal(t, 3, record.OutputTokens)
	assert.False(t, record.CreateTime.IsZero())
}

func TestInsertBatchUsageRecord(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1).AddRow(2))

	records := []UsageRecord{
		NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3),
		NewUsageRecord("req-2", haiku(), "us-east-1", 10, 20),
	}
	require.NoError(t, InsertBatchUsageRecord(db, records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchUsageRecordEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	require.NoError(t, InsertBatchUsageRecord(db, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchUsageRecordError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).WillReturnError(errors.New("connection reset"))

	err := InsertBatchUsageRecord(db, []UsageRecord{NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3)})
	assert.Error(t, err)
}

func TestRecorderFlushesFullBatch(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1).AddRow(2))

	r := NewRecorder(db, Options{BatchSize: 2, FlushInterval: time.Hour}, zap.NewNop())
	assert.True(t, r.Record(NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3)))
	assert.True(t, r.Record(NewUsageRecord("req-2", haiku(), "us-east-1", 5, 3)))
	r.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderCloseFlushesRemainder(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1))

	r := NewRecorder(db, Options{BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop())
	r.Record(NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3))
	r.Close()
	r.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, r.Record(NewUsageRecord("req-2", haiku(), "us-east-1", 5, 3)))
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(2))

	core, logs := observer.New(zap.WarnLevel)
	r := NewRecorder(db, Options{BatchSize: 1, QueueSize: 1, FlushInterval: time.Hour}, zap.New(core))
	dropped := testutil.ToFloat64(metrics.UsageRecordsDropped)

	// the writer takes the first record and blocks on the slow insert
	require.True(t, r.Record(NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3)))
	require.Eventually(t, func() bool { return len(r.ch) == 0 }, time.Second, 5*time.Millisecond)

	assert.True(t, r.Record(NewUsageRecord("req-2", haiku(), "us-east-1", 5, 3)))
	assert.False(t, r.Record(NewUsageRecord("req-3", haiku(), "us-east-1", 5, 3)))
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.UsageRecordsDropped))

	entries := logs.FilterMessage("usage ledger queue full, dropping record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-3", entries[0].ContextMap()["request_id"])

	r.Close()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO "janus_usage_log"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1))

	r := NewRecorder(db, Options{BatchSize: 10, FlushInterval: 20 * time.Millisecond}, zap.NewNop())
	defer r.Close()
	require.True(t, r.Record(NewUsageRecord("req-1", haiku(), "us-east-1", 5, 3)))

	assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil },
		time.Second, 10*time.Millisecond)
}
