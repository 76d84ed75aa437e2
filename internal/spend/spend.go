package spend

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Uuq114/JanusBedrock/internal/metrics"
	"github.com/Uuq114/JanusBedrock/internal/models"
)

const tableName = "janus_usage_log"

var thousand = decimal.NewFromInt(1000)

type UsageRecord struct {
	RecordId     int             `gorm:"primaryKey;column:record_id"`
	RequestId    string          `gorm:"column:request_id"`
	Model        string          `gorm:"column:model"`
	Endpoint     string          `gorm:"column:endpoint"`
	Spend        decimal.Decimal `gorm:"column:spend;type:numeric(20,10)"`
	TotalTokens  int             `gorm:"column:total_tokens"`
	InputTokens  int             `gorm:"column:input_tokens"`
	OutputTokens int             `gorm:"column:output_tokens"`
	CreateTime   time.Time       `gorm:"column:create_time"`
}

func (UsageRecord) TableName() string {
	return tableName
}

// Cost prices a call using the model's per-1K-token rates.
func Cost(model *models.ModelConfig, inputTokens, outputTokens int) decimal.Decimal {
	if model == nil {
		return decimal.Zero
	}
	in := decimal.NewFromInt(int64(inputTokens)).Div(thousand).Mul(decimal.NewFromFloat(model.InputPrice))
	out := decimal.NewFromInt(int64(outputTokens)).Div(thousand).Mul(decimal.NewFromFloat(model.OutputPrice))
	return in.Add(out)
}

func NewUsageRecord(requestId string, model *models.ModelConfig, endpoint string, inputTokens, outputTokens int) UsageRecord {
	record := UsageRecord{
		RequestId:    requestId,
		Endpoint:     endpoint,
		Spend:        Cost(model, inputTokens, outputTokens),
		TotalTokens:  inputTokens + outputTokens,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CreateTime:   time.Now(),
	}
	if model != nil {
		record.Model = model.Key
	}
	return record
}

// OpenDatabase connects to postgres and ensures the ledger table exists.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(&UsageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", tableName, err)
	}
	return db, nil
}

func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func InsertBatchUsageRecord(db *gorm.DB, records []UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := db.Create(&records).Error; err != nil {
		return fmt.Errorf("insert %d usage records: %w", len(records), err)
	}
	return nil
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// Recorder queues usage records and writes them to the ledger in batches
// from a single background goroutine.
type Recorder struct {
	db     *gorm.DB
	opts   Options
	logger *zap.Logger

	ch        chan UsageRecord
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewRecorder(db *gorm.DB, opts Options, logger *zap.Logger) *Recorder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.QueueSize < opts.BatchSize {
		opts.QueueSize = opts.BatchSize
	}
	r := &Recorder{
		db:     db,
		opts:   opts,
		logger: logger,
		ch:     make(chan UsageRecord, opts.QueueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues a record without blocking. It reports false when the
// record was dropped.
func (r *Recorder) Record(record UsageRecord) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- record:
		return true
	default:
		metrics.UsageRecordsDropped.Inc()
		r.logger.Warn("usage ledger queue full, dropping record",
			zap.String("request_id", record.RequestId))
		return false
	}
}

// Close stops accepting records and flushes what is queued.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]UsageRecord, 0, r.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := InsertBatchUsageRecord(r.db, batch); err != nil {
			r.logger.Error("failed to write usage records", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]UsageRecord, 0, r.opts.BatchSize)
	}

	for {
		select {
		case record, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, record)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
