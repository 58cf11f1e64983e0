// Package history indexes committed ledger events in a sqlite database so
// operators can page through what happened without replaying the store.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"excelsior/core/events"
	"excelsior/observability/logging"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrPathRequired is returned when no database path is configured.
var ErrPathRequired = errors.New("history: database path must be configured")

// Record is one committed event. Events published together share a Batch,
// which is the originating request id when one is known.
type Record struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Batch      string    `gorm:"size:64;index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (Record) TableName() string { return "history_events" }

// Fields decodes the stored attributes.
func (r Record) Fields() map[string]string {
	out := map[string]string{}
	if r.Attributes == "" {
		return out
	}
	_ = json.Unmarshal([]byte(r.Attributes), &out)
	return out
}

// Filter narrows a history query. Zero values match everything.
type Filter struct {
	Type    string
	Batch   string
	Account string
	AfterID uint64
	Limit   int
}

// Store persists committed events.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (or creates) the history database at dsn, which may be a file
// path or a sqlite URI.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(clock func() time.Time) {
	if s != nil && clock != nil {
		s.now = clock
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Publish stores evts as one batch.
func (s *Store) Publish(ctx context.Context, evts []events.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history: store not configured")
	}
	if len(evts) == 0 {
		return nil
	}
	batch := logging.RequestID(ctx)
	if batch == "" {
		batch = uuid.NewString()
	}
	created := s.now().UTC()
	records := make([]Record, 0, len(evts))
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		rec := Record{Batch: batch, Type: evt.EventType(), CreatedAt: created}
		if payload, ok := evt.(events.Payload); ok {
			if rendered := payload.Event(); rendered != nil && len(rendered.Attributes) > 0 {
				raw, err := json.Marshal(rendered.Attributes)
				if err != nil {
					return fmt.Errorf("history: encode %s: %w", rec.Type, err)
				}
				rec.Attributes = string(raw)
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// Query returns records matching f in insertion order.
func (s *Store) Query(ctx context.Context, f Filter) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history: store not configured")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := s.db.WithContext(ctx).Model(&Record{}).Where("id > ?", f.AfterID)
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if b := strings.TrimSpace(f.Batch); b != "" {
		q = q.Where("batch = ?", b)
	}
	if a := strings.TrimSpace(f.Account); a != "" {
		q = q.Where("attributes LIKE ?", "%\""+a+"\"%")
	}
	var out []Record
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	return out, nil
}
