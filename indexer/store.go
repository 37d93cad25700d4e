package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ratemint/core/events"
	"ratemint/core/types"
	"ratemint/observability"
	"ratemint/observability/logging"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type      string
	AttrName  string
	AttrValue string
	AfterID   uint64
	Limit     int
}

// Entry is the read model returned by List.
type Entry struct {
	ID         uint64            `json:"id"`
	UID        string            `json:"uid"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Store persists committed events into SQLite through gorm. It satisfies
// events.Sink so it can be used directly as the host sink.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  func() time.Time
}

// Open connects to the SQLite database at dsn.
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("indexer: dsn must not be empty")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", dsn, err)
	}
	return db, nil
}

// New migrates the schema and returns a store over db.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer: database must not be nil")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{db: db, logger: logger.With("component", "indexer"), clock: time.Now}, nil
}

// OpenStore opens the database at dsn and migrates it. The connection is
// closed again when migration fails.
func OpenStore(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	return newOwning(db, logger)
}

// newOwning is New for a connection the caller hands over.
func newOwning(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	store, err := New(db, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return store, nil
}

var _ events.Sink = (*Store)(nil)

// Record inserts evts in order within one database transaction. When any
// insert fails nothing from the batch is kept.
func (s *Store) Record(ctx context.Context, evts []*types.Event) error {
	if len(evts) == 0 {
		return nil
	}
	now := s.clock().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, evt := range evts {
			if evt == nil {
				continue
			}
			rec := EventRecord{UID: uuid.New(), Type: evt.Type, CreatedAt: now}
			names := make([]string, 0, len(evt.Attributes))
			for name := range evt.Attributes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				rec.Attributes = append(rec.Attributes, AttributeRecord{Name: name, Value: evt.Attributes[name]})
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexer: record: %w", err)
	}
	for _, evt := range evts {
		if evt != nil {
			observability.Events().RecordEvent(evt.Type)
		}
	}
	return nil
}

// List returns events matching filter in commit order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q := s.db.WithContext(ctx).Model(&EventRecord{}).Preload("Attributes").Order("id asc").Limit(limit)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.AfterID > 0 {
		q = q.Where("id > ?", filter.AfterID)
	}
	if filter.AttrName != "" {
		sub := s.db.Model(&AttributeRecord{}).Select("event_id").Where("name = ? AND value = ?", filter.AttrName, filter.AttrValue)
		q = q.Where("id IN (?)", sub)
	}
	var records []EventRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	out := make([]Entry, 0, len(records))
	for _, rec := range records {
		attrs := make(map[string]string, len(rec.Attributes))
		for _, attr := range rec.Attributes {
			attrs[attr.Name] = attr.Value
		}
		out = append(out, Entry{ID: rec.ID, UID: rec.UID.String(), Type: rec.Type, Attributes: attrs, CreatedAt: rec.CreatedAt})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
