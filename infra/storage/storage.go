// Package storage persists the consumed event stream into SQLite so
// downstream tooling can query settlement history without touching
// the engine.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// EventRow is one indexed settlement event. Seq is the engine's global
// sequence, which makes indexing idempotent under redelivery.
type EventRow struct {
	Seq       uint64 `gorm:"primaryKey"`
	EventID   string `gorm:"size:36;index"`
	Type      string `gorm:"size:16;index"`
	Payload   []byte
	EventTime int64
	IndexedAt time.Time `gorm:"autoCreateTime"`
}

type Storage struct {
	db *gorm.DB
}

// New opens or creates the index database at path.
func New(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create db directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&EventRow{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Storage{db: db}, nil
}

// SaveEvent stores a row, silently ignoring a sequence that is already
// indexed. Kafka delivers at least once; the primary key dedupes.
func (s *Storage) SaveEvent(row *EventRow) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// Events returns up to limit rows with Seq > afterSeq, in sequence
// order.
func (s *Storage) Events(afterSeq uint64, limit int) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.Where("seq > ?", afterSeq).Order("seq asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// EventsByType returns the most recent rows of one type.
func (s *Storage) EventsByType(eventType string, limit int) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.Where("type = ?", eventType).Order("seq desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// LastSeq returns the highest indexed sequence, 0 when empty.
func (s *Storage) LastSeq() (uint64, error) {
	var row EventRow
	err := s.db.Order("seq desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Seq, err
}

// Count returns the number of indexed events.
func (s *Storage) Count() (int64, error) {
	var n int64
	err := s.db.Model(&EventRow{}).Count(&n).Error
	return n, err
}
