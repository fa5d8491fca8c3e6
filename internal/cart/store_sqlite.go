package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type guestCartRow struct {
	StorageKey string    `gorm:"column:storage_key;primaryKey"`
	Payload    []byte    `gorm:"column:payload"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (guestCartRow) TableName() string {
	return "guest_carts"
}

// SQLiteGuestStore keeps the guest cart in a single row of a local sqlite
// file, keyed by the configured storage key.
type SQLiteGuestStore struct {
	db         *gorm.DB
	storageKey string
}

// NewSQLiteGuestStore opens (and migrates) the local sqlite backing.
func NewSQLiteGuestStore(path, storageKey string) (*SQLiteGuestStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if storageKey == "" {
		return nil, fmt.Errorf("storage key required")
	}

	silent := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 silent,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening guest store: %w", err)
	}
	if err := db.AutoMigrate(&guestCartRow{}); err != nil {
		return nil, fmt.Errorf("migrating guest store: %w", err)
	}
	return &SQLiteGuestStore{db: db, storageKey: storageKey}, nil
}

func (s *SQLiteGuestStore) Load(ctx context.Context) ([]Item, error) {
	var row guestCartRow
	err := s.db.WithContext(ctx).First(&row, "storage_key = ?", s.storageKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading guest cart: %w", err)
	}
	return decodeItems(row.Payload), nil
}

func (s *SQLiteGuestStore) Save(ctx context.Context, items []Item) error {
	payload, err := encodeItems(items)
	if err != nil {
		return fmt.Errorf("encoding guest cart: %w", err)
	}
	row := guestCartRow{StorageKey: s.storageKey, Payload: payload, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving guest cart: %w", err)
	}
	return nil
}

func (s *SQLiteGuestStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Delete(&guestCartRow{}, "storage_key = ?", s.storageKey).Error
	if err != nil {
		return fmt.Errorf("clearing guest cart: %w", err)
	}
	return nil
}
