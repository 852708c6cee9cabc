package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

type localRecord struct {
	Name      string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (localRecord) TableName() string {
	return "local_records"
}

// SQLiteStore keeps the guest cart as a single named row in an embedded
// SQLite database.
type SQLiteStore struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewSQLiteStore(dsn string, log *slog.Logger) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	if log == nil {
		log = logging.Discard()
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStorage, err)
	}
	if err := db.AutoMigrate(&localRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", ErrStorage, err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Read(ctx context.Context) []models.CartLine {
	var rec localRecord
	err := s.db.WithContext(ctx).Where("name = ?", RecordName).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logging.FromContext(ctx, s.log).Warn("guest_cart_read_error", "error", err)
		}
		return []models.CartLine{}
	}
	return decodeRecord(ctx, s.log, rec.Data)
}

func (s *SQLiteStore) Write(ctx context.Context, lines []models.CartLine) error {
	data, err := encodeRecord(lines)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	rec := localRecord{Name: RecordName, Data: data}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("name = ?", RecordName).Delete(&localRecord{}).Error; err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStorage, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
