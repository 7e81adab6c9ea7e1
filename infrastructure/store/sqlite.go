package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const sqliteBackend = "sqlite"

type reportRecord struct {
	ID          string `gorm:"primaryKey"`
	ContentType string
	// Content is the submitted input as JSON.
	Content string
	// Result is the whole report as JSON.
	Result    string
	Label     string    `gorm:"index"`
	Score     float64
	CreatedAt time.Time `gorm:"index"`
}

func (reportRecord) TableName() string { return "reports" }

type flagRecord struct {
	ID        uint   `gorm:"primaryKey"`
	ReportID  string `gorm:"index"`
	FlagType  string
	Comment   string
	CreatedAt time.Time
}

func (flagRecord) TableName() string { return "report_flags" }

// SQLiteStore persists reports in a SQLite database through gorm.
type SQLiteStore struct {
	db *gorm.DB
}

var _ ports.ReportStore = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, ports.NewStoreError(sqliteBackend, "open", "", err)
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&reportRecord{}, &flagRecord{}); err != nil {
		return nil, ports.NewStoreError(sqliteBackend, "migrate", "", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts the report row.
func (s *SQLiteStore) Save(ctx context.Context, r *domain.Report) error {
	b, err := encodeReport(r)
	if err != nil {
		return ports.NewStoreError(sqliteBackend, "save", reportID(r), err)
	}
	input, err := json.Marshal(r.Input)
	if err != nil {
		return ports.NewStoreError(sqliteBackend, "save", r.ID, err)
	}
	rec := reportRecord{
		ID:          r.ID,
		ContentType: string(r.ContentType),
		Content:     string(input),
		Result:      string(b),
		Label:       string(r.Result.Label),
		Score:       r.Result.OverallScore,
		CreatedAt:   r.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return ports.NewStoreError(sqliteBackend, "save", r.ID, err)
	}
	return nil
}

// Get loads a report by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	var rec reportRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, ports.NewStoreError(sqliteBackend, "get", id, err)
	}
	r, err := decodeReport([]byte(rec.Result))
	if err != nil {
		return nil, ports.NewStoreError(sqliteBackend, "get", id, err)
	}
	return r, nil
}

// Delete removes the report and its flags in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&reportRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("report_id = ?", id).Delete(&flagRecord{}).Error
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return ports.NewStoreError(sqliteBackend, "delete", id, err)
	}
	return nil
}

// AddFlag inserts a flag for an existing report.
func (s *SQLiteStore) AddFlag(ctx context.Context, f domain.Flag) error {
	if err := validateFlag(f); err != nil {
		return err
	}
	if err := s.exists(ctx, f.ReportID); err != nil {
		return err
	}
	rec := flagRecord{
		ReportID:  f.ReportID,
		FlagType:  string(f.Type),
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return ports.NewStoreError(sqliteBackend, "add_flag", f.ReportID, err)
	}
	return nil
}

// ListFlags returns the report's flags in insertion order.
func (s *SQLiteStore) ListFlags(ctx context.Context, reportID string) ([]domain.Flag, error) {
	if err := s.exists(ctx, reportID); err != nil {
		return nil, err
	}
	var recs []flagRecord
	if err := s.db.WithContext(ctx).Where("report_id = ?", reportID).Order("id asc").Find(&recs).Error; err != nil {
		return nil, ports.NewStoreError(sqliteBackend, "list_flags", reportID, err)
	}
	flags := make([]domain.Flag, 0, len(recs))
	for _, rec := range recs {
		flags = append(flags, domain.Flag{
			ReportID:  rec.ReportID,
			Type:      domain.FlagType(rec.FlagType),
			Comment:   rec.Comment,
			CreatedAt: rec.CreatedAt.UTC(),
		})
	}
	return flags, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return ports.NewStoreError(sqliteBackend, "ping", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return ports.NewStoreError(sqliteBackend, "ping", "", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) exists(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&reportRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return ports.NewStoreError(sqliteBackend, "exists", id, fmt.Errorf("counting reports: %w", err))
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
