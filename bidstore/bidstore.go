// Package bidstore is the local embedded durable record of every bid
// submission attempt (spec.md §4.7).
//
// Grounded on the teacher's internal/database/database.go: same
// dial-by-DSN-prefix trick (sqlite path vs postgres:// URL), same
// gorm.Open + AutoMigrate + silent-logger construction, same thin
// method-per-operation style on a *Database-like wrapper.
package bidstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one row of the bids table (spec.md §4.7 schema, field order and
// names preserved, plus a Finalized column after Success).
type Record struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	Commitment      []byte    `gorm:"size:32;not null;index"`
	SubmitTxHash    []byte    `gorm:"size:32"`
	SubmitBlockHash []byte    `gorm:"size:32"`
	Success         bool      `gorm:"not null;index"`
	Finalized       bool      `gorm:"not null;default:false;index"`
	Error           string
	CreatedAt       time.Time `gorm:"not null;index;autoCreateTime"`
	Retracted       bool      `gorm:"not null;default:false;index"`
	RetractedAt     *time.Time
	RetractTxHash   []byte `gorm:"size:32"`
}

func (Record) TableName() string { return "bids" }

// Insert is the set of fields supplied for a new submission attempt
// (spec.md: "every submission attempt, success or failure, is inserted").
type Insert struct {
	Commitment      [32]byte
	SubmitTxHash    *[32]byte
	SubmitBlockHash *[32]byte
	Success         bool
	// Finalized records whether the coprocessor had already reported
	// Finalized (rather than merely InBlock) at insert time. InBlock alone
	// is tentative and does not make a bid eligible for fund recovery.
	Finalized bool
	Error     string
}

// Stats is the aggregate summary returned by Stats().
type Stats struct {
	Total             int64
	Successful        int64
	Failed            int64
	Finalized         int64
	Retracted         int64
	PendingRetraction int64
}

// Store wraps the gorm handle to the bids table.
type Store struct {
	db *gorm.DB
}

// Open dials dsn: a postgres://... or postgresql://... URL selects
// Postgres, anything else is treated as a sqlite file path (directories
// created as needed), mirroring the teacher's New(dbPath) dispatch.
func Open(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("bid store connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("bid store initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Insert persists one submission attempt and returns its row id (spec.md
// P5: every submit_bid call that returns has exactly one matching row).
func (s *Store) Insert(in Insert) (uint, error) {
	rec := Record{
		Commitment: in.Commitment[:],
		Success:    in.Success,
		Finalized:  in.Finalized,
		Error:      in.Error,
	}
	if in.SubmitTxHash != nil {
		rec.SubmitTxHash = in.SubmitTxHash[:]
	}
	if in.SubmitBlockHash != nil {
		rec.SubmitBlockHash = in.SubmitBlockHash[:]
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// LatestByCommitment returns the most recent row for commitment, if any.
func (s *Store) LatestByCommitment(commitment [32]byte) (*Record, error) {
	var rec Record
	err := s.db.Where("commitment = ?", commitment[:]).Order("created_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SuccessfulUnretracted is the fund-recovery feed: every finalized bid row
// whose deposit has not yet been retracted. InBlock alone is tentative
// (spec.md §4.6) and is deliberately excluded — fund recovery only acts on
// deposits the coprocessor chain has finalized.
func (s *Store) SuccessfulUnretracted() ([]Record, error) {
	var recs []Record
	err := s.db.Where("success = ? AND finalized = ? AND retracted = ?", true, true, false).Order("created_at ASC").Find(&recs).Error
	return recs, err
}

// MarkFinalized promotes the latest successful row for commitment from tentative
// InBlock to Finalized once the coprocessor reports finality, making it
// eligible for SuccessfulUnretracted.
func (s *Store) MarkFinalized(commitment [32]byte) (bool, error) {
	var latest Record
	err := s.db.Where("commitment = ? AND success = ?", commitment[:], true).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	result := s.db.Model(&Record{}).
		Where("id = ? AND finalized = ?", latest.ID, false).
		Update("finalized", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkRetracted flips the latest row for commitment to retracted. Returns
// false (without error) if no row matched or the row was already retracted
// — retraction is a one-way transition (P6).
func (s *Store) MarkRetracted(commitment [32]byte, retractTx [32]byte) (bool, error) {
	var latest Record
	err := s.db.Where("commitment = ?", commitment[:]).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if latest.Retracted {
		return false, nil
	}

	now := time.Now()
	result := s.db.Model(&Record{}).
		Where("id = ? AND retracted = ?", latest.ID, false).
		Updates(map[string]interface{}{
			"retracted":       true,
			"retracted_at":    now,
			"retract_tx_hash": retractTx[:],
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Stats returns the aggregate counters (spec.md §4.7).
func (s *Store) Stats() (Stats, error) {
	var stats Stats

	if err := s.db.Model(&Record{}).Count(&stats.Total).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.Model(&Record{}).Where("success = ?", true).Count(&stats.Successful).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.Model(&Record{}).Where("success = ?", false).Count(&stats.Failed).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.Model(&Record{}).Where("finalized = ?", true).Count(&stats.Finalized).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.Model(&Record{}).Where("retracted = ?", true).Count(&stats.Retracted).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.Model(&Record{}).Where("success = ? AND finalized = ? AND retracted = ?", true, true, false).Count(&stats.PendingRetraction).Error; err != nil {
		return Stats{}, err
	}

	return stats, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
