package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"whatsapp-bulk/internal/delivery"
	"whatsapp-bulk/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

// Store persists finished delivery runs.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// SaveRun writes the run, its per-contact outcomes and failure details in a
// single transaction.
func (s *Store) SaveRun(ctx context.Context, sum *delivery.Summary, template string) error {
	run := models.DeliveryRun{
		ID:           sum.RunID,
		Mode:         string(sum.Mode),
		Template:     template,
		Total:        sum.Total,
		SuccessCount: sum.SuccessCount,
		FailureCount: sum.FailureCount,
		StartedAt:    sum.StartedAt,
		FinishedAt:   sum.FinishedAt,
	}
	for _, n := range sum.SuccessNumbers {
		run.Outcomes = append(run.Outcomes, models.DeliveryOutcome{Number: n, Success: true})
	}
	for _, n := range sum.FailedNumbers {
		run.Outcomes = append(run.Outcomes, models.DeliveryOutcome{Number: n})
	}
	for _, d := range sum.Details {
		run.Failures = append(run.Failures, models.DeliveryFailure{Number: d.Number, File: d.File, Error: d.Error})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", sum.RunID, err)
	}
	s.log.Info().Str("run", run.ID).Int("outcomes", len(run.Outcomes)).Int("failures", len(run.Failures)).Msg("run saved")
	return nil
}

// ListRuns returns the most recent runs first, without their outcomes.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.DeliveryRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.DeliveryRun
	if err := s.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its outcomes and failures.
func (s *Store) GetRun(ctx context.Context, id string) (*models.DeliveryRun, error) {
	var run models.DeliveryRun
	err := s.db.WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Failures", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}
