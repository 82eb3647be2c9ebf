package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/anjiri1684/tutor_fees/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type engineConfig struct {
	isolation *sql.IsolationLevel
	now       func() time.Time
}

// Option tunes the fee services.
type Option func(*engineConfig)

// WithIsolation runs every write transaction at the given isolation level.
// Production uses sql.LevelSerializable on Postgres.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(c *engineConfig) {
		c.isolation = &level
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		c.now = now
	}
}

func newEngineConfig(opts []Option) engineConfig {
	cfg := engineConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c engineConfig) runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var txOpts []*sql.TxOptions
	if c.isolation != nil {
		txOpts = append(txOpts, &sql.TxOptions{Isolation: *c.isolation})
	}
	return translateStoreError(db.WithContext(ctx).Transaction(fn, txOpts...))
}

func lockedPlan(tx *gorm.DB, query string, arg any) (*models.FeePlan, error) {
	var plan models.FeePlan
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, arg).Take(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("fee plan")
		}
		return nil, err
	}
	return &plan, nil
}

func lockPlanByEnrollment(tx *gorm.DB, enrollmentID uuid.UUID) (*models.FeePlan, error) {
	return lockedPlan(tx, "enrollment_id = ?", enrollmentID)
}

func lockPlanByID(tx *gorm.DB, planID uuid.UUID) (*models.FeePlan, error) {
	return lockedPlan(tx, "id = ?", planID)
}

func takeOrNotFound(tx *gorm.DB, dest any, what string, query string, args ...any) error {
	if err := tx.Where(query, args...).Take(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(what)
		}
		return err
	}
	return nil
}
