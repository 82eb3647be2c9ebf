package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPlan         = errors.New("invalid fee plan")
	ErrScheduleMismatch    = fmt.Errorf("%w: custom schedule does not sum to total_amount", ErrInvalidPlan)
	ErrInvalidPayment      = errors.New("invalid payment")
	ErrDuplicateObligation = errors.New("obligation already exists for this period")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, reload and try again")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func invalidPlan(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}

func invalidPayment(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayment, fmt.Sprintf(format, args...))
}

// translateStoreError maps storage failures that mean "someone else got there
// first" onto ErrConcurrencyConflict. Everything else passes through.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return err
}

// isUniqueViolation reports whether err is a unique index violation from
// either backend.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// duplicatePeriod turns a unique violation on a monthly fee insert into
// ErrDuplicateObligation. A concurrent writer can pass the existence check and
// lose on the index instead.
func duplicatePeriod(err error, year, month int) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %04d-%02d", ErrDuplicateObligation, year, month)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
