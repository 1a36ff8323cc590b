package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
)

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Shared by the point check and the calendar so
// the two can never drift apart.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// CheckInput identifies the window being tested.
type CheckInput struct {
	StorageUnitID        uuid.UUID
	Start                time.Time
	End                  time.Time
	ExcludeReservationID *uuid.UUID
}

// CalendarDay is one day bucket of the availability calendar.
type CalendarDay struct {
	Date           time.Time   `json:"date"`
	Blocked        bool        `json:"blocked"`
	ReservationIDs []uuid.UUID `json:"reservation_ids"`
}

// Service answers availability questions for storage units.
type Service interface {
	IsAvailable(ctx context.Context, input CheckInput) (bool, error)
	IsAvailableWithTx(ctx context.Context, tx *gorm.DB, input CheckInput) (bool, error)
	CheckAndLock(ctx context.Context, tx *gorm.DB, input CheckInput) (bool, *models.StorageUnit, error)
	Calendar(ctx context.Context, storageUnitID uuid.UUID, from, to time.Time) ([]CalendarDay, error)
}

type service struct {
	repo Repository
}

// NewService builds an availability service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) IsAvailable(ctx context.Context, input CheckInput) (bool, error) {
	return s.isAvailable(ctx, s.repo, input)
}

// IsAvailableWithTx runs the scan inside an already-open transaction, after
// the caller has locked the storage unit row.
func (s *service) IsAvailableWithTx(ctx context.Context, tx *gorm.DB, input CheckInput) (bool, error) {
	return s.isAvailable(ctx, s.repo.WithTx(tx), input)
}

func (s *service) isAvailable(ctx context.Context, repo Repository, input CheckInput) (bool, error) {
	if input.StorageUnitID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "storage unit id required")
	}
	// Fails closed: an empty or inverted window is never available.
	if !input.Start.Before(input.End) {
		return false, nil
	}

	count, err := repo.CountBlockingOverlaps(ctx, input.StorageUnitID, input.Start, input.End, input.ExcludeReservationID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scanning reservations")
	}
	return count == 0, nil
}

// CheckAndLock locks the storage unit row for the remainder of tx, then runs
// the availability scan. A concurrent create against the same unit waits on
// the lock and sees this transaction's insert, which closes the
// check-then-insert race.
func (s *service) CheckAndLock(ctx context.Context, tx *gorm.DB, input CheckInput) (bool, *models.StorageUnit, error) {
	if tx == nil {
		return false, nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for locked check")
	}
	if input.StorageUnitID == uuid.Nil {
		return false, nil, pkgerrors.New(pkgerrors.CodeValidation, "storage unit id required")
	}

	repo := s.repo.WithTx(tx)
	unit, err := repo.LockStorageUnit(ctx, input.StorageUnitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, pkgerrors.New(pkgerrors.CodeNotFound, "storage unit not found")
		}
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locking storage unit")
	}
	if !unit.IsActive {
		return false, unit, pkgerrors.New(pkgerrors.CodeStateConflict, "storage unit is deactivated")
	}
	if unit.Status == enums.StorageUnitStatusFaulty {
		return false, unit, pkgerrors.New(pkgerrors.CodeStateConflict, "storage unit is faulty")
	}

	free, err := s.isAvailable(ctx, repo, input)
	if err != nil {
		return false, unit, err
	}
	return free, unit, nil
}

// Calendar buckets the blocking reservations per calendar day over [from, to].
// Presentation only; the point check above stays authoritative.
func (s *service) Calendar(ctx context.Context, storageUnitID uuid.UUID, from, to time.Time) ([]CalendarDay, error) {
	if storageUnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage unit id required")
	}

	fromDay := truncateDay(from)
	toDay := truncateDay(to)
	if toDay.Before(fromDay) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "calendar range end before start")
	}

	rangeEnd := toDay.AddDate(0, 0, 1)
	reservations, err := s.repo.FindBlockingInRange(ctx, storageUnitID, fromDay, rangeEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scanning reservations")
	}

	var days []CalendarDay
	for day := fromDay; day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		bucket := CalendarDay{Date: day, ReservationIDs: []uuid.UUID{}}
		for _, reservation := range reservations {
			if Overlaps(reservation.StartAt, reservation.EndAt, day, dayEnd) {
				bucket.Blocked = true
				bucket.ReservationIDs = append(bucket.ReservationIDs, reservation.ID)
			}
		}
		days = append(days, bucket)
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
