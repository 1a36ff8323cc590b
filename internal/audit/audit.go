package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

// Entity names recorded in the trail.
const (
	EntityReservation = "reservation"
	EntityPayment     = "payment"
	EntitySettlement  = "settlement"
)

// Entry is one state transition to record.
type Entry struct {
	TenantID uuid.UUID
	ActorID  *uuid.UUID
	Action   string
	Entity   string
	EntityID uuid.UUID
	Meta     map[string]any
}

// Repository defines the append-only persistence surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, log *models.AuditLog) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// Service records transitions into the audit trail.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	RecordBestEffort(ctx context.Context, tx *gorm.DB, entry Entry)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditLog, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an audit service with the required dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if entry.Action == "" || entry.Entity == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "action and entity required")
	}

	var meta json.RawMessage
	if len(entry.Meta) > 0 {
		encoded, err := json.Marshal(entry.Meta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding audit metadata")
		}
		meta = encoded
	}

	log := &models.AuditLog{
		TenantID: entry.TenantID,
		ActorID:  entry.ActorID,
		Action:   entry.Action,
		Entity:   entry.Entity,
		EntityID: entry.EntityID,
		Metadata: meta,
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if err := s.repo.WithTx(tx).Create(ctx, log); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing audit log")
	}
	return nil
}

// RecordBestEffort writes the entry and only logs on failure. Used where a
// transition must not abort because the trail write failed.
func (s *service) RecordBestEffort(ctx context.Context, tx *gorm.DB, entry Entry) {
	if err := s.Record(ctx, tx, entry); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("audit write failed for %s %s: %v", entry.Entity, entry.Action, err))
	}
}

func (s *service) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditLog, error) {
	logs, err := s.repo.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing audit logs")
	}
	return logs, nil
}
