package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/api/middleware"
	"github.com/stowpoint/stowpoint-backend/api/responses"
	"github.com/stowpoint/stowpoint-backend/api/validators"
	"github.com/stowpoint/stowpoint-backend/internal/reservations"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

const maxGuestFieldLen = 200

type reservationCreateRequest struct {
	StorageUnitID string     `json:"storage_unit_id" validate:"required,uuid"`
	StartAt       *time.Time `json:"start_at" validate:"required"`
	EndAt         *time.Time `json:"end_at" validate:"required"`
	ItemCount     int        `json:"item_count" validate:"omitempty,min=1"`
	GuestName     string     `json:"guest_name" validate:"required"`
	GuestPhone    *string    `json:"guest_phone"`
	GuestEmail    *string    `json:"guest_email" validate:"omitempty,email"`
	RoomNumber    *string    `json:"room_number"`
}

func (req reservationCreateRequest) toInput(tenantID uuid.UUID, actorID *uuid.UUID) (reservations.CreateInput, error) {
	unitID, err := uuid.Parse(strings.TrimSpace(req.StorageUnitID))
	if err != nil {
		return reservations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid storage_unit_id")
	}

	itemCount := req.ItemCount
	if itemCount == 0 {
		itemCount = 1
	}

	input := reservations.CreateInput{
		TenantID:      tenantID,
		StorageUnitID: unitID,
		Start:         req.StartAt.UTC(),
		End:           req.EndAt.UTC(),
		ItemCount:     itemCount,
		GuestName:     validators.SanitizeString(req.GuestName, maxGuestFieldLen),
		GuestPhone:    sanitizeOptional(req.GuestPhone),
		GuestEmail:    sanitizeOptional(req.GuestEmail),
		RoomNumber:    sanitizeOptional(req.RoomNumber),
		ActorID:       actorID,
	}
	return input, nil
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := validators.SanitizeString(*value, maxGuestFieldLen)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ReservationCreate books a storage unit for a guest.
func ReservationCreate(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, actorID, err := actorContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reservationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(tenantID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reservationResponseFromModel(created))
	}
}

type reservationActionRequest struct {
	Evidence *string `json:"evidence"`
	Reason   *string `json:"reason"`
}

// ReservationHandover records luggage received from the guest.
func ReservationHandover(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := decodeOptionalAction(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Handover(r.Context(), reservations.HandoverInput{
			ReservationID: id,
			TenantID:      tenantID,
			ActorID:       actorID,
			Evidence:      sanitizeOptional(payload.Evidence),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

// ReservationReturn records luggage handed back to the guest.
func ReservationReturn(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := decodeOptionalAction(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Return(r.Context(), reservations.ReturnInput{
			ReservationID: id,
			TenantID:      tenantID,
			ActorID:       actorID,
			Evidence:      sanitizeOptional(payload.Evidence),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

type reservationExtendRequest struct {
	NewEndAt *time.Time `json:"new_end_at" validate:"required"`
}

// ReservationExtend pushes a reservation's end forward.
func ReservationExtend(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reservationExtendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Extend(r.Context(), reservations.ExtendInput{
			ReservationID: id,
			TenantID:      tenantID,
			NewEnd:        payload.NewEndAt.UTC(),
			ActorID:       actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

// ReservationCancel ends a reservation before completion.
func ReservationCancel(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := decodeOptionalAction(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Cancel(r.Context(), reservations.CancelInput{
			ReservationID: id,
			TenantID:      tenantID,
			ActorID:       actorID,
			Reason:        sanitizeOptional(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

// ReservationNoShow closes a reservation whose guest never arrived.
func ReservationNoShow(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.MarkNoShow(r.Context(), id, tenantID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

// ReservationLost closes a reservation whose luggage cannot be produced.
func ReservationLost(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.MarkLost(r.Context(), id, tenantID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(updated))
	}
}

// ReservationGet returns a single reservation by id.
func ReservationGet(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetByID(r.Context(), id, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(found))
	}
}

// ReservationScanLookup resolves a reservation from its scan token. Agents
// use this at the front desk when a guest shows the ticket QR code.
func ReservationScanLookup(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "scan token required"))
			return
		}

		found, err := svc.GetByScanToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(found))
	}
}

// ReservationList returns the tenant's reservations, newest first.
func ReservationList(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, _, err := actorContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}

		filters, err := reservationListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, nextCursor, err := svc.List(r.Context(), tenantID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]reservationResponse, 0, len(items))
		for i := range items {
			out = append(out, reservationResponseFromModel(&items[i]))
		}
		responses.WriteList(w, out, nextCursor)
	}
}

func reservationListFilters(r *http.Request) (reservations.ListFilters, error) {
	filters := reservations.ListFilters{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseReservationStatus(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filters.Status = &status
	}

	if unitID, err := validators.ParseQueryUUID(r, "storage_unit_id"); err != nil {
		return filters, err
	} else if unitID != uuid.Nil {
		filters.StorageUnitID = &unitID
	}

	if locationID, err := validators.ParseQueryUUID(r, "location_id"); err != nil {
		return filters, err
	} else if locationID != uuid.Nil {
		filters.LocationID = &locationID
	}

	if from, err := validators.ParseQueryTime(r, "from"); err != nil {
		return filters, err
	} else if !from.IsZero() {
		filters.From = &from
	}

	if to, err := validators.ParseQueryTime(r, "to"); err != nil {
		return filters, err
	} else if !to.IsZero() {
		filters.To = &to
	}

	return filters, nil
}

func actorContext(r *http.Request) (uuid.UUID, *uuid.UUID, error) {
	rawTenant := middleware.TenantIDFromContext(r.Context())
	if rawTenant == "" {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}

	var actorID *uuid.UUID
	if rawStaff := middleware.StaffIDFromContext(r.Context()); rawStaff != "" {
		staffID, err := uuid.Parse(rawStaff)
		if err != nil {
			return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid staff id")
		}
		actorID = &staffID
	}
	return tenantID, actorID, nil
}

func reservationActionContext(r *http.Request) (uuid.UUID, uuid.UUID, *uuid.UUID, error) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}
	tenantID, actorID, err := actorContext(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}
	return id, tenantID, actorID, nil
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// Transition bodies are optional; an empty or absent body means no
// evidence or reason was supplied.
func decodeOptionalAction(r *http.Request) (reservationActionRequest, error) {
	var payload reservationActionRequest
	if r.Body == nil || r.ContentLength == 0 {
		return payload, nil
	}
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

type reservationResponse struct {
	ID            uuid.UUID               `json:"id"`
	TenantID      uuid.UUID               `json:"tenant_id"`
	LocationID    uuid.UUID               `json:"location_id"`
	StorageUnitID uuid.UUID               `json:"storage_unit_id"`
	Status        enums.ReservationStatus `json:"status"`
	StartAt       time.Time               `json:"start_at"`
	EndAt         time.Time               `json:"end_at"`
	ItemCount     int                     `json:"item_count"`
	AmountMinor   int                     `json:"amount_minor"`
	Currency      enums.Currency          `json:"currency"`
	GuestName     string                  `json:"guest_name"`
	GuestPhone    *string                 `json:"guest_phone,omitempty"`
	GuestEmail    *string                 `json:"guest_email,omitempty"`
	RoomNumber    *string                 `json:"room_number,omitempty"`
	ScanToken     string                  `json:"scan_token"`
	HandoverAt    *time.Time              `json:"handover_at,omitempty"`
	ReturnAt      *time.Time              `json:"return_at,omitempty"`
	ClosedAt      *time.Time              `json:"closed_at,omitempty"`
	CloseReason   *string                 `json:"close_reason,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func reservationResponseFromModel(m *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:            m.ID,
		TenantID:      m.TenantID,
		LocationID:    m.LocationID,
		StorageUnitID: m.StorageUnitID,
		Status:        m.Status,
		StartAt:       m.StartAt,
		EndAt:         m.EndAt,
		ItemCount:     m.ItemCount,
		AmountMinor:   m.AmountMinor,
		Currency:      m.Currency,
		GuestName:     m.GuestName,
		GuestPhone:    m.GuestPhone,
		GuestEmail:    m.GuestEmail,
		RoomNumber:    m.RoomNumber,
		ScanToken:     m.ScanToken,
		HandoverAt:    m.HandoverAt,
		ReturnAt:      m.ReturnAt,
		ClosedAt:      m.ClosedAt,
		CloseReason:   m.CloseReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
