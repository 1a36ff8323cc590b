package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/api/responses"
	"github.com/stowpoint/stowpoint-backend/api/validators"
	"github.com/stowpoint/stowpoint-backend/internal/payments"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

type paymentEnsureRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// PaymentEnsure attaches the ledger row to a reservation, creating it when
// missing. Returns 201 only when this call created the row. An optional
// body may carry metadata to merge into the payment.
func PaymentEnsure(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentEnsureRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, created, err := svc.EnsureForReservation(r.Context(), reservationID, tenantID, payload.Metadata)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, paymentResponseFromModel(payment))
	}
}

// PaymentGetForReservation returns the reservation's ledger row.
func PaymentGetForReservation(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetByReservation(r.Context(), reservationID, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(payment))
	}
}

// PaymentGet returns a payment by id.
func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetByID(r.Context(), id, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(payment))
	}
}

// PaymentConfirmCash marks a payment as settled in cash at the desk.
func PaymentConfirmCash(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return confirmHandler(svc.ConfirmCash, logg)
}

// PaymentConfirmPOS marks a payment as settled on the hotel's POS terminal.
func PaymentConfirmPOS(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return confirmHandler(svc.ConfirmPOS, logg)
}

func confirmHandler(confirm func(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Payment, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := confirm(r.Context(), id, tenantID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(payment))
	}
}

type checkoutStartRequest struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// PaymentCheckoutStart opens a hosted checkout session for a card payment.
func PaymentCheckoutStart(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutStartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartCheckout(r.Context(), id, tenantID, payload.SuccessURL, payload.CancelURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}

type paymentResponse struct {
	ID                uuid.UUID             `json:"id"`
	TenantID          uuid.UUID             `json:"tenant_id"`
	ReservationID     *uuid.UUID            `json:"reservation_id,omitempty"`
	StorageUnitID     *uuid.UUID            `json:"storage_unit_id,omitempty"`
	Provider          enums.PaymentProvider `json:"provider"`
	Mode              enums.PaymentMode     `json:"mode"`
	ProviderSessionID string                `json:"provider_session_id"`
	Status            enums.PaymentStatus   `json:"status"`
	AmountMinor       int                   `json:"amount_minor"`
	Currency          enums.Currency        `json:"currency"`
	PaidAt            *time.Time            `json:"paid_at,omitempty"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
	Metadata          json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func paymentResponseFromModel(m *models.Payment) paymentResponse {
	return paymentResponse{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ReservationID:     m.ReservationID,
		StorageUnitID:     m.StorageUnitID,
		Provider:          m.Provider,
		Mode:              m.Mode,
		ProviderSessionID: m.ProviderSessionID,
		Status:            m.Status,
		AmountMinor:       m.AmountMinor,
		Currency:          m.Currency,
		PaidAt:            m.PaidAt,
		FailureReason:     m.FailureReason,
		Metadata:          m.Metadata,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
