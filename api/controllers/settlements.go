package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stowpoint/stowpoint-backend/api/responses"
	"github.com/stowpoint/stowpoint-backend/api/validators"
	"github.com/stowpoint/stowpoint-backend/internal/settlements"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

// SettlementCalculate splits a paid payment into payout and commission. Safe
// to call repeatedly; the first calculation wins.
func SettlementCalculate(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.Calculate(r.Context(), paymentID, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlementResponseFromModel(settlement))
	}
}

// SettlementComplete marks a pending settlement as paid out.
func SettlementComplete(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, actorID, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.Complete(r.Context(), id, tenantID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlementResponseFromModel(settlement))
	}
}

// SettlementGet returns a settlement by id.
func SettlementGet(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.GetByID(r.Context(), id, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlementResponseFromModel(settlement))
	}
}

// SettlementGetForPayment returns the payment's settlement.
func SettlementGetForPayment(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, tenantID, _, err := reservationActionContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.GetByPayment(r.Context(), paymentID, tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlementResponseFromModel(settlement))
	}
}

// SettlementList returns the tenant's settlements, newest first.
func SettlementList(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
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

		filters := settlements.ListFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSettlementStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			value := string(status)
			filters.Status = &value
		}
		if from, err := validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if !from.IsZero() {
			filters.From = &from
		}
		if to, err := validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if !to.IsZero() {
			filters.To = &to
		}

		items, nextCursor, err := svc.ListByTenant(r.Context(), tenantID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]settlementResponse, 0, len(items))
		for i := range items {
			out = append(out, settlementResponseFromModel(&items[i]))
		}
		responses.WriteList(w, out, nextCursor)
	}
}

type settlementTotalsResponse struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	TotalMinor      int64     `json:"total_minor"`
	PayoutMinor     int64     `json:"payout_minor"`
	CommissionMinor int64     `json:"commission_minor"`
	Count           int64     `json:"count"`
}

// SettlementTotals aggregates settled money for the tenant over a range.
func SettlementTotals(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, _, err := actorContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if from.IsZero() || to.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required"))
			return
		}

		totals, err := svc.TenantTotals(r.Context(), tenantID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlementTotalsResponse{
			From:            from,
			To:              to,
			TotalMinor:      totals.TotalMinor,
			PayoutMinor:     totals.PayoutMinor,
			CommissionMinor: totals.CommissionMinor,
			Count:           totals.Count,
		})
	}
}

type settlementResponse struct {
	ID                    uuid.UUID              `json:"id"`
	PaymentID             uuid.UUID              `json:"payment_id"`
	ReservationID         *uuid.UUID             `json:"reservation_id,omitempty"`
	TenantID              uuid.UUID              `json:"tenant_id"`
	TotalAmountMinor      int                    `json:"total_amount_minor"`
	TenantPayoutMinor     int                    `json:"tenant_payout_minor"`
	CommissionMinor       int                    `json:"commission_minor"`
	CommissionRatePercent decimal.Decimal        `json:"commission_rate_percent"`
	Currency              enums.Currency         `json:"currency"`
	Status                enums.SettlementStatus `json:"status"`
	SettledAt             *time.Time             `json:"settled_at,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

func settlementResponseFromModel(m *models.Settlement) settlementResponse {
	return settlementResponse{
		ID:                    m.ID,
		PaymentID:             m.PaymentID,
		ReservationID:         m.ReservationID,
		TenantID:              m.TenantID,
		TotalAmountMinor:      m.TotalAmountMinor,
		TenantPayoutMinor:     m.TenantPayoutMinor,
		CommissionMinor:       m.CommissionMinor,
		CommissionRatePercent: m.CommissionRatePercent,
		Currency:              m.Currency,
		Status:                m.Status,
		SettledAt:             m.SettledAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}
