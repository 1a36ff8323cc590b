package controllers

import (
	"net/http"
	"time"

	"github.com/stowpoint/stowpoint-backend/api/responses"
	"github.com/stowpoint/stowpoint-backend/api/validators"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/types"
)

type pricingQuoteRequest struct {
	// Optional scopes; an explicit null clears inherited scope so the
	// tenant-wide rule is priced instead.
	LocationID    types.NullableUUID `json:"location_id"`
	StorageUnitID types.NullableUUID `json:"storage_unit_id"`
	StartAt       *time.Time         `json:"start_at" validate:"required"`
	EndAt         *time.Time         `json:"end_at" validate:"required"`
	ItemCount     int                `json:"item_count" validate:"omitempty,min=1"`
}

// PricingQuote prices a storage window without creating anything.
func PricingQuote(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, _, err := actorContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pricingQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !payload.EndAt.After(*payload.StartAt) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "end_at must be after start_at"))
			return
		}

		itemCount := payload.ItemCount
		if itemCount == 0 {
			itemCount = 1
		}

		input := pricing.QuoteInput{
			TenantID:  tenantID,
			Start:     payload.StartAt.UTC(),
			End:       payload.EndAt.UTC(),
			ItemCount: itemCount,
		}
		if payload.LocationID.Valid {
			input.LocationID = payload.LocationID.Value
		}
		if payload.StorageUnitID.Valid {
			input.StorageUnitID = payload.StorageUnitID.Value
		}

		quote, err := svc.Price(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}
