package controllers

import (
	"net/http"
	"time"

	"github.com/stowpoint/stowpoint-backend/api/responses"
	"github.com/stowpoint/stowpoint-backend/api/validators"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

const maxCalendarRange = 92 * 24 * time.Hour

// StorageCalendar returns per-day blocked/free buckets for a storage unit.
func StorageCalendar(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := parseIDParam(r, "id")
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

		now := time.Now().UTC()
		if from.IsZero() {
			from = now.Truncate(24 * time.Hour)
		}
		if to.IsZero() {
			to = from.Add(14 * 24 * time.Hour)
		}
		if !to.After(from) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must be after from"))
			return
		}
		if to.Sub(from) > maxCalendarRange {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "calendar range too large"))
			return
		}

		days, err := svc.Calendar(r.Context(), unitID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, days)
	}
}

// StorageAvailability answers whether a unit is free for a window.
func StorageAvailability(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unitID, err := parseIDParam(r, "id")
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

		free, err := svc.IsAvailable(r.Context(), availability.CheckInput{
			StorageUnitID: unitID,
			Start:         from,
			End:           to,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"available": free})
	}
}
