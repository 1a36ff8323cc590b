package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
)

const (
	// FallbackHourlyRateMinor applies when no rule matches anywhere.
	FallbackHourlyRateMinor = 1500
	// FallbackMinimumMinor equals one hour at the fallback rate.
	FallbackMinimumMinor = 1500

	hoursPerDay   = 24
	hoursPerWeek  = 168
	hoursPerMonth = 720
	daysPerWeek   = 7
	daysPerMonth  = 30
)

// ResolveInput identifies the target a rule is being resolved for.
type ResolveInput struct {
	TenantID      uuid.UUID
	LocationID    *uuid.UUID
	StorageUnitID *uuid.UUID
}

// QuoteInput carries everything needed to price a window.
type QuoteInput struct {
	TenantID      uuid.UUID
	LocationID    *uuid.UUID
	StorageUnitID *uuid.UUID
	Start         time.Time
	End           time.Time
	ItemCount     int
	Currency      enums.Currency
}

// Quote is the computed charge for a window plus the inputs that shaped it.
type Quote struct {
	RuleID          *uuid.UUID            `json:"rule_id,omitempty"`
	RuleScope       *enums.PriceRuleScope `json:"rule_scope,omitempty"`
	PricingType     enums.PricingType     `json:"pricing_type"`
	Currency        enums.Currency        `json:"currency"`
	DurationHours   float64               `json:"duration_hours"`
	DurationDays    int                   `json:"duration_days"`
	HourlyRateMinor int                   `json:"hourly_rate_minor"`
	DailyRateMinor  int                   `json:"daily_rate_minor"`
	TotalMinor      int                   `json:"total_minor"`
}

// Service resolves price rules and computes charges.
type Service interface {
	Resolve(ctx context.Context, input ResolveInput) (*models.PriceRule, error)
	Price(ctx context.Context, input QuoteInput) (*Quote, error)
	PriceWithTx(ctx context.Context, tx *gorm.DB, input QuoteInput) (*Quote, error)
}

type service struct {
	repo            Repository
	defaultCurrency enums.Currency
}

// NewService builds a pricing service with the required dependencies.
func NewService(repo Repository, defaultCurrency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if !defaultCurrency.IsValid() {
		return nil, fmt.Errorf("invalid default currency %q", defaultCurrency)
	}
	return &service{repo: repo, defaultCurrency: defaultCurrency}, nil
}

// Resolve returns the most specific active rule, nil when only the fallback applies.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.PriceRule, error) {
	return s.resolve(ctx, s.repo, input)
}

func (s *service) resolve(ctx context.Context, repo Repository, input ResolveInput) (*models.PriceRule, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	candidates, err := repo.FindCandidateRules(ctx, input.TenantID, input.LocationID, input.StorageUnitID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading price rules")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Candidates arrive ordered by priority then recency; specificity decides
	// between scopes.
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Scope.Specificity() > best.Scope.Specificity() {
			best = candidate
		}
	}
	return &best, nil
}

func (s *service) Price(ctx context.Context, input QuoteInput) (*Quote, error) {
	return s.price(ctx, s.repo, input)
}

// PriceWithTx computes a quote inside an already-open transaction.
func (s *service) PriceWithTx(ctx context.Context, tx *gorm.DB, input QuoteInput) (*Quote, error) {
	return s.price(ctx, s.repo.WithTx(tx), input)
}

func (s *service) price(ctx context.Context, repo Repository, input QuoteInput) (*Quote, error) {
	if !input.End.After(input.Start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window end must be after start")
	}
	if input.ItemCount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item count must not be negative")
	}

	rule, err := s.resolve(ctx, repo, ResolveInput{
		TenantID:      input.TenantID,
		LocationID:    input.LocationID,
		StorageUnitID: input.StorageUnitID,
	})
	if err != nil {
		return nil, err
	}

	hours := input.End.Sub(input.Start).Hours()
	days := int(math.Ceil(hours / hoursPerDay))
	if days < 1 {
		days = 1
	}

	quote := &Quote{
		DurationHours: hours,
		DurationDays:  days,
	}

	var base, minimum int
	if rule == nil {
		quote.PricingType = enums.PricingTypeHourly
		quote.Currency = s.quoteCurrency(input.Currency)
		quote.HourlyRateMinor = FallbackHourlyRateMinor
		base = billableHours(hours) * FallbackHourlyRateMinor
		minimum = FallbackMinimumMinor
	} else {
		ruleID := rule.ID
		ruleScope := rule.Scope
		quote.RuleID = &ruleID
		quote.RuleScope = &ruleScope
		quote.PricingType = rule.PricingType
		quote.Currency = rule.Currency
		quote.HourlyRateMinor = rule.HourlyRateMinor
		quote.DailyRateMinor = rule.DailyRateMinor
		base = ruleBase(rule, hours, days)
		minimum = rule.MinimumChargeMinor
	}

	if base < minimum {
		base = minimum
	}
	items := input.ItemCount
	if items < 1 {
		items = 1
	}
	quote.TotalMinor = base * items

	if quote.TotalMinor < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "computed charge is negative")
	}
	return quote, nil
}

func (s *service) quoteCurrency(requested enums.Currency) enums.Currency {
	if requested.IsValid() {
		return requested
	}
	return s.defaultCurrency
}

// ruleBase bills bulk periods only when the stay covers at least one full
// period; shorter stays always fall back to the daily rate.
func ruleBase(rule *models.PriceRule, hours float64, days int) int {
	switch rule.PricingType {
	case enums.PricingTypeHourly:
		return billableHours(hours) * rule.HourlyRateMinor
	case enums.PricingTypeWeekly:
		if hours >= hoursPerWeek {
			return ceilDiv(days, daysPerWeek) * rule.WeeklyRateMinor
		}
		return days * rule.DailyRateMinor
	case enums.PricingTypeMonthly:
		if hours >= hoursPerMonth {
			return ceilDiv(days, daysPerMonth) * rule.MonthlyRateMinor
		}
		return days * rule.DailyRateMinor
	default:
		return days * rule.DailyRateMinor
	}
}

// FallbackQuote prices a window at the hard-coded fallback rate without
// touching the rule store. Callers use it to degrade when the resolver is
// unavailable mid-operation.
func FallbackQuote(start, end time.Time, itemCount int, currency enums.Currency) *Quote {
	hours := end.Sub(start).Hours()
	if hours < 0 {
		hours = 0
	}
	days := int(math.Ceil(hours / hoursPerDay))
	if days < 1 {
		days = 1
	}
	base := billableHours(hours) * FallbackHourlyRateMinor
	if base < FallbackMinimumMinor {
		base = FallbackMinimumMinor
	}
	items := itemCount
	if items < 1 {
		items = 1
	}
	if !currency.IsValid() {
		currency = enums.CurrencyEUR
	}
	return &Quote{
		PricingType:     enums.PricingTypeHourly,
		Currency:        currency,
		DurationHours:   hours,
		DurationDays:    days,
		HourlyRateMinor: FallbackHourlyRateMinor,
		TotalMinor:      base * items,
	}
}

func billableHours(hours float64) int {
	billable := int(math.Ceil(hours))
	if billable < 1 {
		billable = 1
	}
	return billable
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
