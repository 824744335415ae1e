package ledger

import (
	"context"
	"math"
	"time"

	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/store"
)

// dailyWindowDays is the length of the trailing usage series, today inclusive.
const dailyWindowDays = 30

// round2 is presentation rounding. The fold itself runs on raw floats so
// intermediate sums don't accumulate rounding drift.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// LocationResolver maps a tenant to the timezone its calendar boundaries
// (month start, daily buckets) are computed in.
type LocationResolver func(ctx context.Context, tenantID string) *time.Location

// UTCLocations resolves every tenant to UTC.
func UTCLocations(context.Context, string) *time.Location {
	return time.UTC
}

// DailyUsage is one day of the trailing usage series. Days with no activity
// carry an explicit zero.
type DailyUsage struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Overview summarizes a tenant's credit ledger for the usage dashboard.
// EstimatedDepletionDays is nil when there is no recent usage to project
// from; that is a valid state, not an error.
type Overview struct {
	Balance                float64      `json:"balance"`
	TotalCharged           float64      `json:"total_charged"`
	TotalUsed              float64      `json:"total_used"`
	PeriodUsed             float64      `json:"period_used"`
	DailyAverage           float64      `json:"daily_average"`
	EstimatedDepletionDays *int         `json:"estimated_depletion_days"`
	DailyUsage             []DailyUsage `json:"daily_usage"`
}

// Aggregator folds a tenant's append-only ledger into an Overview.
type Aggregator struct {
	entries   store.LedgerStore
	locations LocationResolver
	now       func() time.Time
}

// NewAggregator creates an Aggregator. locations may be nil, in which case
// all tenants resolve to UTC.
func NewAggregator(entries store.LedgerStore, locations LocationResolver) *Aggregator {
	if locations == nil {
		locations = UTCLocations
	}
	return &Aggregator{
		entries:   entries,
		locations: locations,
		now:       time.Now,
	}
}

// Overview folds every ledger entry for the tenant.
//
// charge, bonus, and refund amounts sum into TotalCharged (refunds restore
// spendable balance). usage amounts are stored signed but folded by absolute
// value into TotalUsed. adjustment folds by sign so the identity
// Balance = TotalCharged - TotalUsed holds for any entry mix. PeriodUsed
// restricts the usage sum to entries at or after the first calendar day of
// the current month in the tenant's timezone.
func (a *Aggregator) Overview(ctx context.Context, tenantID string) (*Overview, error) {
	entries, err := a.entries.AllForTenant(ctx, tenantID)
	if err != nil {
		return nil, billing.Wrap(billing.CodePersistence, err, "load ledger for overview")
	}

	loc := a.locations(ctx, tenantID)
	now := a.now().In(loc)
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(dailyWindowDays - 1))

	var totalCharged, totalUsed, periodUsed float64
	byDay := make(map[string]float64, dailyWindowDays)

	for _, e := range entries {
		switch e.Type {
		case store.EntryCharge, store.EntryBonus, store.EntryRefund:
			totalCharged += e.Amount
		case store.EntryUsage:
			used := math.Abs(e.Amount)
			totalUsed += used
			ts := e.CreatedAt.In(loc)
			if !ts.Before(periodStart) {
				periodUsed += used
			}
			if !ts.Before(windowStart) {
				byDay[ts.Format("2006-01-02")] += used
			}
		case store.EntryAdjustment:
			if e.Amount >= 0 {
				totalCharged += e.Amount
			} else {
				totalUsed += -e.Amount
			}
		}
	}

	// Pre-seed every day in the window so quiet days are explicit zeros;
	// the average is computed over nonzero days only.
	series := make([]DailyUsage, 0, dailyWindowDays)
	var nonzeroSum float64
	nonzeroDays := 0
	for day := windowStart; !day.After(now); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		amount := byDay[key]
		if amount > 0 {
			nonzeroSum += amount
			nonzeroDays++
		}
		series = append(series, DailyUsage{Date: key, Amount: round2(amount)})
	}

	balance := totalCharged - totalUsed
	var dailyAverage float64
	if nonzeroDays > 0 {
		dailyAverage = nonzeroSum / float64(nonzeroDays)
	}

	var depletion *int
	if dailyAverage > 0 {
		days := int(math.Ceil(balance / dailyAverage))
		if days < 0 {
			days = 0
		}
		depletion = &days
	}

	return &Overview{
		Balance:                round2(balance),
		TotalCharged:           round2(totalCharged),
		TotalUsed:              round2(totalUsed),
		PeriodUsed:             round2(periodUsed),
		DailyAverage:           round2(dailyAverage),
		EstimatedDepletionDays: depletion,
		DailyUsage:             series,
	}, nil
}

// PeriodUsage returns the tenant's absolute usage since the first calendar
// day of the current month in the tenant's timezone, unrounded. The alert
// detector uses this without paying for the full overview fold.
func (a *Aggregator) PeriodUsage(ctx context.Context, tenantID string) (float64, error) {
	entries, err := a.entries.AllForTenant(ctx, tenantID)
	if err != nil {
		return 0, billing.Wrap(billing.CodePersistence, err, "load period usage")
	}

	loc := a.locations(ctx, tenantID)
	now := a.now().In(loc)
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	var used float64
	for _, e := range entries {
		if e.Type != store.EntryUsage {
			continue
		}
		if e.CreatedAt.In(loc).Before(periodStart) {
			continue
		}
		used += math.Abs(e.Amount)
	}
	return used, nil
}
