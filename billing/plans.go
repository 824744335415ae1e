package billing

// Plan represents a billing plan with its monthly credit allowance.
type Plan struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PriceMonthly   int      `json:"price_monthly"`   // cents
	MonthlyCredits float64  `json:"monthly_credits"` // 0 = no credit limit
	MaxAgents      int      `json:"max_agents"`      // 0 = unlimited
	MaxSeats       int      `json:"max_seats"`       // 0 = unlimited
	RetentionDays  int      `json:"retention_days"`
	Features       []string `json:"features,omitempty"`
}

// Predefined billing plans.
var (
	PlanFree = Plan{
		ID:             "free",
		Name:           "Free",
		PriceMonthly:   0,
		MonthlyCredits: 25,
		MaxAgents:      2,
		MaxSeats:       3,
		RetentionDays:  7,
	}

	PlanStarter = Plan{
		ID:             "starter",
		Name:           "Starter",
		PriceMonthly:   4900, // $49
		MonthlyCredits: 100,
		MaxAgents:      10,
		MaxSeats:       10,
		RetentionDays:  30,
		Features:       []string{"email-support", "budget-alerts"},
	}

	PlanProfessional = Plan{
		ID:             "professional",
		Name:           "Professional",
		PriceMonthly:   19900, // $199
		MonthlyCredits: 500,
		MaxAgents:      50,
		MaxSeats:       0, // unlimited
		RetentionDays:  90,
		Features:       []string{"email-support", "budget-alerts", "priority-runs", "advanced-analytics"},
	}

	PlanEnterprise = Plan{
		ID:             "enterprise",
		Name:           "Enterprise",
		PriceMonthly:   0, // custom pricing
		MonthlyCredits: 0, // no credit limit
		MaxAgents:      0, // unlimited
		MaxSeats:       0, // unlimited
		RetentionDays:  365,
		Features: []string{
			"sso",
			"dedicated-infrastructure",
			"sla-guarantee",
			"priority-support",
			"budget-alerts",
			"advanced-analytics",
			"audit-log-export",
		},
	}

	// AllPlans is the ordered list of available plans.
	AllPlans = []Plan{PlanFree, PlanStarter, PlanProfessional, PlanEnterprise}
)

// PlanByID looks up a plan by its identifier. Returns nil if not found.
func PlanByID(id string) *Plan {
	for i := range AllPlans {
		if AllPlans[i].ID == id {
			p := AllPlans[i]
			return &p
		}
	}
	return nil
}

// IsUnlimited reports whether the plan has no monthly credit limit.
func (p Plan) IsUnlimited() bool {
	return p.MonthlyCredits == 0
}
