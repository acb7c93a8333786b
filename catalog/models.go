package catalog

import (
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/types"
)

// Seeded plan categories. Categories are free-form; these are the ones the
// default catalog ships with.
const (
	CategoryData  = "data"
	CategoryVoice = "voice"
	CategorySMS   = "sms"
)

type Plan struct {
	types.Entity
	ID          id.PlanID   `json:"id"`
	Category    string      `json:"category"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       types.Money `json:"price"`
	Active      bool        `json:"active"`
}

type seedPlan struct {
	category string
	name     string
	price    int64
}

var defaultPlans = []seedPlan{
	{CategoryData, "toDus (600 MB)", 1000},
	{CategoryVoice, "5 minutes", 1000},
	{CategoryVoice, "10 minutes", 1800},
	{CategoryVoice, "15 minutes", 2500},
	{CategoryVoice, "25 minutes", 4000},
	{CategoryVoice, "40 minutes", 6000},
	{CategorySMS, "20 SMS", 400},
	{CategorySMS, "50 SMS", 800},
	{CategorySMS, "90 SMS", 1200},
	{CategorySMS, "120 SMS", 1500},
}

// DefaultPlans returns the seed catalog priced in the given currency.
// Each call returns fresh plans with new IDs.
func DefaultPlans(currency string) []*Plan {
	plans := make([]*Plan, 0, len(defaultPlans))
	for _, sp := range defaultPlans {
		plans = append(plans, &Plan{
			Entity:   types.NewEntity(),
			ID:       id.NewPlanID(),
			Category: sp.category,
			Name:     sp.name,
			Price:    types.New(sp.price, currency),
			Active:   true,
		})
	}
	return plans
}
