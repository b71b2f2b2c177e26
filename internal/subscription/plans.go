package subscription

import "github.com/dukerupert/mealplan/internal/model"

// Plan is a purchasable subscription as shown on the pricing page.
type Plan struct {
	Name        string     `json:"name"`
	Tier        model.Tier `json:"interval"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	IsPopular   bool       `json:"isPopular"`
	Description string     `json:"description"`
	Features    []string   `json:"features"`
}

var plans = []Plan{
	{
		Name:        "Weekly Plan",
		Tier:        model.TierWeek,
		Amount:      9.99,
		Currency:    "USD",
		Description: "Great if you want to try the service before committing longer.",
		Features: []string{
			"7-day meal plan",
			"Basic shopping list",
			"Essential recipes",
			"Cancel anytime",
		},
	},
	{
		Name:        "Monthly Plan",
		Tier:        model.TierMonth,
		Amount:      39.99,
		Currency:    "USD",
		IsPopular:   true,
		Description: "Perfect for ongoing, month-to-month meal planning and features.",
		Features: []string{
			"30-day meal planning",
			"Advanced shopping lists",
			"Full recipe collection",
			"Basic nutrition tracking",
			"Cancel anytime",
		},
	},
	{
		Name:        "Yearly Plan",
		Tier:        model.TierYear,
		Amount:      299.99,
		Currency:    "USD",
		Description: "Best value for those committed to improving their diet long-term.",
		Features: []string{
			"Unlimited meal planning",
			"Advanced shopping lists",
			"Premium recipe collection",
			"Nutrition analytics",
			"Cancel anytime",
		},
	},
}

// Plans returns the catalog, shortest interval first.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}
