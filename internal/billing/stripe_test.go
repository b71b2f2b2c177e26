package billing

import (
	"testing"

	"github.com/dukerupert/mealplan/internal/model"
)

func TestPriceIDForTier(t *testing.T) {
	c := NewClient(Config{
		SecretKey:      "sk_test",
		WeeklyPriceID:  "price_week",
		MonthlyPriceID: "price_month",
	})

	tests := []struct {
		tier   model.Tier
		want   string
		wantOK bool
	}{
		{model.TierWeek, "price_week", true},
		{model.TierMonth, "price_month", true},
		{model.TierYear, "", false},
		{model.Tier("day"), "", false},
	}

	for _, tt := range tests {
		got, ok := c.PriceIDForTier(tt.tier)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PriceIDForTier(%q) = %q, %v; want %q, %v", tt.tier, got, ok, tt.want, tt.wantOK)
		}
	}
}
