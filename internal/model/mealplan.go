package model

// DailyMealPlan holds the meals suggested for a single day.
type DailyMealPlan struct {
	Breakfast string   `json:"Breakfast"`
	Lunch     string   `json:"Lunch"`
	Dinner    string   `json:"Dinner"`
	Snacks    []string `json:"Snacks,omitempty"`
}

// WeeklyMealPlan is keyed by weekday name ("Monday" .. "Sunday").
type WeeklyMealPlan map[string]DailyMealPlan

// MealPlanInput describes the preferences a plan is generated from.
type MealPlanInput struct {
	DietType  string `json:"dietType"`
	Calories  int    `json:"calories"`
	Allergies string `json:"allergies"`
	Cuisine   string `json:"cuisine"`
	Snacks    bool   `json:"snacks"`
	Days      int    `json:"days,omitempty"`
}
