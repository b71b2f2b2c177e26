// Package mealplan generates weekly meal plans through an external
// chat-completions API and archives the latest plan per user.
package mealplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dukerupert/mealplan/internal/model"
)

const (
	DefaultCalories = 2000
	MaxDays         = 7
	DefaultTimeout  = 90 * time.Second
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "gpt-4o-mini"
)

var (
	ErrNotConfigured = errors.New("meal plan generator not configured")
	ErrBadResponse   = errors.New("meal plan generator returned an unusable response")
)

// Weekdays in plan order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Generator talks to an OpenAI-compatible chat completions endpoint.
type Generator struct {
	client     *openai.Client
	model      string
	configured bool
}

func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Generator{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		configured: cfg.APIKey != "",
	}
}

func (g *Generator) Configured() bool {
	return g.configured
}

// Normalize fills defaults and clamps the day count to a week.
func Normalize(in model.MealPlanInput) model.MealPlanInput {
	if in.Calories <= 0 {
		in.Calories = DefaultCalories
	}
	if in.Days <= 0 || in.Days > MaxDays {
		in.Days = MaxDays
	}
	in.DietType = strings.TrimSpace(in.DietType)
	in.Allergies = strings.TrimSpace(in.Allergies)
	in.Cuisine = strings.TrimSpace(in.Cuisine)
	return in
}

// Generate asks the model for a plan matching in, which must already be
// normalized.
func (g *Generator) Generate(ctx context.Context, in model.MealPlanInput) (model.WeeklyMealPlan, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(in)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, upstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	return parsePlan(resp.Choices[0].Message.Content, in.Days)
}

// upstreamError keeps the HTTP status of a failed call, whether or not the
// body carried an API error envelope.
func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("meal plan API returned %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("meal plan API returned %d", reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("meal plan API request: %w", err)
}

// parsePlan accepts either a bare weekday map or one wrapped in
// {"mealPlan": ...}, keeping only the first days weekdays.
func parsePlan(content string, days int) (model.WeeklyMealPlan, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var wrapped struct {
		MealPlan model.WeeklyMealPlan `json:"mealPlan"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.MealPlan) > 0 {
		return trimPlan(wrapped.MealPlan, days)
	}

	var plan model.WeeklyMealPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("%w: plan is not a weekday map: %v", ErrBadResponse, err)
	}
	return trimPlan(plan, days)
}

func trimPlan(plan model.WeeklyMealPlan, days int) (model.WeeklyMealPlan, error) {
	out := make(model.WeeklyMealPlan, days)
	for _, day := range Weekdays[:days] {
		if meals, ok := plan[day]; ok {
			out[day] = meals
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no weekdays in plan", ErrBadResponse)
	}
	return out, nil
}

const systemPrompt = `You are a professional nutritionist. Reply with a single JSON object whose keys are English weekday names starting with Monday. Each value is an object with string fields "Breakfast", "Lunch" and "Dinner", and an optional "Snacks" array of strings. Describe each meal briefly and include its approximate calories.`

func userPrompt(in model.MealPlanInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %d-day meal plan", in.Days)
	if in.DietType != "" {
		fmt.Fprintf(&b, " for a %s diet", in.DietType)
	}
	fmt.Fprintf(&b, " targeting about %d calories per day.", in.Calories)
	if in.Allergies != "" {
		fmt.Fprintf(&b, " Avoid: %s.", in.Allergies)
	} else {
		b.WriteString(" No allergies.")
	}
	if in.Cuisine != "" {
		fmt.Fprintf(&b, " Preferred cuisine: %s.", in.Cuisine)
	}
	if in.Snacks {
		b.WriteString(" Include snacks.")
	} else {
		b.WriteString(" Do not include snacks.")
	}
	return b.String()
}
