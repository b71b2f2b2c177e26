package mealplan

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/model"
)

type planGenerator interface {
	Generate(ctx context.Context, in model.MealPlanInput) (model.WeeklyMealPlan, error)
}

// Service generates plans and archives them when storage is configured.
type Service struct {
	gen     planGenerator
	archive *Archive
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires a generator to an optional archive.
func NewService(gen planGenerator, archive *Archive, logger *slog.Logger) *Service {
	return &Service{gen: gen, archive: archive, logger: logger, now: time.Now}
}

// Create generates a plan for userID. An archive failure is logged and
// does not fail the request.
func (s *Service) Create(ctx context.Context, userID string, in model.MealPlanInput) (model.WeeklyMealPlan, error) {
	in = Normalize(in)

	plan, err := s.gen.Generate(ctx, in)
	if err != nil {
		metrics.MealPlansTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MealPlansTotal.WithLabelValues("generated").Inc()
	s.logger.Info("meal plan generated", "user_id", userID, "days", len(plan))

	if s.archive != nil {
		doc := Archived{GeneratedAt: s.now().UTC(), Input: in, MealPlan: plan}
		if err := s.archive.Save(ctx, userID, doc); err != nil {
			s.logger.Error("archive meal plan", "user_id", userID, "error", err)
		}
	}
	return plan, nil
}

// Latest returns the archived plan, or ErrNoPlan when none exists or
// archiving is off.
func (s *Service) Latest(ctx context.Context, userID string) (*Archived, error) {
	if s.archive == nil {
		return nil, ErrNoPlan
	}
	return s.archive.Latest(ctx, userID)
}
