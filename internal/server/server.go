package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/config"
	"github.com/dukerupert/mealplan/internal/handler"
	"github.com/dukerupert/mealplan/internal/mealplan"
	"github.com/dukerupert/mealplan/internal/middleware"
	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/notify"
	"github.com/dukerupert/mealplan/internal/reconcile"
	"github.com/dukerupert/mealplan/internal/store"
	"github.com/dukerupert/mealplan/internal/subscription"
	ws "github.com/dukerupert/mealplan/internal/websocket"
)

// Checkout sessions per client IP per minute.
const checkoutLimit = 10

type Server struct {
	db             *sql.DB
	authn          middleware.Authenticator
	hub            *ws.Hub
	notifier       *notify.Notifier
	profileH       *handler.ProfileHandler
	subscriptionH  *handler.SubscriptionHandler
	webhookH       *handler.WebhookHandler
	mealPlanH      *handler.MealPlanHandler
	pushH          *handler.PushHandler
	rateLimiter    *middleware.RateLimiter
	originPatterns []string
	requestTimeout time.Duration
	generateLimit  time.Duration
	logger         *slog.Logger
}

// New wires every component from cfg. authn verifies session tokens.
func New(db *sql.DB, cfg *config.Config, authn middleware.Authenticator, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	profileStore := store.NewProfileStore(db)
	pushStore := store.NewPushStore(db)

	mailer := notify.NewMailer(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.From)
	pusher := notify.NewPusher(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Email.From)
	notifier := notify.New(mailer, pusher, pushStore, cfg.BaseURL, logger.With("component", "notify"))

	stripeClient := billing.NewClient(billing.Config{
		SecretKey:      cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		WeeklyPriceID:  cfg.Stripe.WeeklyPriceID,
		MonthlyPriceID: cfg.Stripe.MonthlyPriceID,
		YearlyPriceID:  cfg.Stripe.YearlyPriceID,
		SuccessURL:     cfg.BaseURL + "/?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      cfg.BaseURL + "/subscribe",
	})

	// Billing events and user actions both fan out to open sockets; the
	// notifier picks the ones worth an email or push.
	reconciler := reconcile.New(profileStore, logger.With("component", "reconcile"),
		func(_ context.Context, ev billing.Event, p model.Profile) {
			hub.PublishToUser(p.UserID, ws.ProfileUpdated(string(ev.Kind), p))
		},
		notifier.BillingEvent,
	)
	subscriptions := subscription.NewService(stripeClient, profileStore, logger.With("component", "subscription"),
		func(ctx context.Context, change subscription.Change, p model.Profile) {
			hub.PublishToUser(p.UserID, ws.ProfileUpdated(string(change), p))
			if change == subscription.ChangeCancelled {
				notifier.Cancelled(ctx, p)
			}
		},
	)

	generator := mealplan.NewGenerator(mealplan.Config{
		BaseURL: cfg.MealPlan.APIURL,
		APIKey:  cfg.MealPlan.APIKey,
		Model:   cfg.MealPlan.Model,
		Timeout: cfg.MealPlan.Timeout,
	})
	archive := mealplan.NewArchive(mealplan.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if !generator.Configured() {
		logger.Warn("meal plan generation disabled: MEALPLAN_API_KEY not set")
	}
	if archive == nil {
		logger.Info("meal plan archive disabled: S3 not configured")
	}
	mealPlans := mealplan.NewService(generator, archive, logger.With("component", "mealplan"))

	return &Server{
		db:             db,
		authn:          authn,
		hub:            hub,
		notifier:       notifier,
		profileH:       handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		subscriptionH:  handler.NewSubscriptionHandler(subscriptions, logger.With("component", "subscription")),
		webhookH:       handler.NewWebhookHandler(billing.NewGateway(cfg.Stripe.WebhookSecret), reconciler, logger.With("component", "webhook")),
		mealPlanH:      handler.NewMealPlanHandler(profileStore, mealPlans, logger.With("component", "mealplan")),
		pushH:          handler.NewPushHandler(profileStore, pushStore, pusher.PublicKey(), logger.With("component", "push")),
		rateLimiter:    middleware.NewRateLimiter(),
		originPatterns: cfg.OriginPatterns(),
		requestTimeout: cfg.RequestTimeout,
		generateLimit:  cfg.MealPlan.Timeout,
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the notifier so shutdown can wait for deliveries.
func (s *Server) Notifier() *notify.Notifier {
	return s.notifier
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(s.authn)
	optionalAuth := middleware.OptionalAuth(s.authn)

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /plans", s.subscriptionH.Plans)
	mux.HandleFunc("GET /subscription-status", s.profileH.SubscriptionStatus)
	mux.HandleFunc("POST /checkout", s.rateLimitedHandler(s.subscriptionH.Checkout))
	mux.HandleFunc("POST /webhook", s.webhookH.HandleStripe)
	mux.HandleFunc("GET /push/vapid-key", s.pushH.VAPIDKey)

	// Unsubscribe reports a missing session in a 200 body.
	mux.Handle("POST /unsubscribe", optionalAuth(http.HandlerFunc(s.subscriptionH.Unsubscribe)))

	// Session routes
	mux.Handle("POST /create-profile", requireAuth(http.HandlerFunc(s.profileH.Create)))
	mux.Handle("GET /profile/subscription-status", requireAuth(http.HandlerFunc(s.profileH.Mine)))
	mux.Handle("POST /profile/change-plan", requireAuth(http.HandlerFunc(s.subscriptionH.ChangePlan)))
	mux.Handle("GET /mealplan/latest", requireAuth(http.HandlerFunc(s.mealPlanH.Latest)))
	mux.Handle("POST /push/subscribe", requireAuth(http.HandlerFunc(s.pushH.Subscribe)))
	mux.Handle("GET /ws", requireAuth(ws.Handler(s.hub, s.originPatterns, s.logger.With("component", "websocket"))))

	// Generation waits on a model completion, so it runs under its own
	// deadline instead of the default one.
	root := http.NewServeMux()
	root.Handle("POST /generate-mealplan",
		middleware.Timeout(s.generateLimit)(requireAuth(http.HandlerFunc(s.mealPlanH.Generate))))
	root.Handle("/", middleware.Timeout(s.requestTimeout)(mux))

	var h http.Handler = root
	h = middleware.Recover(s.logger.With("component", "recover"))(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, checkoutLimit, time.Minute)
	return rl(h).ServeHTTP
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
