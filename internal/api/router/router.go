package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sherlock-labs/screenshot-sherlock/internal/http/handlers"
	httpmiddleware "github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Users          *handlers.UserHandler
	Screenshots    *handlers.ScreenshotHandler
	Analyses       *handlers.AnalysisHandler
	Conversations  *handlers.ConversationHandler
	Wingman        *handlers.WingmanHandler
	OSINT          *handlers.OSINTHandler
	MetricsHandler http.Handler

	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter

	// RequestTimeout bounds every /api request. OSINT scans can take minutes,
	// so it should exceed the scan timeout.
	RequestTimeout time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Use(httpmiddleware.UserJWT(cfg.JWTSecret))
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		if cfg.Users != nil {
			api.Get("/me", cfg.Users.GetMe)
			api.Put("/me/preferences", cfg.Users.UpdatePreferences)
		}
		if cfg.Screenshots != nil {
			api.Post("/screenshots", cfg.Screenshots.Upload)
		}
		if cfg.Analyses != nil {
			api.Route("/analyses", func(r chi.Router) {
				r.Post("/", cfg.Analyses.Analyze)
				r.Get("/{analysisID}", cfg.Analyses.Get)
				r.Delete("/{analysisID}", cfg.Analyses.Delete)
			})
		}
		if cfg.Conversations != nil {
			api.Route("/conversations", func(r chi.Router) {
				r.Get("/", cfg.Conversations.List)
				r.Post("/", cfg.Conversations.Create)
				r.Route("/{conversationID}", func(c chi.Router) {
					c.Get("/", cfg.Conversations.Get)
					c.Put("/", cfg.Conversations.Update)
					c.Delete("/", cfg.Conversations.Delete)
					c.Get("/timeline", cfg.Conversations.Timeline)
					c.Get("/analyses", cfg.Conversations.Analyses)
				})
			})
		}
		if cfg.Wingman != nil {
			api.Route("/wingman", func(r chi.Router) {
				r.Post("/suggest-reply", cfg.Wingman.SuggestReply)
				r.Post("/reality-check/{analysisID}", cfg.Wingman.RealityCheck)
				r.Get("/coaching/{analysisID}", cfg.Wingman.Coaching)
				r.Get("/quick-stats/{analysisID}", cfg.Wingman.QuickStats)
				r.Get("/overthinking", cfg.Wingman.Overthinking)
			})
		}
		if cfg.OSINT != nil {
			api.Route("/osint", func(r chi.Router) {
				r.Post("/check/{username}", cfg.OSINT.Check)
				r.Post("/analyze-context", cfg.OSINT.AnalyzeContext)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
