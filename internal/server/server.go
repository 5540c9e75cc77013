package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mathom/internal/directory"
	"github.com/dukerupert/mathom/internal/handler"
	"github.com/dukerupert/mathom/internal/identity"
	"github.com/dukerupert/mathom/internal/middleware"
	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/snapshot"
	"github.com/dukerupert/mathom/internal/store"
)

// Config is the router-level configuration: the environment name and the
// shared secret guarding the cron endpoints.
type Config struct {
	Env        string
	CronSecret string
}

type Server struct {
	db          *sql.DB
	cfg         Config
	resolver    *identity.Resolver
	dir         *directory.Service
	runner      *snapshot.Runner
	quotes      *quote.Cache
	rateLimiter *middleware.RateLimiter

	contextH    *handler.ContextHandler
	onboardingH *handler.OnboardingHandler
	householdH  *handler.HouseholdHandler
	stockH      *handler.StockHandler
	pensionH    *handler.PensionHandler
	assetH      *handler.AssetHandler
	dashboardH  *handler.DashboardHandler
	snapshotH   *handler.SnapshotHandler
	securityH   *handler.SecurityHandler
	cronH       *handler.CronHandler

	logger *slog.Logger
}

func New(db *sql.DB, cfg Config, identityCfg identity.Config, quoteCfg quote.ClientConfig, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	householdStore := store.NewHouseholdStore(db)
	stockStore := store.NewStockStore(db)
	pensionStore := store.NewPensionStore(db)
	assetStore := store.NewAssetStore(db)
	snapshotStore := store.NewSnapshotStore(db)

	quotes := quote.NewCache(quote.NewClient(quoteCfg, logger), logger)
	runner := snapshot.NewRunner(householdStore, userStore, profileStore,
		stockStore, pensionStore, assetStore, snapshotStore, quotes, logger)

	return &Server{
		db:          db,
		cfg:         cfg,
		resolver:    identity.NewResolver(userStore, identityCfg, logger),
		dir:         directory.NewService(profileStore, householdStore, logger),
		runner:      runner,
		quotes:      quotes,
		rateLimiter: middleware.NewRateLimiter(),
		contextH:    handler.NewContextHandler(),
		onboardingH: handler.NewOnboardingHandler(profileStore, householdStore, logger.With("component", "onboarding")),
		householdH:  handler.NewHouseholdHandler(householdStore, profileStore, logger.With("component", "household")),
		stockH:      handler.NewStockHandler(stockStore),
		pensionH:    handler.NewPensionHandler(pensionStore),
		assetH:      handler.NewAssetHandler(assetStore),
		dashboardH:  handler.NewDashboardHandler(stockStore, pensionStore, assetStore, quotes),
		snapshotH:   handler.NewSnapshotHandler(snapshotStore),
		securityH:   handler.NewSecurityHandler(quotes),
		cronH:       handler.NewCronHandler(runner, stockStore, quotes, logger.With("component", "cron")),
		logger:      logger,
	}
}

// SnapshotRunner returns the runner so main can put it on an interval.
func (s *Server) SnapshotRunner() *snapshot.Runner {
	return s.runner
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Cron routes — shared-secret auth, no user identity
	cronMux := http.NewServeMux()
	cronMux.HandleFunc("GET /cron/snapshot", s.cronH.Snapshot)
	cronMux.HandleFunc("GET /cron/refresh-prices", s.cronH.RefreshPrices)
	cronAuth := middleware.RequireCronSecret(s.cfg.CronSecret, s.cfg.Env)
	outerMux.Handle("/cron/", cronAuth(cronMux))

	requireUser := middleware.RequireUser(s.resolver)

	// Onboarding needs an authenticated user but, by definition, no resolved
	// profile context. The exact pattern wins over the /api/ catch-all below.
	outerMux.Handle("POST /api/onboarding", requireUser(http.HandlerFunc(s.onboardingH.Onboard)))

	// Everything else under /api/ runs with a fully resolved caller context.
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	requireContext := middleware.RequireContext(s.dir)
	outerMux.Handle("/api/", requireUser(requireContext(apiMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/context", s.contextH.Get)
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Get)
	mux.HandleFunc("GET /api/snapshots", s.snapshotH.List)

	// Household + member routes
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Update)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("POST /api/households/{id}/members", s.householdH.AddMember)
	mux.HandleFunc("PUT /api/households/{id}/members/{profileId}", s.householdH.UpdateMemberRole)
	mux.HandleFunc("DELETE /api/households/{id}/members/{profileId}", s.householdH.RemoveMember)

	// Stock account routes
	mux.HandleFunc("GET /api/stock-accounts", s.stockH.ListAccounts)
	mux.HandleFunc("POST /api/stock-accounts", s.stockH.CreateAccount)
	mux.HandleFunc("PUT /api/stock-accounts/{id}", s.stockH.UpdateAccount)
	mux.HandleFunc("DELETE /api/stock-accounts/{id}", s.stockH.DeleteAccount)
	mux.HandleFunc("POST /api/stock-accounts/{id}/holdings", s.stockH.CreateHolding)
	mux.HandleFunc("PUT /api/stock-holdings/{id}", s.stockH.UpdateHolding)
	mux.HandleFunc("DELETE /api/stock-holdings/{id}", s.stockH.DeleteHolding)
	mux.HandleFunc("GET /api/stock-accounts/{id}/owners", s.stockH.GetOwners)
	mux.HandleFunc("PUT /api/stock-accounts/{id}/owners", s.stockH.ReplaceOwners)

	// Pension account routes
	mux.HandleFunc("GET /api/pension-accounts", s.pensionH.ListAccounts)
	mux.HandleFunc("POST /api/pension-accounts", s.pensionH.CreateAccount)
	mux.HandleFunc("PUT /api/pension-accounts/{id}", s.pensionH.UpdateAccount)
	mux.HandleFunc("DELETE /api/pension-accounts/{id}", s.pensionH.DeleteAccount)
	mux.HandleFunc("POST /api/pension-accounts/{id}/deposits", s.pensionH.CreateDeposit)
	mux.HandleFunc("DELETE /api/pension-deposits/{id}", s.pensionH.DeleteDeposit)
	mux.HandleFunc("GET /api/pension-accounts/{id}/owners", s.pensionH.GetOwners)
	mux.HandleFunc("PUT /api/pension-accounts/{id}/owners", s.pensionH.ReplaceOwners)

	// Misc asset routes
	mux.HandleFunc("GET /api/assets", s.assetH.List)
	mux.HandleFunc("POST /api/assets", s.assetH.Create)
	mux.HandleFunc("PUT /api/assets/{id}", s.assetH.Update)
	mux.HandleFunc("DELETE /api/assets/{id}", s.assetH.Delete)
	mux.HandleFunc("GET /api/assets/{id}/owners", s.assetH.GetOwners)
	mux.HandleFunc("PUT /api/assets/{id}/owners", s.assetH.ReplaceOwners)

	// Symbol search proxies a metered upstream, so it is limited per user.
	searchLimit := middleware.RateLimit(s.rateLimiter, middleware.UserKey, 30, time.Minute)
	mux.Handle("GET /api/securities/search", searchLimit(http.HandlerFunc(s.securityH.Search)))
}
