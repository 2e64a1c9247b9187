package handler

import (
	"net/http"

	"wildlife-governance/internal/adapter/http/middleware"
	wshub "wildlife-governance/internal/adapter/websocket"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	MemberSvc      ports.MemberService
	TokenSvc       ports.TokenService
	LedgerSvc      ports.LedgerService
	ExchangeSvc    ports.ExchangeService
	RegistrySvc    ports.RegistryService
	VotingSvc      ports.VotingService
	StatsSvc       ports.StatsService
	EventFeed      ports.EventFeed
	Hub            *wshub.Hub                 // nil = websocket stream disabled
	RateLimitStore ports.RateLimitStore       // nil = rate limiting disabled
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	Metrics        middleware.RequestObserver // nil = HTTP metrics disabled
	MetricsHandler http.Handler               // nil = no /metrics endpoint
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthSvc, deps.MemberSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.ExchangeSvc, deps.StatsSvc)
	exchangeHandler := NewExchangeHandler(deps.ExchangeSvc)
	projectHandler := NewProjectHandler(deps.RegistrySvc, deps.VotingSvc)
	eventHandler := NewEventHandler(deps.EventFeed, deps.Hub)

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	v1.GET("/exchange/config", rl("read"), exchangeHandler.GetConfig)
	v1.GET("/exchange/quote", rl("read"), exchangeHandler.Quote)
	v1.GET("/ledger/balance/:account", rl("read"), ledgerHandler.Balance)
	v1.GET("/ledger/supply", rl("read"), ledgerHandler.Supply)
	v1.GET("/stats", rl("read"), ledgerHandler.Stats)
	v1.GET("/events", rl("read"), eventHandler.List)
	v1.GET("/events/ws", eventHandler.Stream)

	v1.GET("/projects", rl("read"), projectHandler.List)
	v1.GET("/projects/:id", rl("read"), projectHandler.Get)
	v1.GET("/projects/:id/votes", rl("read"), projectHandler.Votes)
	v1.GET("/projects/:id/eligibility", rl("read"), projectHandler.Eligibility)

	// --- JWT-authenticated routes ---
	authed := v1.Group("", jwtAuth)
	{
		authed.POST("/donations", rl("donations"), exchangeHandler.Donate)
		authed.GET("/donations", rl("read"), exchangeHandler.ListDonations)

		authed.POST("/projects", rl("projects"), projectHandler.Submit)
		authed.POST("/projects/:id/votes", rl("votes"), projectHandler.Vote)
		authed.GET("/projects/:id/votes/me", rl("read"), projectHandler.MyVote)

		// Role checks live in the services; RequireRole rejects early with the same code.
		authed.POST("/projects/:id/validate", rl("admin"),
			middleware.RequireRole(domain.RoleValidator, "validate projects"), projectHandler.Validate)
		authed.POST("/projects/:id/auto-validate", rl("admin"),
			middleware.RequireRole(domain.RoleOperator, "auto-validate projects"), projectHandler.AutoValidate)
		authed.POST("/projects/:id/resolve", rl("admin"), projectHandler.Resolve)
		authed.POST("/projects/:id/execute", rl("admin"),
			middleware.RequireRole(domain.RoleOperator, "execute projects"), projectHandler.Execute)

		authed.POST("/ledger/mint", rl("admin"),
			middleware.RequireRole(domain.RoleMinter, "mint tokens"), ledgerHandler.Mint)
		authed.PUT("/exchange/config", rl("admin"),
			middleware.RequireRole(domain.RoleOperator, "update the exchange config"), exchangeHandler.UpdateConfig)
		authed.POST("/members/:account/roles", rl("admin"),
			middleware.RequireRole(domain.RoleOperator, "grant roles"), authHandler.GrantRole)
	}

	return r
}
