package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/handlers"
	"github.com/charlesng35/regprofile/internal/middleware"
	"github.com/charlesng35/regprofile/internal/monitoring"
	"github.com/charlesng35/regprofile/internal/monitoring/checks"
	"github.com/charlesng35/regprofile/internal/services"
)

// RateLimitConfig bounds requests per client IP and route on the social endpoints.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Store    middleware.RateStore
}

// OAuthDeps wires the browser redirect flow. The flow is disabled when Authorizer is nil.
type OAuthDeps struct {
	Authorizer handlers.AuthorizationURLBuilder
	StateCodec *iauth.StateCodec
	Config     handlers.OAuthHandlerConfig
}

// Dependencies carries everything the router needs to build handlers.
type Dependencies struct {
	DB        *gorm.DB
	Verifier  iauth.TokenVerifier
	Resolver  middleware.UserResolver
	Social    *services.SocialProfileService
	Drafts    *services.DraftService
	OAuth     OAuthDeps
	RateLimit RateLimitConfig
	// Readiness defaults to a database probe when nil.
	Readiness *monitoring.Readiness
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Verifier == nil {
		return nil, errors.New("token verifier must be provided")
	}
	if deps.Resolver == nil {
		return nil, errors.New("identity resolver must be provided")
	}

	socialHandler, err := handlers.NewSocialProfileHandler(deps.Social)
	if err != nil {
		return nil, err
	}
	draftHandler, err := handlers.NewDraftHandler(deps.Drafts)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	readiness := deps.Readiness
	if readiness == nil {
		readiness = monitoring.NewReadiness(checks.Database(deps.DB, 0))
	}

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/health/ready", handlers.Readiness(readiness))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.Auth(deps.Verifier, deps.Resolver)
	limiter := rateLimiter(deps.RateLimit)

	if deps.OAuth.Authorizer != nil {
		oauthHandler, err := handlers.NewOAuthHandler(deps.Social, deps.OAuth.Authorizer, deps.OAuth.StateCodec, deps.OAuth.Config)
		if err != nil {
			return nil, err
		}
		registerOAuthRoutes(r, oauthHandler, requireAuth, limiter)
	}

	api := r.Group("/api")
	api.Use(requireAuth)

	profile := api.Group("/profile")
	registerSocialRoutes(profile, socialHandler, limiter)
	registerDraftRoutes(profile, draftHandler)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func rateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	requests := cfg.Requests
	if requests <= 0 {
		requests = 30
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return middleware.RateLimit(cfg.Store, requests, window)
}
