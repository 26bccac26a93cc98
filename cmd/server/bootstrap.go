package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/api"
	"github.com/charlesng35/regprofile/internal/app"
	"github.com/charlesng35/regprofile/internal/app/maintenance"
	iauth "github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/cache"
	"github.com/charlesng35/regprofile/internal/database"
	"github.com/charlesng35/regprofile/internal/identity"
	"github.com/charlesng35/regprofile/internal/middleware"
	"github.com/charlesng35/regprofile/internal/monitoring"
	"github.com/charlesng35/regprofile/internal/monitoring/checks"
	"github.com/charlesng35/regprofile/internal/oauth"
	"github.com/charlesng35/regprofile/internal/services"
	"github.com/charlesng35/regprofile/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisClient
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	redisCfg, useRedis, err := cfg.Cache.RateStoreRedis()
	if err != nil {
		return nil, err
	}
	if useRedis {
		if stack.Redis, err = cache.NewRedisClient(ctx, redisCfg); err != nil {
			log.Warn("redis unavailable; falling back to in-process rate limiting", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", redisCfg.Address))
			stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
		}
	}

	verifier, err := buildVerifier(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	resolver, err := identity.NewResolver(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise identity resolver: %w", err)
	}

	oauthClient, err := oauth.NewClient(cfg.OAuth.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise oauth client: %w", err)
	}

	ledger, err := services.NewVerificationLedger(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise verification ledger: %w", err)
	}

	social, err := services.NewSocialProfileService(stack.DB, ledger, services.WithExchanger(oauthClient))
	if err != nil {
		return nil, fmt.Errorf("initialise social profile service: %w", err)
	}

	drafts, err := services.NewDraftService(stack.DB, cfg.Drafts.ServiceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise draft service: %w", err)
	}

	stateKey, err := cfg.OAuth.StateSigningKey()
	if err != nil {
		return nil, fmt.Errorf("decode oauth state key: %w", err)
	}
	stateCodec, err := iauth.NewStateCodec(stateKey, cfg.OAuth.StateTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise oauth state codec: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(drafts, maintenance.WithDraftSchedule(cfg.Maintenance.DraftSweepSchedule))
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	var pinger checks.Pinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	readiness := monitoring.NewReadiness(
		checks.Database(stack.DB, 0),
		checks.RateStore(pinger, cfg.Cache.Redis.Enabled, 0),
	)

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:       stack.DB,
		Verifier: verifier,
		Resolver: resolver,
		Social:   social,
		Drafts:   drafts,
		OAuth: api.OAuthDeps{
			Authorizer: oauthClient,
			StateCodec: stateCodec,
			Config:     cfg.OAuth.HandlerConfig(),
		},
		RateLimit: api.RateLimitConfig{
			Requests: cfg.Server.RateLimit.Requests,
			Window:   cfg.Server.RateLimit.Window,
			Store:    stack.RateStore,
		},
		Readiness: readiness,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildVerifier prefers OIDC discovery when an issuer is configured.
func buildVerifier(ctx context.Context, cfg *app.Config, log *zap.Logger) (iauth.TokenVerifier, error) {
	if cfg.Auth.UsesOIDC() {
		verifier, err := iauth.NewOIDCVerifier(ctx, cfg.Auth.OIDCVerifierConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise oidc verifier: %w", err)
		}
		log.Info("verifying bearer tokens with oidc issuer", zap.String("issuer", cfg.Auth.OIDC.Issuer))
		return verifier, nil
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	return jwtSvc, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs did not stop before shutdown deadline")
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	var hostCfg app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		hostCfg = cfg.Database.Postgres
	case "mysql":
		hostCfg = cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(hostCfg.Host)
	dbCfg.Port = hostCfg.Port
	dbCfg.Name = strings.TrimSpace(hostCfg.Database)
	dbCfg.User = strings.TrimSpace(hostCfg.Username)
	dbCfg.Password = hostCfg.Password
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
