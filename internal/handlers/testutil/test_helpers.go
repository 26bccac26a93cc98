package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/api"
	iauth "github.com/charlesng35/regprofile/internal/auth"
	sharedtestutil "github.com/charlesng35/regprofile/internal/database/testutil"
	"github.com/charlesng35/regprofile/internal/handlers"
	"github.com/charlesng35/regprofile/internal/identity"
	"github.com/charlesng35/regprofile/internal/middleware"
	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
	"github.com/charlesng35/regprofile/internal/services"
	"github.com/charlesng35/regprofile/pkg/response"
)

const (
	jwtSecret = "test-suite-super-secret-key-32-bytes!!"
	stateKey  = "test-suite-state-signing-key-32b!"

	// CallbackBaseURL is the public origin used to build OAuth redirect URIs in tests.
	CallbackBaseURL = "https://api.regprofile.test"
	// FrontendOrigin is the only absolute return origin accepted in tests.
	FrontendOrigin = "https://app.regprofile.test"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	JWT       *iauth.JWTService
	State     *iauth.StateCodec
	Exchanger *StubExchanger
	Social    *services.SocialProfileService
	Drafts    *services.DraftService
	Clock     *Clock
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	rateLimit int
}

// WithRateLimit overrides the per-route request budget on the social endpoints.
func WithRateLimit(requests int) EnvOption {
	return func(cfg *envConfig) {
		cfg.rateLimit = requests
	}
}

// Clock is a manually advanced time source shared by every service in an Env.
type Clock struct {
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// StubExchanger stands in for the provider round trip.
type StubExchanger struct {
	Profile oauth.Profile
	Err     error

	GotCode     string
	GotRedirect string
}

// Exchange returns the configured profile or error.
func (s *StubExchanger) Exchange(_ context.Context, _ models.SocialProvider, code, redirectURI string) (oauth.Profile, error) {
	s.GotCode = code
	s.GotRedirect = redirectURI
	return s.Profile, s.Err
}

// AuthCodeURL builds a fake authorize URL carrying the state and redirect URI.
func (s *StubExchanger) AuthCodeURL(provider models.SocialProvider, state, redirectURI string) (string, error) {
	return "https://" + string(provider) + ".example.com/authorize?state=" + state + "&redirect_uri=" + redirectURI, nil
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := envConfig{rateLimit: 1000}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
		Clock:          clock.Now,
	})
	require.NoError(t, err)

	resolver, err := identity.NewResolver(db)
	require.NoError(t, err)

	ledger, err := services.NewVerificationLedger(db, services.WithLedgerClock(clock.Now))
	require.NoError(t, err)

	exchanger := &StubExchanger{}
	social, err := services.NewSocialProfileService(db, ledger,
		services.WithExchanger(exchanger),
		services.WithSocialClock(clock.Now),
	)
	require.NoError(t, err)

	drafts, err := services.NewDraftService(db, services.WithDraftClock(clock.Now))
	require.NoError(t, err)

	codec, err := iauth.NewStateCodec([]byte(stateKey), iauth.DefaultStateTTL, clock.Now)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:       db,
		Verifier: jwtSvc,
		Resolver: resolver,
		Social:   social,
		Drafts:   drafts,
		OAuth: api.OAuthDeps{
			Authorizer: exchanger,
			StateCodec: codec,
			Config: handlers.OAuthHandlerConfig{
				CallbackBaseURL:      CallbackBaseURL,
				AllowedReturnOrigins: []string{FrontendOrigin},
				DefaultReturnURL:     "/registration",
			},
		},
		RateLimit: api.RateLimitConfig{
			Requests: cfg.rateLimit,
			Window:   time.Minute,
			Store:    middleware.NewMemoryRateStore(),
		},
	})
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		JWT:       jwtSvc,
		State:     codec,
		Exchanger: exchanger,
		Social:    social,
		Drafts:    drafts,
		Clock:     clock,
	}
}

// CreateUser inserts a user with a random email and returns the record.
func (e *Env) CreateUser() *models.User {
	e.T.Helper()

	user := &models.User{Email: "user-" + uuid.NewString() + "@example.com"}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues a bearer token whose subject is the user's id.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		Subject:       user.ID,
		Email:         user.Email,
		EmailVerified: true,
	})
	require.NoError(e.T, err)
	return token
}

// TokenFor issues a bearer token for arbitrary claims.
func (e *Env) TokenFor(input iauth.AccessTokenInput) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(input)
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	switch v := body.(type) {
	case nil:
		buf = bytes.NewBuffer(nil)
	case string:
		buf = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// StateFromLocation extracts the state parameter from a provider redirect.
func StateFromLocation(t *testing.T, location string) string {
	t.Helper()

	_, query, ok := strings.Cut(location, "?")
	require.True(t, ok, location)
	for _, pair := range strings.Split(query, "&") {
		if value, found := strings.CutPrefix(pair, "state="); found {
			return value
		}
	}
	t.Fatalf("state missing from %s", location)
	return ""
}
