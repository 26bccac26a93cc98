package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/regprofile/internal/auth"
	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/services"
	"github.com/charlesng35/regprofile/pkg/logger"
)

// Link outcomes reported to the frontend through the socialLink query parameter.
const (
	LinkOutcomeLinked   = "linked"
	LinkOutcomeConflict = "conflict"
	LinkOutcomeFailed   = "failed"
)

// AuthorizationURLBuilder produces provider authorize URLs.
type AuthorizationURLBuilder interface {
	AuthCodeURL(provider models.SocialProvider, state, redirectURI string) (string, error)
}

// OAuthHandlerConfig configures redirect handling for the provider round trip.
type OAuthHandlerConfig struct {
	// CallbackBaseURL is the externally reachable origin of this service.
	CallbackBaseURL string
	// AllowedReturnOrigins lists absolute origins a returnUrl may point to.
	// Relative paths are always accepted.
	AllowedReturnOrigins []string
	// DefaultReturnURL is used when returnUrl is missing or rejected.
	DefaultReturnURL string
}

// OAuthHandler drives the browser redirect flow that proves profile ownership.
type OAuthHandler struct {
	svc        *services.SocialProfileService
	authorizer AuthorizationURLBuilder
	codec      *iauth.StateCodec
	cfg        OAuthHandlerConfig
	origins    map[string]struct{}
}

// NewOAuthHandler constructs an OAuthHandler.
func NewOAuthHandler(svc *services.SocialProfileService, authorizer AuthorizationURLBuilder, codec *iauth.StateCodec, cfg OAuthHandlerConfig) (*OAuthHandler, error) {
	if svc == nil {
		return nil, errors.New("oauth handler: service is required")
	}
	if authorizer == nil {
		return nil, errors.New("oauth handler: authorizer is required")
	}
	if codec == nil {
		return nil, errors.New("oauth handler: state codec is required")
	}
	cfg.CallbackBaseURL = strings.TrimRight(strings.TrimSpace(cfg.CallbackBaseURL), "/")
	if cfg.DefaultReturnURL == "" {
		cfg.DefaultReturnURL = "/"
	}

	origins := make(map[string]struct{}, len(cfg.AllowedReturnOrigins))
	for _, origin := range cfg.AllowedReturnOrigins {
		if normalized := originOf(origin); normalized != "" {
			origins[normalized] = struct{}{}
		}
	}

	return &OAuthHandler{svc: svc, authorizer: authorizer, codec: codec, cfg: cfg, origins: origins}, nil
}

// Start GET /oauth/:provider/start?returnUrl=
func (h *OAuthHandler) Start(c *gin.Context) {
	provider, err := models.ParseSocialProvider(c.Param("provider"))
	if err != nil {
		respondError(c, services.ErrInvalidProvider)
		return
	}

	state, err := h.codec.Encode(iauth.StatePayload{
		UserID:    currentUserID(c),
		Provider:  string(provider),
		ReturnURL: h.sanitizeReturnURL(c.Query("returnUrl")),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	target, err := h.authorizer.AuthCodeURL(provider, state, h.redirectURI(provider))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Redirect(http.StatusFound, target)
}

// Callback GET /oauth/:provider/callback?code=&state=
func (h *OAuthHandler) Callback(c *gin.Context) {
	log := logger.FromContext(requestContext(c), "oauth")

	payload, err := h.codec.Decode(c.Query("state"))
	if err != nil {
		log.Warn("rejected oauth callback state", zap.Error(err))
		h.finish(c, h.cfg.DefaultReturnURL, LinkOutcomeFailed)
		return
	}

	provider, err := models.ParseSocialProvider(c.Param("provider"))
	if err != nil || string(provider) != payload.Provider {
		log.Warn("oauth callback provider mismatch",
			zap.String("path_provider", c.Param("provider")),
			zap.String("state_provider", payload.Provider),
		)
		h.finish(c, payload.ReturnURL, LinkOutcomeFailed)
		return
	}

	if denied := c.Query("error"); denied != "" {
		log.Info("provider denied authorization",
			zap.String("provider", payload.Provider),
			zap.String("error", denied),
		)
		h.finish(c, payload.ReturnURL, LinkOutcomeFailed)
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		h.finish(c, payload.ReturnURL, LinkOutcomeFailed)
		return
	}

	_, err = h.svc.CompleteOAuth(requestContext(c), payload.UserID, payload.Provider, code, h.redirectURI(provider))
	switch {
	case err == nil:
		h.finish(c, payload.ReturnURL, LinkOutcomeLinked)
	case errors.Is(err, services.ErrProfileConflict):
		h.finish(c, payload.ReturnURL, LinkOutcomeConflict)
	default:
		log.Warn("oauth link failed",
			zap.String("provider", payload.Provider),
			zap.String("user_id", payload.UserID),
			zap.Error(err),
		)
		h.finish(c, payload.ReturnURL, LinkOutcomeFailed)
	}
}

func (h *OAuthHandler) redirectURI(provider models.SocialProvider) string {
	return h.cfg.CallbackBaseURL + "/oauth/" + string(provider) + "/callback"
}

func (h *OAuthHandler) finish(c *gin.Context, target, outcome string) {
	c.Redirect(http.StatusFound, appendLinkOutcome(h.sanitizeReturnURL(target), outcome))
}

// sanitizeReturnURL accepts relative paths and absolute URLs on an allowed origin.
func (h *OAuthHandler) sanitizeReturnURL(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") {
		return h.cfg.DefaultReturnURL
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed
	}
	if origin := originOf(trimmed); origin != "" {
		if _, ok := h.origins[origin]; ok {
			return trimmed
		}
	}
	return h.cfg.DefaultReturnURL
}

func originOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return scheme + "://" + strings.ToLower(parsed.Host)
}

func appendLinkOutcome(target, outcome string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		parsed = &url.URL{Path: "/"}
	}
	q := parsed.Query()
	q.Set("socialLink", outcome)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
