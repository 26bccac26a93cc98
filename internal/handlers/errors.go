package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/regprofile/internal/oauth"
	"github.com/charlesng35/regprofile/internal/services"
	appErrors "github.com/charlesng35/regprofile/pkg/errors"
	"github.com/charlesng35/regprofile/pkg/response"
)

// ConflictProblemType identifies a social profile already verified by another account.
const ConflictProblemType = "https://regprofile.dev/problems/social-profile-conflict"

var (
	errInvalidProfileURL = appErrors.New("INVALID_PROFILE_URL", "Profile URL must be an absolute http(s) URL", http.StatusBadRequest)
	errInvalidPayload    = appErrors.New("INVALID_DRAFT_DATA", "Draft data must be valid JSON", http.StatusBadRequest)
	errPayloadTooLarge   = appErrors.New("PAYLOAD_TOO_LARGE", "Draft data exceeds the maximum allowed size", http.StatusRequestEntityTooLarge)
	errProviderDisabled  = appErrors.New("PROVIDER_DISABLED", "Social provider is not configured", http.StatusServiceUnavailable)
)

// translateError maps domain errors onto API errors.
func translateError(err error) *appErrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrUserNotFound):
		return appErrors.ErrUserNotFound
	case errors.Is(err, services.ErrInvalidProvider):
		return appErrors.ErrInvalidProvider
	case errors.Is(err, services.ErrInvalidProfileURL):
		return errInvalidProfileURL
	case errors.Is(err, services.ErrInvalidSection):
		return appErrors.ErrInvalidSection
	case errors.Is(err, services.ErrInvalidPayload):
		return errInvalidPayload
	case errors.Is(err, services.ErrPayloadTooLarge):
		return errPayloadTooLarge
	case errors.Is(err, services.ErrDraftMissing):
		return appErrors.ErrDraftMissing
	case errors.Is(err, services.ErrDraftExpired):
		return appErrors.ErrDraftExpired
	case errors.Is(err, services.ErrDraftApplied):
		return appErrors.ErrDraftApplied
	case errors.Is(err, oauth.ErrTokenExchangeFailed):
		return appErrors.ErrTokenExchangeFailed.WithInternal(err)
	case errors.Is(err, oauth.ErrProfileFetchFailed):
		return appErrors.ErrProfileFetchFailed.WithInternal(err)
	case errors.Is(err, oauth.ErrProviderDisabled):
		return errProviderDisabled
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}

// respondError renders err, using problem+json for ownership conflicts.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrProfileConflict) {
		response.Problem(c, response.ProblemDetails{
			Type:   ConflictProblemType,
			Title:  "Social profile already verified",
			Status: http.StatusConflict,
			Detail: "This profile is already verified by another account.",
		})
		return
	}
	response.Error(c, translateError(err))
}
