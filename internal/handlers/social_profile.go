package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/services"
	"github.com/charlesng35/regprofile/pkg/response"
)

// SocialProfileHandler exposes social profile verification endpoints.
type SocialProfileHandler struct {
	svc *services.SocialProfileService
}

// NewSocialProfileHandler wires the social profile endpoints to the service.
func NewSocialProfileHandler(svc *services.SocialProfileService) (*SocialProfileHandler, error) {
	if svc == nil {
		return nil, errors.New("social profile handler: service is required")
	}
	return &SocialProfileHandler{svc: svc}, nil
}

type linkCallbackRequest struct {
	Provider   string `json:"provider" validate:"required,max=32"`
	ProfileURL string `json:"profileUrl" validate:"required,max=2048,profile_url"`
	Subject    string `json:"subject" validate:"omitempty,max=255"`
}

type disconnectRequest struct {
	Provider string `json:"provider" validate:"required,max=32"`
}

type linkResultDTO struct {
	Provider   string    `json:"provider"`
	ProfileURL string    `json:"profileUrl"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

type providerStatusDTO struct {
	IsConnected bool       `json:"isConnected"`
	ProfileURL  *string    `json:"profileUrl"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
}

type socialStatusDTO struct {
	LinkedIn providerStatusDTO `json:"linkedIn"`
	GitHub   providerStatusDTO `json:"gitHub"`
}

type verificationEventDTO struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	Action        string    `json:"action"`
	ProfileURL    *string   `json:"profileUrl"`
	Outcome       string    `json:"outcome"`
	FailureReason *string   `json:"failureReason"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LinkCallback POST /api/profile/social/link-callback
func (h *SocialProfileHandler) LinkCallback(c *gin.Context) {
	var req linkCallbackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.TryLink(requestContext(c), services.LinkInput{
		UserID:     currentUserID(c),
		Provider:   req.Provider,
		ProfileURL: req.ProfileURL,
		Subject:    req.Subject,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toLinkResultDTO(result))
}

// Status GET /api/profile/social/status
func (h *SocialProfileHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(requestContext(c), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toSocialStatusDTO(status))
}

// Disconnect POST /api/profile/social/disconnect
func (h *SocialProfileHandler) Disconnect(c *gin.Context) {
	var req disconnectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.svc.Disconnect(requestContext(c), currentUserID(c), req.Provider)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toSocialStatusDTO(status))
}

// History GET /api/profile/social/history?limit=
func (h *SocialProfileHandler) History(c *gin.Context) {
	limit := services.ClampHistoryLimit(parseIntQuery(c, "limit", services.DefaultHistoryLimit))

	events, err := h.svc.History(requestContext(c), currentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]verificationEventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toVerificationEventDTO(event))
	}
	response.SuccessWithMeta(c, http.StatusOK, dtos, &response.Meta{Limit: limit, Count: len(dtos)})
}

func toLinkResultDTO(result *services.LinkResult) linkResultDTO {
	return linkResultDTO{
		Provider:   string(result.Provider),
		ProfileURL: result.ProfileURL,
		VerifiedAt: result.VerifiedAt,
	}
}

func toProviderStatusDTO(status services.ProviderStatus) providerStatusDTO {
	return providerStatusDTO{
		IsConnected: status.IsConnected,
		ProfileURL:  status.ProfileURL,
		VerifiedAt:  status.VerifiedAt,
	}
}

func toSocialStatusDTO(status *services.SocialStatus) socialStatusDTO {
	return socialStatusDTO{
		LinkedIn: toProviderStatusDTO(status.LinkedIn),
		GitHub:   toProviderStatusDTO(status.GitHub),
	}
}

func toVerificationEventDTO(event models.SocialVerificationEvent) verificationEventDTO {
	return verificationEventDTO{
		ID:            event.ID,
		Provider:      event.Provider,
		Action:        string(event.Action),
		ProfileURL:    event.ProfileURL,
		Outcome:       event.Outcome,
		FailureReason: event.FailureReason,
		CreatedAt:     event.CreatedAt,
	}
}
