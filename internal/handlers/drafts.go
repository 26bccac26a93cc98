package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/services"
	"github.com/charlesng35/regprofile/pkg/response"
)

// DraftHandler exposes registration draft autosave endpoints.
type DraftHandler struct {
	svc *services.DraftService
}

// NewDraftHandler constructs a DraftHandler.
func NewDraftHandler(svc *services.DraftService) (*DraftHandler, error) {
	if svc == nil {
		return nil, errors.New("draft handler: service is required")
	}
	return &DraftHandler{svc: svc}, nil
}

type saveDraftRequest struct {
	Section   string          `json:"section" validate:"required,max=32"`
	DraftData json.RawMessage `json:"draftData" validate:"required"`
	DataHash  string          `json:"dataHash" validate:"omitempty,max=128"`
}

type savedDraftDTO struct {
	Section   string    `json:"section"`
	SavedAt   time.Time `json:"savedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type draftDTO struct {
	Section   string          `json:"section"`
	DraftData json.RawMessage `json:"draftData"`
	DataHash  *string         `json:"dataHash"`
	SavedAt   time.Time       `json:"savedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Save POST /api/profile/draft
func (h *DraftHandler) Save(c *gin.Context) {
	var req saveDraftRequest
	if !bindAndValidate(c, &req) {
		return
	}

	draft, err := h.svc.Save(requestContext(c), currentUserID(c), req.Section, req.DraftData, req.DataHash)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, savedDraftDTO{
		Section:   string(draft.Section),
		SavedAt:   draft.UpdatedAt,
		ExpiresAt: draft.ExpiresAt,
	})
}

// Get GET /api/profile/draft/:section
func (h *DraftHandler) Get(c *gin.Context) {
	draft, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("section"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toDraftDTO(draft))
}

// Delete DELETE /api/profile/draft/:section
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("section")); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// MarkApplied POST /api/profile/draft/:section/applied
func (h *DraftHandler) MarkApplied(c *gin.Context) {
	if err := h.svc.MarkApplied(requestContext(c), currentUserID(c), c.Param("section")); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

func toDraftDTO(draft *models.RegistrationDraft) draftDTO {
	return draftDTO{
		Section:   string(draft.Section),
		DraftData: json.RawMessage(draft.Payload),
		DataHash:  draft.DataHash,
		SavedAt:   draft.UpdatedAt,
		ExpiresAt: draft.ExpiresAt,
	}
}
