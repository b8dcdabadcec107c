package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"apiverse/internal/app"
	"apiverse/internal/transport/http/response"
)

// WidgetHandler serves third-party embeddable widgets authenticated by API
// key. Searches are charged to the key owner's quota.
type WidgetHandler struct {
	keyService    *app.APIKeyService
	kbService     *app.KnowledgeBaseService
	searchService *app.SearchService
}

type WidgetSearchRequest struct {
	Query           string `json:"query" binding:"required"`
	KnowledgeBaseID uint   `json:"knowledge_base_id"`
}

func NewWidgetHandler(
	keyService *app.APIKeyService,
	kbService *app.KnowledgeBaseService,
	searchService *app.SearchService,
) *WidgetHandler {
	return &WidgetHandler{
		keyService:    keyService,
		kbService:     kbService,
		searchService: searchService,
	}
}

// Config is public: the widget bootstraps itself from the key in its embed
// snippet before any search happens.
func (h *WidgetHandler) Config(c *gin.Context) {
	user, err := h.keyService.ResolveUser(c.Param("apiKey"))
	if err != nil {
		if errors.Is(err, app.ErrInvalidAPIKey) {
			response.Error(c, http.StatusNotFound, response.CodeForbidden, "invalid API key")
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "widget config failed")
		}
		return
	}

	var defaultKBID uint
	if kb, err := h.kbService.DefaultForUser(user.ID); err == nil {
		defaultKBID = kb.ID
	}

	response.OK(c, gin.H{
		"valid":                     true,
		"company_name":              user.CompanyName,
		"company_url":               user.CompanyURL,
		"default_knowledge_base_id": defaultKBID,
		"theme": gin.H{
			"primaryColor": "#6366f1",
			"position":     "bottom-right",
		},
	})
}

// resolveKB applies the widget default: when no knowledge base is named,
// the key owner's oldest one is used.
func (h *WidgetHandler) resolveKB(c *gin.Context, userID, requested uint) (uint, bool) {
	if requested != 0 {
		if _, err := h.kbService.GetOwned(userID, requested); err != nil {
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, "knowledge base not accessible")
			return 0, false
		}
		return requested, true
	}
	kb, err := h.kbService.DefaultForUser(userID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no knowledge base specified or found")
		return 0, false
	}
	return kb.ID, true
}

func (h *WidgetHandler) Search(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "invalid API key context")
		return
	}

	var req WidgetSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	kbID, ok := h.resolveKB(c, userID, req.KnowledgeBaseID)
	if !ok {
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), app.SearchInput{
		UserID:          userID,
		KnowledgeBaseID: kbID,
		Query:           req.Query,
	})
	if err != nil {
		writeSearchError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *WidgetHandler) SearchStream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "invalid API key context")
		return
	}

	var req WidgetSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	kbID, ok := h.resolveKB(c, userID, req.KnowledgeBaseID)
	if !ok {
		return
	}

	streamSearch(c, h.searchService, app.SearchInput{
		UserID:          userID,
		KnowledgeBaseID: kbID,
		Query:           req.Query,
	})
}
