package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apiverse/internal/app"
	"apiverse/internal/transport/http/response"
)

type APIKeyHandler struct {
	keyService *app.APIKeyService
}

type CreateAPIKeyRequest struct {
	Label string `json:"label" binding:"max=100"`
}

func NewAPIKeyHandler(keyService *app.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keyService: keyService}
}

func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	key, err := h.keyService.Create(userID, req.Label)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create api key failed")
		}
		return
	}

	response.OK(c, key)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	keys, err := h.keyService.List(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list api keys failed")
		return
	}

	response.OK(c, keys)
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	keyID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || keyID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid api key id")
		return
	}

	if err := h.keyService.Delete(userID, uint(keyID64)); err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete api key failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_key_id": uint(keyID64)})
}
