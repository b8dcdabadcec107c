package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apiverse/internal/app"
	"apiverse/internal/transport/http/response"
)

const maxUploadSize = 10 << 20 // 10 MB

type FileSearchHandler struct {
	kbService     *app.KnowledgeBaseService
	docService    *app.DocumentService
	searchService *app.SearchService
}

type CreateKnowledgeBaseRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description" binding:"max=500"`
}

type SearchRequest struct {
	KnowledgeBaseID uint   `json:"knowledge_base_id" binding:"required,gt=0"`
	Query           string `json:"query" binding:"required"`
}

func NewFileSearchHandler(
	kbService *app.KnowledgeBaseService,
	docService *app.DocumentService,
	searchService *app.SearchService,
) *FileSearchHandler {
	return &FileSearchHandler{
		kbService:     kbService,
		docService:    docService,
		searchService: searchService,
	}
}

func (h *FileSearchHandler) CreateKnowledgeBase(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	kb, err := h.kbService.Create(userID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create knowledge base failed")
		}
		return
	}

	response.OK(c, kb)
}

func (h *FileSearchHandler) ListKnowledgeBases(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	list, err := h.kbService.List(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list knowledge bases failed")
		return
	}

	response.OK(c, list)
}

func (h *FileSearchHandler) DeleteKnowledgeBase(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	kbID, err := parseUintParam(c, "id")
	if err != nil || kbID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}

	if err := h.kbService.Delete(c.Request.Context(), userID, kbID); err != nil {
		if errors.Is(err, app.ErrKnowledgeBaseNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete knowledge base failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_knowledge_base_id": kbID})
}

// UploadDocument accepts a multipart form with "file"; the raw bytes are
// kept durably and mirrored into the remote store.
func (h *FileSearchHandler) UploadDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	kbID, err := parseUintParam(c, "id")
	if err != nil || kbID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if fileHeader.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	doc, err := h.docService.Ingest(c.Request.Context(), app.IngestInput{
		UserID:          userID,
		KnowledgeBaseID: kbID,
		Filename:        fileHeader.Filename,
		MimeType:        fileHeader.Header.Get("Content-Type"),
		Data:            data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrKnowledgeBaseNotFound):
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
		case errors.Is(err, app.ErrRemoteUpload):
			response.Error(c, http.StatusBadGateway, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, doc)
}

func (h *FileSearchHandler) ListDocuments(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	kbID, err := parseUintParam(c, "id")
	if err != nil || kbID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}

	docs, err := h.docService.List(userID, kbID)
	if err != nil {
		if errors.Is(err, app.ErrKnowledgeBaseNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		}
		return
	}

	response.OK(c, docs)
}

func (h *FileSearchHandler) DeleteDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	kbID, err := parseUintParam(c, "id")
	if err != nil || kbID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	docID, err := parseUintParam(c, "docID")
	if err != nil || docID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.docService.Delete(c.Request.Context(), userID, kbID, docID); err != nil {
		switch {
		case errors.Is(err, app.ErrKnowledgeBaseNotFound):
			response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": docID})
}

func (h *FileSearchHandler) Search(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), app.SearchInput{
		UserID:          userID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Query:           req.Query,
	})
	if err != nil {
		writeSearchError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *FileSearchHandler) SearchStream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	streamSearch(c, h.searchService, app.SearchInput{
		UserID:          userID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Query:           req.Query,
	})
}

func (h *FileSearchHandler) GetQuota(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	used, limit, remaining, err := h.searchService.Quota(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get quota failed")
		return
	}

	response.OK(c, gin.H{"used": used, "limit": limit, "remaining": remaining})
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	return uint(u), err
}

func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrQuotaExceeded):
		response.Error(c, http.StatusPaymentRequired, response.CodeQuotaExceeded, err.Error())
	case errors.Is(err, app.ErrKnowledgeBaseNotFound):
		response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
	}
}

// streamSearch writes the widget SSE protocol: {"text"} deltas, one
// {"error"} frame on rejection, {"done"} at the end of a delivered answer.
func streamSearch(c *gin.Context, searchService *app.SearchService, in app.SearchInput) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	writeFrame := func(frame map[string]interface{}) error {
		payload, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := searchService.SearchStream(c.Request.Context(), in, func(chunk string) error {
		return writeFrame(map[string]interface{}{"text": chunk})
	})
	if err != nil {
		// Rejections (quota, ownership) happen before any fragment is sent,
		// so a single error frame is safe here.
		_ = writeFrame(map[string]interface{}{"error": err.Error()})
		return
	}

	_ = writeFrame(map[string]interface{}{"done": true})
}
