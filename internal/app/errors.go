package app

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrEmailExists           = errors.New("email already registered")
	ErrInvalidCredential     = errors.New("invalid email or password")
	ErrUserInactive          = errors.New("user account is inactive")
	ErrAPIKeyNotFound        = errors.New("api key not found")
	ErrInvalidAPIKey         = errors.New("invalid api key")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrQuotaExceeded         = errors.New("search quota exceeded")
	ErrRemoteUpload          = errors.New("remote upload failed")
	ErrContentMissing        = errors.New("durable document content missing")
	ErrSearchFailed          = errors.New("search failed")
)
