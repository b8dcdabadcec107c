package app

import (
	"strings"

	"github.com/google/uuid"

	"apiverse/internal/model"
	"apiverse/internal/repository"
)

// APIKeyService issues and resolves the keys that authenticate embeddable
// widget traffic. Key material is opaque; usage is charged to the key owner.
type APIKeyService struct {
	keyRepo  *repository.APIKeyRepository
	userRepo *repository.UserRepository
}

func NewAPIKeyService(keyRepo *repository.APIKeyRepository, userRepo *repository.UserRepository) *APIKeyService {
	return &APIKeyService{
		keyRepo:  keyRepo,
		userRepo: userRepo,
	}
}

func (s *APIKeyService) Create(userID uint, label string) (*model.APIKey, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Default"
	}

	key := &model.APIKey{
		Key:    "ak_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID: userID,
		Label:  label,
	}
	if err := s.keyRepo.Create(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *APIKeyService) List(userID uint) ([]model.APIKey, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.keyRepo.ListByUserID(userID)
}

func (s *APIKeyService) Delete(userID, keyID uint) error {
	if userID == 0 || keyID == 0 {
		return ErrInvalidInput
	}
	return s.keyRepo.DeleteByIDAndUserID(keyID, userID)
}

// ResolveUser maps raw key material to its owning user by exact match.
func (s *APIKeyService) ResolveUser(rawKey string) (*model.User, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrInvalidAPIKey
	}
	record, err := s.keyRepo.GetByKey(rawKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrInvalidAPIKey
	}
	user, err := s.userRepo.GetByID(record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidAPIKey
	}
	return user, nil
}
