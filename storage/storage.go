package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/config"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const UploadRoute = "/api/storage/upload"

var (
	ErrInvalidUploadURL = errors.New("upload URL is invalid or expired")
	ErrUploadURLUsed    = errors.New("upload URL has already been used")
	ErrEmptyUpload      = errors.New("upload body is empty")
)

// Service issues single-use upload URLs, accepts the uploaded bytes and
// resolves storage ids to download URLs.
type Service struct {
	db         *gorm.DB
	backend    Backend
	secret     []byte
	baseURL    string
	uploadPath string
	uploadTTL  time.Duration
}

func NewService(db *gorm.DB, backend Backend, cfg config.StorageConfig, secret string) *Service {
	return &Service{
		db:         db,
		backend:    backend,
		secret:     []byte(secret),
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		uploadPath: cfg.UploadPath,
		uploadTTL:  cfg.UploadURLTTL,
	}
}

// GenerateUploadURL returns a URL the caller can POST one file to.
func (s *Service) GenerateUploadURL(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", auth.ErrUnauthenticated
	}

	tokenStr, err := signUploadToken(s.secret, userID, uuid.NewString(), s.uploadTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload token: %w", err)
	}

	return fmt.Sprintf("%s%s?token=%s", s.baseURL, UploadRoute, url.QueryEscape(tokenStr)), nil
}

// Upload stores body under the storage id named by the token and returns
// that id. A token can be used once.
func (s *Service) Upload(ctx context.Context, tokenStr string, body []byte, contentType string) (string, error) {
	userID, storageID, err := parseUploadToken(s.secret, tokenStr)
	if err != nil {
		return "", ErrInvalidUploadURL
	}
	if len(body) == 0 {
		return "", ErrEmptyUpload
	}

	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = mimetype.Detect(body).String()
	}

	blob := models.Blob{
		ID:          storageID,
		UserID:      userID,
		ObjectKey:   s.uploadPath + storageID,
		ContentType: contentType,
		Size:        int64(len(body)),
	}

	// reserve the id first so a replayed token cannot write twice
	if err := s.reserve(ctx, &blob); err != nil {
		return "", err
	}

	if err := s.backend.Put(ctx, blob.ObjectKey, bytes.NewReader(body), blob.Size, contentType); err != nil {
		s.release(ctx, &blob)
		return "", err
	}

	logger.Info("blob uploaded", logger.SourceStorage,
		zap.String("storage_id", storageID),
		zap.Uint("user_id", userID),
		zap.String("content_type", contentType),
		zap.Int64("size", blob.Size))

	return storageID, nil
}

// release drops a reservation whose write failed, along with any partial
// object the backend kept.
func (s *Service) release(ctx context.Context, blob *models.Blob) {
	ctx = context.WithoutCancel(ctx)
	fields := []zap.Field{logger.SourceStorage, zap.String("storage_id", blob.ID)}

	if err := s.backend.Delete(ctx, blob.ObjectKey); err != nil && !errors.Is(err, ErrObjectNotFound) {
		logger.Warn("failed to remove partial object", append(fields, zap.Error(err))...)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Blob{}, "id = ?", blob.ID).Error; err != nil {
		logger.Error("failed to release blob reservation", append(fields, zap.Error(err))...)
	}
}

func (s *Service) reserve(ctx context.Context, blob *models.Blob) error {
	used, err := s.exists(ctx, "id = ?", blob.ID)
	if err != nil {
		return err
	}
	if used {
		return ErrUploadURLUsed
	}

	if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUploadURLUsed
		}
		if used, _ := s.exists(ctx, "id = ?", blob.ID); used {
			return ErrUploadURLUsed
		}
		return err
	}
	return nil
}

// URL resolves a storage id to a download URL. A blob that is unknown or no
// longer in the backend yields "" and no error.
func (s *Service) URL(ctx context.Context, storageID string) (string, error) {
	var blob models.Blob
	if err := s.db.WithContext(ctx).Where("id = ?", storageID).First(&blob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}

	u, err := s.backend.URL(ctx, blob.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", nil
		}
		return "", err
	}
	return u, nil
}

// Owns reports whether storageID is an uploaded blob belonging to userID.
func (s *Service) Owns(ctx context.Context, storageID string, userID uint) (bool, error) {
	return s.exists(ctx, "id = ? AND user_id = ?", storageID, userID)
}

func (s *Service) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Blob{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
