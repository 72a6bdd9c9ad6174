package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/events"
	"github.com/krishkalaria12/snap-classify/jobs"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both missing records and records owned by someone
	// else.
	ErrNotFound          = errors.New("image not found")
	ErrInvalidStorageID  = errors.New("invalid storage id")
	ErrAlreadyClassified = errors.New("image already classified")
)

type BlobResolver interface {
	URL(ctx context.Context, storageID string) (string, error)
	Owns(ctx context.Context, storageID string, userID uint) (bool, error)
}

type Publisher interface {
	Publish(userID uint, ev events.Event)
}

// ImageView is an image record with its display URL resolved. URL is empty
// when the blob can no longer be served.
type ImageView struct {
	models.Image
	URL string `json:"url"`
}

type Store struct {
	db         *gorm.DB
	blobs      BlobResolver
	dispatcher jobs.Dispatcher
	publisher  Publisher
}

func NewStore(db *gorm.DB, blobs BlobResolver, dispatcher jobs.Dispatcher, publisher Publisher) *Store {
	return &Store{
		db:         db,
		blobs:      blobs,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
}

// Create saves a new pending image and schedules its classification once the
// insert has committed.
func (s *Store) Create(ctx context.Context, storageID, prompt string, userID uint) (string, error) {
	if userID == 0 {
		return "", auth.ErrUnauthenticated
	}

	owns, err := s.blobs.Owns(ctx, storageID, userID)
	if err != nil {
		return "", err
	}
	if !owns {
		return "", ErrInvalidStorageID
	}

	image := models.Image{
		ID:        uuid.NewString(),
		StorageID: storageID,
		UserID:    userID,
		Prompt:    &prompt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&image).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	s.publisher.Publish(userID, events.Event{Type: events.TypeCreated, ImageID: image.ID})

	job := jobs.Job{ImageID: image.ID, StorageID: storageID, Prompt: prompt}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		logger.Error("failed to enqueue classification", logger.SourceQueue, zap.String("image_id", image.ID), zap.Error(err))
		if patchErr := s.Patch(context.WithoutCancel(ctx), image.ID, jobs.MsgClassifyFailed); patchErr != nil {
			logger.Error("failed to mark image as failed", zap.String("image_id", image.ID), zap.Error(patchErr))
		}
	}

	return image.ID, nil
}

// Patch writes the terminal classification. It succeeds only once per image.
func (s *Store) Patch(ctx context.Context, imageID, classification string) error {
	var image models.Image
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", imageID).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ? AND classification IS NULL", imageID).
		Update("classification", classification)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyClassified
	}

	s.publisher.Publish(image.UserID, events.Event{Type: events.TypeClassified, ImageID: imageID})
	return nil
}

// ListByOwner returns the caller's images, newest first. Anonymous callers
// get an empty list.
func (s *Store) ListByOwner(ctx context.Context, userID uint) ([]ImageView, error) {
	views := []ImageView{}
	if userID == 0 {
		return views, nil
	}

	var images []models.Image
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&images).Error; err != nil {
		return nil, err
	}

	for _, image := range images {
		views = append(views, ImageView{Image: image, URL: s.resolveURL(ctx, image.StorageID)})
	}
	return views, nil
}

// GetOne returns ErrNotFound for unknown ids, malformed ids, anonymous
// callers and images owned by another user alike.
func (s *Store) GetOne(ctx context.Context, imageID string, userID uint) (*ImageView, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	if _, err := uuid.Parse(imageID); err != nil {
		return nil, ErrNotFound
	}

	var image models.Image
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", imageID, userID).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ImageView{Image: image, URL: s.resolveURL(ctx, image.StorageID)}, nil
}

// ImageURL is the internal lookup the classification worker uses.
func (s *Store) ImageURL(ctx context.Context, storageID string) (string, error) {
	return s.blobs.URL(ctx, storageID)
}

func (s *Store) resolveURL(ctx context.Context, storageID string) string {
	u, err := s.blobs.URL(ctx, storageID)
	if err != nil {
		logger.Warn("failed to resolve image url", logger.SourceStorage, zap.String("storage_id", storageID), zap.Error(err))
		return ""
	}
	return u
}
