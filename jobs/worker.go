package jobs

import (
	"context"
	"errors"

	"github.com/krishkalaria12/snap-classify/logger"
	"go.uber.org/zap"
)

// Terminal texts written when classification cannot produce a result.
const (
	MsgImageUnavailable = "Error: Could not retrieve image for analysis."
	MsgClassifyFailed   = "Error: Failed to classify image."
)

var errEmptyClassification = errors.New("empty classification")

// RecordStore is the part of the image store the worker writes through.
type RecordStore interface {
	ImageURL(ctx context.Context, storageID string) (string, error)
	Patch(ctx context.Context, imageID, classification string) error
}

type Classifier interface {
	Classify(ctx context.Context, prompt, imageURL string) (string, error)
}

// Worker classifies one image per job and always leaves the record in a
// terminal state.
type Worker struct {
	store      RecordStore
	classifier Classifier
}

func NewWorker(store RecordStore, classifier Classifier) *Worker {
	return &Worker{store: store, classifier: classifier}
}

func (w *Worker) Handle(ctx context.Context, job Job) {
	log := logger.With(logger.SourceWorker, zap.String("image_id", job.ImageID), zap.String("storage_id", job.StorageID))

	imageURL, err := w.store.ImageURL(ctx, job.StorageID)
	if err != nil || imageURL == "" {
		log.Error("could not get url for stored image", zap.Error(err))
		w.finish(ctx, log, job, MsgImageUnavailable)
		return
	}

	classification, err := w.classify(ctx, job.Prompt, imageURL)
	if err != nil {
		log.Error("failed to classify image", zap.Error(err))
		w.finish(ctx, log, job, MsgClassifyFailed)
		return
	}

	log.Info("image classified")
	w.finish(ctx, log, job, classification)
}

func (w *Worker) classify(ctx context.Context, prompt, imageURL string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("classifier panicked")
			logger.Error("classifier panic", logger.SourceClassifier, zap.Any("panic", r))
		}
	}()

	text, err = w.classifier.Classify(ctx, prompt, imageURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errEmptyClassification
	}
	return text, nil
}

func (w *Worker) finish(ctx context.Context, log *zap.Logger, job Job, classification string) {
	if err := w.store.Patch(ctx, job.ImageID, classification); err != nil {
		log.Error("failed to store classification", zap.Error(err))
	}
}
