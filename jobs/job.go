package jobs

import (
	"context"

	"github.com/krishkalaria12/snap-classify/logger"
	"go.uber.org/zap"
)

// Job asks for one image to be classified.
type Job struct {
	ImageID   string `json:"imageId"`
	StorageID string `json:"storageId"`
	Prompt    string `json:"prompt"`
}

// Handler runs a job to completion. It owns all error handling; nothing is
// retried.
type Handler func(ctx context.Context, job Job)

// Dispatcher hands jobs to a Handler without making the caller wait.
type Dispatcher interface {
	// Start begins delivering jobs to handler. Call it once everything the
	// handler touches has been built.
	Start(handler Handler) error
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// run keeps a panicking handler from taking the process down with it.
func run(ctx context.Context, handler Handler, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job handler panicked", logger.SourceWorker, zap.String("image_id", job.ImageID), zap.Any("panic", r))
		}
	}()

	handler(ctx, job)
}
