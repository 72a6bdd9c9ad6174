// Package classifier sends an image and an instruction to a vision-capable
// model and returns its text answer.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/krishkalaria12/snap-classify/config"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"
)

var ErrEmptyResponse = errors.New("no content in model response")

type Classifier interface {
	Classify(ctx context.Context, prompt, imageURL string) (string, error)
}

// New builds the classifier selected by cfg.Provider.
func New(ctx context.Context, cfg config.ClassifierConfig) (Classifier, error) {
	switch cfg.Provider {
	case "openai":
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, model), nil
	case "gemini":
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		return NewGemini(ctx, cfg.APIKey, model, cfg.MaxImageSize, cfg.DownloadTimeout)
	default:
		return nil, fmt.Errorf("unsupported classifier provider %q", cfg.Provider)
	}
}
