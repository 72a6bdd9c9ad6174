package classifier

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/gift"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
	"google.golang.org/genai"
)

const JPEGQuality = 90

// GeminiClassifier downloads the image and sends it inline, scaled down to at
// most maxSize pixels on its longest side.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	maxSize int
	fetcher *imageFetcher
}

func NewGemini(ctx context.Context, apiKey, model string, maxSize int, timeout time.Duration) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClassifier{
		client:  client,
		model:   model,
		maxSize: maxSize,
		fetcher: &imageFetcher{client: &http.Client{Timeout: timeout}},
	}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, prompt, imageURL string) (string, error) {
	data, err := g.fetcher.fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}

	data, mimeType, err := prepareImage(data, g.maxSize)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

type imageFetcher struct {
	client *http.Client
}

func (f *imageFetcher) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d", res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

// prepareImage shrinks images larger than maxSize to fit and re-encodes them
// as JPEG. Formats the decoder does not know are passed through untouched.
func prepareImage(data []byte, maxSize int) ([]byte, string, error) {
	mimeType := mimetype.Detect(data).String()
	if maxSize <= 0 {
		return data, mimeType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mimeType, nil
	}

	bounds := src.Bounds()
	if bounds.Dx() <= maxSize && bounds.Dy() <= maxSize {
		return data, mimeType, nil
	}

	g := gift.New(gift.ResizeToFit(maxSize, maxSize, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(bounds))
	g.Draw(dst, src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
