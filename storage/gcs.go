package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsTimeout = 50 * time.Second

type GCSBackend struct {
	cl           *storage.Client
	bucketName   string
	signingEmail string
	privateKey   []byte
	urlTTL       time.Duration
}

// NewGCSBackend uses application default credentials. When signingEmail and
// privateKey are set they sign download URLs instead of the ambient
// credentials.
func NewGCSBackend(ctx context.Context, bucketName, signingEmail, privateKey string, urlTTL time.Duration) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	var key []byte
	if privateKey != "" {
		// keys coming from env files carry literal \n sequences
		key = []byte(strings.ReplaceAll(privateKey, `\n`, "\n"))
	}

	return &GCSBackend{
		cl:           client,
		bucketName:   bucketName,
		signingEmail: signingEmail,
		privateKey:   key,
		urlTTL:       urlTTL,
	}, nil
}

func (g *GCSBackend) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	wc := g.cl.Bucket(g.bucketName).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	return nil
}

func (g *GCSBackend) URL(ctx context.Context, key string) (string, error) {
	bucket := g.cl.Bucket(g.bucketName)

	if _, err := bucket.Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(g.urlTTL),
	}
	if g.signingEmail != "" && len(g.privateKey) > 0 {
		opts.GoogleAccessID = g.signingEmail
		opts.PrivateKey = g.privateKey
	}

	signedURL, err := bucket.SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return signedURL, nil
}

func (g *GCSBackend) Delete(ctx context.Context, key string) error {
	err := g.cl.Bucket(g.bucketName).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCSBackend) Close() error {
	return g.cl.Close()
}
