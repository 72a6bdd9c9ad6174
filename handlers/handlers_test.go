package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/config"
	"github.com/krishkalaria12/snap-classify/database/databasetest"
	"github.com/krishkalaria12/snap-classify/events"
	handler "github.com/krishkalaria12/snap-classify/handlers"
	"github.com/krishkalaria12/snap-classify/images"
	"github.com/krishkalaria12/snap-classify/jobs"
	"github.com/krishkalaria12/snap-classify/router"
	"github.com/krishkalaria12/snap-classify/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blobBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *blobBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *blobBackend) URL(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return "", storage.ErrObjectNotFound
	}
	return "https://blobs.test/" + key, nil
}

func (b *blobBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type queue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *queue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queue) Start(jobs.Handler) error { return nil }

func (q *queue) Close() error { return nil }

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app   *fiber.App
	store *images.Store
	queue *queue
	hub   *events.Hub
}

func newTestServer(t *testing.T) *testServer {
	db := databasetest.New(t)

	authService := auth.NewService(db, config.AuthConfig{
		JWTSecret:      "secret",
		Issuer:         "snap-classify",
		URL:            "http://localhost:3000",
		TokenDuration:  time.Hour,
		CookieDuration: time.Hour,
		AvatarDir:      t.TempDir(),
	})
	storageService := storage.NewService(db, &blobBackend{objects: map[string][]byte{}}, config.StorageConfig{
		PublicBaseURL: "http://localhost:3000",
		UploadPath:    "images/",
		UploadURLTTL:  time.Hour,
	}, "secret")

	q := &queue{}
	hub := events.NewHub()
	store := images.NewStore(db, storageService, q, hub)

	h := handler.New(authService, storageService, store, hub, handler.Options{
		DefaultPrompt:  config.DefaultPrompt,
		CookieDuration: time.Hour,
	})

	app := fiber.New()
	router.SetupRoutes(app, h, authService, []string{"http://localhost:3000"})

	return &testServer{app: app, store: store, queue: q, hub: hub}
}

func (s *testServer) do(t *testing.T, method, target, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) signUp(t *testing.T, username string) string {
	t.Helper()

	status, _ := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"name":     username,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identity": username,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, status)

	var user struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.NotEmpty(t, user.Token)
	return user.Token
}

func (s *testServer) upload(t *testing.T, token string, body []byte) (int, string) {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/storage/upload-url", token, nil)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		UploadURL string `json:"uploadUrl"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return s.postBytes(t, data.UploadURL, body)
}

func (s *testServer) postBytes(t *testing.T, uploadURL string, body []byte) (int, string) {
	t.Helper()

	u, err := url.Parse(uploadURL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, u.RequestURI(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "image/png")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		StorageID string `json:"storageId"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.StorageID
}

func TestAnonymousAccess(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/images", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	status, env = s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(env.Data))

	status, _ = s.do(t, http.MethodPost, "/api/storage/upload-url", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/images", "", map[string]string{"storageId": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/api/images/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	status, _ := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identity": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUploadAndClassifyFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "alice")

	status, storageID := s.upload(t, token, []byte("\x89PNG\r\n\x1a\nimage"))
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, storageID)

	status, env := s.do(t, http.MethodPost, "/api/images", token, map[string]string{"storageId": storageID})
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, s.queue.jobs, 1)
	assert.Equal(t, config.DefaultPrompt, s.queue.jobs[0].Prompt)

	status, env = s.do(t, http.MethodGet, "/api/images", token, nil)
	require.Equal(t, http.StatusOK, status)

	var list []images.ImageView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Nil(t, list[0].Classification)
	assert.Contains(t, list[0].URL, "https://blobs.test/")

	require.NoError(t, s.store.Patch(context.Background(), created.ID, "A tabby cat."))

	status, env = s.do(t, http.MethodGet, "/api/images/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, status)

	var view images.ImageView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotNil(t, view.Classification)
	assert.Equal(t, "A tabby cat.", *view.Classification)
}

func TestForeignImagesAreHidden(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "alice")
	bob := s.signUp(t, "bob")

	_, storageID := s.upload(t, alice, []byte("image"))
	status, env := s.do(t, http.MethodPost, "/api/images", alice, map[string]string{"storageId": storageID, "prompt": "What is this?"})
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	status, _ = s.do(t, http.MethodGet, "/api/images/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/images/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodGet, "/api/images", bob, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	status, _ = s.do(t, http.MethodPost, "/api/images", bob, map[string]string{"storageId": storageID})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUploadURLIsSingleUse(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "alice")

	status, env := s.do(t, http.MethodPost, "/api/storage/upload-url", token, nil)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		UploadURL string `json:"uploadUrl"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	status, _ = s.postBytes(t, data.UploadURL, []byte("image"))
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.postBytes(t, data.UploadURL, []byte("image"))
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.postBytes(t, "http://localhost:3000/api/storage/upload?token=garbage", []byte("image"))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEventStreamEndsWhenHubCloses(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "alice")

	s.hub.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/images/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, ": connected\n\n", string(body))
}
