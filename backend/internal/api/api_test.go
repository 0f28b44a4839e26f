package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-base/backend/internal/api"
	"knowledge-base/backend/internal/auth"
	"knowledge-base/backend/internal/services"
	"knowledge-base/backend/internal/store"
	"knowledge-base/backend/pkg/config"
)

type envelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.MediaRoot = filepath.Join(dir, "media")
	cfg.RateLimitAPI = 0
	cfg.RateLimitLogin = 0
	cfg.RateLimitRegister = 0
	for _, m := range mutate {
		m(cfg)
	}

	manager := services.NewManager(db, services.SQLiteGraph(), services.Options{
		Issuer:         auth.NewIssuer(cfg.JWTSecret, time.Hour, 24*time.Hour),
		MediaRoot:      cfg.MediaRoot,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	router := api.NewRouter(api.Options{
		Config:   cfg,
		Services: manager,
		Health:   map[string]api.Pinger{"database": db.Ping},
	})
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) signUp(t *testing.T, name string) {
	t.Helper()
	s.token = ""
	w, env := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session struct {
		Tokens struct {
			Access string `json:"access"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	s.token = session.Tokens.Access
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type noteJSON struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	CategoryID *int64 `json:"category_id"`
	IsPinned   bool   `json:"is_pinned"`
}

type taggedJSON struct {
	Tags []struct {
		ID int64 `json:"id"`
	} `json:"tags"`
}

type pageJSON[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, env.Code)

	s.token = "garbage"
	w, _ = s.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, env := s.do(t, http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]any](t, env.Data)
	assert.Equal(t, "alice", profile["username"])
	assert.NotContains(t, profile, "password_hash")

	s.token = ""
	w, env = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", env.Message)

	w, env = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "password")
}

func TestNotesCRUD(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, env := s.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Work"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	category := decode[map[string]any](t, env.Data)
	categoryID := int64(category["id"].(float64))

	w, env = s.do(t, http.MethodPost, "/api/notes", map[string]any{
		"title":       "Hello World",
		"content":     "# Hello",
		"category_id": categoryID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := decode[noteJSON](t, env.Data)
	assert.Equal(t, "hello-world", note.Slug)
	require.NotNil(t, note.CategoryID)

	// Omitting category_id keeps it
	w, env = s.do(t, http.MethodPatch, fmt.Sprintf("/api/notes/%d", note.ID), map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[noteJSON](t, env.Data)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "hello-world", updated.Slug)
	require.NotNil(t, updated.CategoryID)

	// An explicit null clears it
	w, env = s.do(t, http.MethodPatch, fmt.Sprintf("/api/notes/%d", note.ID), json.RawMessage(`{"category_id": null}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[noteJSON](t, env.Data).CategoryID)

	w, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/notes/%d/pin", note.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[noteJSON](t, env.Data).IsPinned)

	w, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/notes/%d/increment-view", note.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, env.Data)["view_count"])

	w, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)

	w, _ = s.do(t, http.MethodGet, "/api/notes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotesArePrivate(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")
	w, env := s.do(t, http.MethodPost, "/api/notes", map[string]any{"title": "Secret"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[noteJSON](t, env.Data).ID

	s.signUp(t, "bob")
	w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/notes/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/graph/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string][]any](t, env.Data)
	assert.Empty(t, view["nodes"])
}

func TestNotesPagination(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")
	for i := 0; i < 3; i++ {
		w, _ := s.do(t, http.MethodPost, "/api/notes", map[string]any{"title": fmt.Sprintf("Note %d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := s.do(t, http.MethodGet, "/api/notes?page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageJSON[noteJSON]](t, env.Data)
	assert.Equal(t, int64(3), page.Count)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)

	w, env = s.do(t, http.MethodGet, "/api/notes?page_size=2&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[pageJSON[noteJSON]](t, env.Data)
	assert.Len(t, page.Results, 1)
	assert.Nil(t, page.Next)
	assert.NotNil(t, page.Previous)

	w, env = s.do(t, http.MethodGet, "/api/notes/search?q=note+1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[pageJSON[noteJSON]](t, env.Data).Count)

	w, _ = s.do(t, http.MethodGet, "/api/notes/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteTagsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, env := s.do(t, http.MethodPost, "/api/tags/bulk", map[string]any{"names": []string{"go", "sql"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Created []struct {
			ID int64 `json:"id"`
		} `json:"created"`
	}](t, env.Data)
	require.Len(t, created.Created, 2)

	w, env = s.do(t, http.MethodPost, "/api/notes", map[string]any{"title": "Tagged"})
	require.Equal(t, http.StatusCreated, w.Code)
	noteID := decode[noteJSON](t, env.Data).ID
	path := fmt.Sprintf("/api/notes/%d/tags", noteID)

	w, env = s.do(t, http.MethodPut, path, map[string]any{"tag_ids": []int64{created.Created[0].ID, created.Created[1].ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[taggedJSON](t, env.Data).Tags, 2)

	w, env = s.do(t, http.MethodDelete, path, map[string]any{"tag_ids": []int64{created.Created[0].ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[taggedJSON](t, env.Data).Tags, 1)

	w, env = s.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[taggedJSON](t, env.Data).Tags)
}

func TestGraphEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, env := s.do(t, http.MethodPost, "/api/notes", map[string]any{"title": "B"})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[noteJSON](t, env.Data)
	w, _ = s.do(t, http.MethodPost, "/api/notes", map[string]any{"title": "A", "content": fmt.Sprintf("[[note:%d]]", b.ID)})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/graph/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[struct {
		Nodes []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"nodes"`
		Links []struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"links"`
	}](t, env.Data)
	require.Len(t, view.Nodes, 2)
	require.Len(t, view.Links, 1)
	assert.Equal(t, "reference", view.Links[0].Type)

	w, env = s.do(t, http.MethodGet, "/api/graph/nodes/by_type?type=note", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]any](t, env.Data), 2)

	w, _ = s.do(t, http.MethodGet, "/api/graph/nodes/by_type?type=planet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	nodeID := map[string]int64{}
	for _, n := range view.Nodes {
		nodeID[n.Name] = n.ID
	}
	// A already references B, so the manual link goes the other way
	w, _ = s.do(t, http.MethodPost, "/api/graph/links", map[string]any{
		"source": nodeID["B"], "target": nodeID["A"], "link_type": "similar",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodPost, "/api/graph/links", map[string]any{
		"source": nodeID["B"], "target": nodeID["A"], "link_type": "similar",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/graph/links/by_node?node_id=%d", nodeID["A"]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]any](t, env.Data), 2)

	w, env = s.do(t, http.MethodDelete, "/api/graph/links/batch_delete", map[string]any{"link_ids": []int64{view.Links[0].ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode[map[string]any](t, env.Data)["deleted_count"])

	w, env = s.do(t, http.MethodDelete, "/api/graph/links/batch_delete", map[string]any{"ids": []int64{view.Links[0].ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "link_ids")
}

func TestAttachmentUpload(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := s.send(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	attachment := decode[map[string]any](t, env.Data)
	assert.Equal(t, "photo.png", attachment["name"])
	assert.Equal(t, "image", attachment["file_type"])
	assert.NotContains(t, attachment, "path")

	id := int64(attachment["id"].(float64))
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/attachments/%d/download", id), nil)
	w, _ = s.send(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\x89PNG fake", w.Body.String())

	w, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/attachments/%d", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/attachments", bytes.NewReader(nil))
	w, env = s.send(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "file")
}

func (s *testServer) upload(t *testing.T, name, data string) int64 {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := s.send(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](t, env.Data).ID
}

type attachmentJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FileType string `json:"file_type"`
}

func TestAttachmentListFilters(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	s.upload(t, "b-photo.png", "\x89PNG one")
	s.upload(t, "a-notes.txt", "plain text")
	s.upload(t, "c-photo.png", "\x89PNG two")

	w, env := s.do(t, http.MethodGet, "/api/attachments?type=image&order=name", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	images := decode[pageJSON[attachmentJSON]](t, env.Data)
	assert.Equal(t, int64(2), images.Count)
	require.Len(t, images.Results, 2)
	assert.Equal(t, "b-photo.png", images.Results[0].Name)
	assert.Equal(t, "c-photo.png", images.Results[1].Name)

	w, env = s.do(t, http.MethodGet, "/api/attachments?order=-name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[pageJSON[attachmentJSON]](t, env.Data)
	require.Len(t, all.Results, 3)
	assert.Equal(t, "c-photo.png", all.Results[0].Name)
	assert.Equal(t, "a-notes.txt", all.Results[2].Name)
	assert.Equal(t, "document", all.Results[2].FileType)

	w, env = s.do(t, http.MethodGet, "/api/attachments?type=spreadsheet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "type")

	w, env = s.do(t, http.MethodGet, "/api/attachments/recent?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]attachmentJSON](t, env.Data), 2)

	w, env = s.do(t, http.MethodGet, "/api/attachments/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]attachmentJSON](t, env.Data), 3)
}

type collectionJSON struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	IsProcessed bool   `json:"is_processed"`
}

func TestCollectionListFilters(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	for _, c := range []map[string]any{
		{"url": "https://example.com/go", "title": "Gophers", "description": "concurrency notes"},
		{"url": "https://example.com/sql", "title": "Query plans"},
		{"url": "https://example.com/misc", "title": "archive", "description": "all about goroutines"},
	} {
		w, _ := s.do(t, http.MethodPost, "/api/collections", c)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w, env := s.do(t, http.MethodGet, "/api/collections?search=gorout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decode[pageJSON[collectionJSON]](t, env.Data)
	require.Len(t, found.Results, 1)
	assert.Equal(t, "archive", found.Results[0].Title)

	w, env = s.do(t, http.MethodGet, "/api/collections?order=title", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ordered := decode[pageJSON[collectionJSON]](t, env.Data)
	require.Len(t, ordered.Results, 3)
	assert.Equal(t, []string{"archive", "Gophers", "Query plans"},
		[]string{ordered.Results[0].Title, ordered.Results[1].Title, ordered.Results[2].Title})

	// no scraper is configured, so nothing has been processed
	w, env = s.do(t, http.MethodGet, "/api/collections?processed=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decode[pageJSON[collectionJSON]](t, env.Data).Count)

	w, env = s.do(t, http.MethodGet, "/api/collections?processed=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[pageJSON[collectionJSON]](t, env.Data).Count)

	w, env = s.do(t, http.MethodGet, "/api/collections/recent?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]collectionJSON](t, env.Data), 1)

	w, env = s.do(t, http.MethodGet, "/api/collections/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]collectionJSON](t, env.Data), 3)
}

func TestTagListSearch(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, _ := s.do(t, http.MethodPost, "/api/tags/bulk", map[string]any{"names": []string{"golang", "postgres", "go-kit"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodGet, "/api/tags?search=go", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var names []string
	for _, tag := range decode[pageJSON[struct {
		Name string `json:"name"`
	}]](t, env.Data).Results {
		names = append(names, tag.Name)
	}
	assert.ElementsMatch(t, []string{"golang", "go-kit"}, names)
}

func TestCollectionRejectsPrivateURLs(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice")

	w, env := s.do(t, http.MethodPost, "/api/collections", map[string]any{"url": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Errors, "url")
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimitLogin = 1 })

	creds := map[string]string{"email": "nobody@example.com", "password": "password123"}
	w, _ := s.do(t, http.MethodPost, "/api/auth/login", creds)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
