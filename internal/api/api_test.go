package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/vitrina/internal/auth"
	"github.com/erazemk/vitrina/internal/blob"
	"github.com/erazemk/vitrina/internal/db"
	"github.com/erazemk/vitrina/internal/model"
	"github.com/erazemk/vitrina/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	blobs  *blob.Dir
	token  string
}

func newTestDeps(t *testing.T, backend store.Backend) Deps {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("joias123"), bcrypt.MinCost)
	require.NoError(t, err)
	checker, err := auth.NewAuthenticator("loja", string(hash))
	require.NoError(t, err)
	blobs, err := blob.NewDir(t.TempDir())
	require.NoError(t, err)

	return Deps{
		Store:       store.New(backend),
		Blobs:       blobs,
		Credentials: checker,
		JWTSecret:   testJWTSecret,
	}
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	deps := newTestDeps(t, store.NewSQLBackend(db.NewTestDB(t), db.DriverSQLite))
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, store: deps.Store, blobs: deps.Blobs}
	env.token = env.login(t, "loja", "joias123")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body loginResponse
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	assert.Equal(t, username, body.Username)
	return body.Token
}

// do sends a JSON request. An empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, resp, &body)
	return body["error"]
}

func testPNGDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{212, 175, 55, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "loja", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", errorMessage(t, resp))

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "other", "password": "joias123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "loja"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequiresToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodGet, "/api/wishlist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/wishlist", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid token", errorMessage(t, resp))
}

func TestMeAndLogout(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodGet, "/api/auth/me", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]string
	decodeBody(t, resp, &me)
	assert.Equal(t, "loja", me["username"])

	resp = env.do(t, http.MethodPost, "/api/auth/logout", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/auth/me", env.token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token revoked", errorMessage(t, resp))

	// A fresh login works again.
	token := env.login(t, "loja", "joias123")
	resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutSurvivesRestart(t *testing.T) {
	backend := store.NewSQLBackend(db.NewTestDB(t), db.DriverSQLite)

	first := httptest.NewServer(NewRouter(newTestDeps(t, backend)))
	t.Cleanup(first.Close)
	env := &testEnv{server: first}
	token := env.login(t, "loja", "joias123")

	resp := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second router over the same database has an empty in-memory cache.
	second := httptest.NewServer(NewRouter(newTestDeps(t, backend)))
	t.Cleanup(second.Close)
	env = &testEnv{server: second}

	resp = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token revoked", errorMessage(t, resp))

	// Revocations are not records.
	counts, err := store.New(backend).Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, counts)
}

func TestRevocationCheckFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	server := httptest.NewServer(NewRouter(newTestDeps(t, store.NewSQLBackend(sqlDB, db.DriverSQLite))))
	t.Cleanup(server.Close)
	env := &testEnv{server: server}

	token, err := auth.GenerateToken(testJWTSecret, "loja")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs(store.RevokedTokensCollection, sqlmock.AnyArg()).
		WillReturnError(errors.New("database is locked"))

	resp := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", errorMessage(t, resp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	// Missing required fields.
	resp := env.do(t, http.MethodPost, "/api/wishlist", env.token, map[string]any{"name": "Ana"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorMessage(t, resp), "phone required")

	resp = env.do(t, http.MethodPost, "/api/wishlist", env.token, map[string]any{
		"name":             "Ana Souza",
		"phone":            "86 99999-0000",
		"email":            "ana@example.com",
		"product":          "Anel Solitário",
		"alreadyPurchased": true,
		"targetStore":      model.StoreTeresina,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.WishlistItem
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.AlreadyPurchased)

	resp = env.do(t, http.MethodPost, "/api/wishlist", env.token, map[string]any{
		"name": "Bruno", "phone": "1", "product": "Brinco",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// List newest first.
	resp = env.do(t, http.MethodGet, "/api/wishlist", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []model.WishlistItem
	decodeBody(t, resp, &items)
	require.Len(t, items, 2)
	assert.Equal(t, "Bruno", items[0].Name)

	// Search.
	resp = env.do(t, http.MethodGet, "/api/wishlist?q=SOLIT", env.token, nil)
	decodeBody(t, resp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	// Patch a bool to false.
	resp = env.do(t, http.MethodPatch, "/api/wishlist/"+created.ID, env.token, map[string]any{"alreadyPurchased": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated model.WishlistItem
	decodeBody(t, resp, &updated)
	assert.False(t, updated.AlreadyPurchased)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, "Ana Souza", updated.Name)

	// Blanking a required field is rejected.
	resp = env.do(t, http.MethodPatch, "/api/wishlist/"+created.ID, env.token, map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Delete, then it is gone; deleting again still succeeds.
	resp = env.do(t, http.MethodDelete, "/api/wishlist/"+created.ID, env.token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/wishlist/"+created.ID, env.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/api/wishlist/"+created.ID, env.token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUpdateMissingRecord(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPatch, "/api/warranty/nope", env.token, map[string]any{"status": model.WarrantyConcluded})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/material-requests/nope", env.token, map[string]any{
		"sector": model.StoreCocais, "description": "x", "justification": "y",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWarrantyDefaultsAndSearch(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/warranty", env.token, map[string]any{
		"name": "Fernanda", "store": model.StoreParnaiba, "purchaseDate": "2025-01-10", "expiryDate": "2026-01-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var w model.WarrantyItem
	decodeBody(t, resp, &w)
	assert.Equal(t, model.WarrantyReturnedToStore, w.Status)

	resp = env.do(t, http.MethodPost, "/api/warranty", env.token, map[string]any{
		"name": "Gabi", "store": "Shopping Desconhecido", "purchaseDate": "2025-01-10", "expiryDate": "2026-01-10",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/warranty/"+w.ID, env.token, map[string]any{"status": "Perdida"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/warranty/"+w.ID, env.token, map[string]any{"status": model.WarrantyPending})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPatch, "/api/warranty/"+w.ID, env.token, map[string]any{"status": model.WarrantyConcluded})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found []model.WarrantyItem
	resp = env.do(t, http.MethodGet, "/api/warranty?q=Conclu%C3%ADda", env.token, nil)
	decodeBody(t, resp, &found)
	require.Len(t, found, 1)
	assert.Equal(t, w.ID, found[0].ID)

	resp = env.do(t, http.MethodGet, "/api/warranty?q=Pendente", env.token, nil)
	decodeBody(t, resp, &found)
	assert.Empty(t, found)
}

func TestMaterialRequestStatusUpdate(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/material-requests", env.token, map[string]any{
		"sector": model.StoreRioPoty, "description": "Sacolas", "justification": "Estoque baixo",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var before model.MaterialRequest
	decodeBody(t, resp, &before)
	assert.Equal(t, model.UrgencyMedium, before.Urgency)
	assert.Equal(t, model.RequestPending, before.Status)

	resp = env.do(t, http.MethodPatch, "/api/material-requests/"+before.ID, env.token, map[string]any{"status": model.RequestCompleted})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after model.MaterialRequest
	decodeBody(t, resp, &after)

	require.NotNil(t, after.UpdatedAt)
	assert.Equal(t, model.RequestCompleted, after.Status)
	after.Status = before.Status
	after.UpdatedAt = nil
	assert.Equal(t, before, after)
}

func TestInlineImageLifecycle(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/wishlist", env.token, map[string]any{
		"name": "Clara", "phone": "2", "product": "Pingente",
		"imageData": testPNGDataURL(t),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item model.WishlistItem
	decodeBody(t, resp, &item)
	require.True(t, blob.ValidRef(item.ImageRef), item.ImageRef)

	resp = env.do(t, http.MethodGet, "/api/images/"+item.ImageRef, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	// A full replace without the image keeps it.
	resp = env.do(t, http.MethodPut, "/api/wishlist/"+item.ID, env.token, map[string]any{
		"name": "Clara", "phone": "2", "product": "Pingente de ouro",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replaced model.WishlistItem
	decodeBody(t, resp, &replaced)
	assert.Equal(t, item.ImageRef, replaced.ImageRef)
	assert.Equal(t, "Pingente de ouro", replaced.Product)

	// Replacing the image removes the old blob.
	resp = env.do(t, http.MethodPatch, "/api/wishlist/"+item.ID, env.token, map[string]any{"imageData": testPNGDataURL(t)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var patched model.WishlistItem
	decodeBody(t, resp, &patched)
	require.NotEqual(t, item.ImageRef, patched.ImageRef)
	_, _, err := env.blobs.Get(context.Background(), item.ImageRef)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	// Deleting the record removes its blob.
	resp = env.do(t, http.MethodDelete, "/api/wishlist/"+item.ID, env.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/images/"+patched.ImageRef, env.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInlineImageRejected(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/warranty", env.token, map[string]any{
		"name": "Duda", "store": model.StoreCocais, "purchaseDate": "2025-02-01", "expiryDate": "2026-02-01",
		"piecesImage": "data:text/plain;base64,aGVsbG8=",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Warranty)
}

func TestUploadImage(t *testing.T) {
	env := setupTestServer(t)

	upload := func(content []byte) *http.Response {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("image", "peca.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/images", &body)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+env.token)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(testPNGDataURL(t), "data:image/png;base64,"))
	require.NoError(t, err)

	resp := upload(raw)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]any
	decodeBody(t, resp, &out)
	ref, _ := out["ref"].(string)
	assert.True(t, blob.ValidRef(ref))

	resp = upload([]byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/images/not-a-ref.jpg", env.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.store.Wishlist.Create(ctx, model.WishlistItem{Name: "a"})
	require.NoError(t, err)
	_, err = env.store.MaterialRequests.Create(ctx, model.MaterialRequest{Sector: model.StoreCocais})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/dashboard", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body dashboardResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "loja", body.Username)
	assert.Equal(t, store.Counts{Wishlist: 1, MaterialRequests: 1}, body.Counts)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vitrina_http_requests_total{code="200",method="POST",route="/api/auth/login"}`)
}

func TestBackendFailureIsHidden(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	deps := newTestDeps(t, store.NewSQLBackend(sqlDB, db.DriverSQLite))
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	env := &testEnv{server: server}

	token, err := auth.GenerateToken(testJWTSecret, "loja")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT data FROM documents").
		WithArgs(store.RevokedTokensCollection, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectQuery("SELECT id, data FROM documents").WillReturnError(errors.New("disk I/O error"))

	resp := env.do(t, http.MethodGet, "/api/material-requests", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", errorMessage(t, resp))
	assert.NoError(t, mock.ExpectationsWereMet())
}
