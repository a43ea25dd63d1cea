package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pedidos-backend/internal/config"
	"pedidos-backend/internal/handlers"
	"pedidos-backend/internal/middleware"
	"pedidos-backend/internal/models"
	"pedidos-backend/internal/service"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

type memRepo struct {
	mu      sync.Mutex
	pedidos map[uuid.UUID]models.Pedido
	seq     int64
}

func newMemRepo() *memRepo {
	return &memRepo{pedidos: make(map[uuid.UUID]models.Pedido)}
}

func (r *memRepo) CreatePedido(_ context.Context, pedido *models.Pedido) (*models.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	stored := *pedido
	stored.Seq = r.seq
	r.pedidos[stored.ID] = stored
	return &stored, nil
}

func (r *memRepo) GetPedido(_ context.Context, id uuid.UUID) (*models.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pedido, ok := r.pedidos[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &pedido, nil
}

func (r *memRepo) ListPedidos(_ context.Context) ([]models.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Pedido
	for _, pedido := range r.pedidos {
		all = append(all, pedido)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	return all, nil
}

func (r *memRepo) ListPedidosByUser(_ context.Context, userID uuid.UUID) ([]models.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []models.Pedido
	for _, pedido := range r.pedidos {
		if pedido.UserID == userID {
			mine = append(mine, pedido)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].Seq > mine[j].Seq })
	return mine, nil
}

func (r *memRepo) UpdatePedido(_ context.Context, pedido *models.Pedido) (*models.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.pedidos[pedido.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	updated := *pedido
	updated.Seq = existing.Seq
	r.pedidos[pedido.ID] = updated
	return &updated, nil
}

func (r *memRepo) DeletePedido(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pedidos[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.pedidos, id)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	uploads int
	deletes int
}

func (s *memStore) Upload(localPath, folder string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	remoteID := fmt.Sprintf("%s/remote-%d", folder, s.uploads)
	return "https://img.test/" + remoteID, remoteID, nil
}

func (s *memStore) Delete(remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memRepo, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: testSecret}
	repo := newMemRepo()
	store := &memStore{}
	svc := service.New(repo, store, "pedidos")
	handler := handlers.NewPedidosHandler(svc)

	auth := middleware.AuthMiddleware(cfg)
	upload := middleware.UploadMiddleware(t.TempDir())

	router := gin.New()
	router.GET("/health", handlers.HealthHandler)
	router.POST("/pedidos", auth, upload, handler.Create)
	router.GET("/pedidos", handler.List)
	router.GET("/pedidos/user", auth, handler.ListByUser)
	router.GET("/pedidos/:id", handler.Get)
	router.PUT("/pedidos/:id", auth, upload, handler.Update)
	router.DELETE("/pedidos/:id", auth, handler.Delete)
	return router, repo, store
}

func bearerToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func multipartBody(t *testing.T, fields map[string]string, imageCount int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for i := 0; i < imageCount; i++ {
		part, err := writer.CreateFormFile("images", fmt.Sprintf("photo-%d.jpg", i))
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image data"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func doCreate(t *testing.T, router *gin.Engine, token string, imageCount int) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"description": "test",
		"quantity":    "2",
		"time":        "3",
	}, imageCount)
	req, _ := http.NewRequest("POST", "/pedidos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateListDeleteFlow(t *testing.T) {
	router, _, store := newTestRouter(t)
	token := bearerToken(t, uuid.New().String())

	w := doCreate(t, router, token, 2)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.Images, 2)
	assert.Equal(t, 2, created.Quantity)
	assert.Equal(t, 3, created.Time)

	// listed publicly
	req, _ := http.NewRequest("GET", "/pedidos", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// delete it
	req, _ = http.NewRequest("DELETE", "/pedidos/"+created.ID, nil)
	req.Header.Set("Authorization", token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, store.deletes)

	// gone from the listing
	req, _ = http.NewRequest("GET", "/pedidos", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	listed = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestCreate_RequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"description": "test", "quantity": "2", "time": "3",
	}, 1)
	req, _ := http.NewRequest("POST", "/pedidos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreate_NoImages(t *testing.T) {
	router, _, _ := newTestRouter(t)
	token := bearerToken(t, uuid.New().String())

	w := doCreate(t, router, token, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "validation_failed", errResp.Code)
}

func TestCreate_TooManyImages(t *testing.T) {
	router, _, store := newTestRouter(t)
	token := bearerToken(t, uuid.New().String())

	w := doCreate(t, router, token, 6)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.uploads, "the file-count limit is enforced before any upload")
}

func TestCreate_NonNumericQuantity(t *testing.T) {
	router, _, _ := newTestRouter(t)
	token := bearerToken(t, uuid.New().String())

	body, contentType := multipartBody(t, map[string]string{
		"description": "test", "quantity": "lots", "time": "3",
	}, 1)
	req, _ := http.NewRequest("POST", "/pedidos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGet_Errors(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/pedidos/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_argument", errResp.Code)

	req, _ = http.NewRequest("GET", "/pedidos/"+uuid.New().String(), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdate_ReplacesImages(t *testing.T) {
	router, _, store := newTestRouter(t)
	token := bearerToken(t, uuid.New().String())

	w := doCreate(t, router, token, 1)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body, contentType := multipartBody(t, map[string]string{
		"description": "updated", "quantity": "9", "time": "4",
	}, 2)
	req, _ := http.NewRequest("PUT", "/pedidos/"+created.ID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "updated", updated.Description)
	assert.Len(t, updated.Images, 2)
	assert.NotEqual(t, created.Images[0].RemoteID, updated.Images[0].RemoteID)
	assert.Equal(t, 1, store.deletes, "the replaced image is released once")
}

func TestUpdate_ForbiddenForOtherUser(t *testing.T) {
	router, _, _ := newTestRouter(t)
	ownerToken := bearerToken(t, uuid.New().String())
	otherToken := bearerToken(t, uuid.New().String())

	w := doCreate(t, router, ownerToken, 1)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body, contentType := multipartBody(t, map[string]string{
		"description": "stolen", "quantity": "1", "time": "1",
	}, 0)
	req, _ := http.NewRequest("PUT", "/pedidos/"+created.ID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", otherToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req, _ = http.NewRequest("DELETE", "/pedidos/"+created.ID, nil)
	req.Header.Set("Authorization", otherToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListByUser(t *testing.T) {
	router, _, _ := newTestRouter(t)
	alice := uuid.New().String()
	aliceToken := bearerToken(t, alice)
	bobToken := bearerToken(t, uuid.New().String())

	require.Equal(t, http.StatusCreated, doCreate(t, router, aliceToken, 1).Code)
	require.Equal(t, http.StatusCreated, doCreate(t, router, bobToken, 1).Code)
	require.Equal(t, http.StatusCreated, doCreate(t, router, aliceToken, 1).Code)

	req, _ := http.NewRequest("GET", "/pedidos/user", nil)
	req.Header.Set("Authorization", aliceToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var mine []models.PedidoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 2)
	for _, pedido := range mine {
		assert.Equal(t, alice, pedido.UserID)
	}
}
