package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/camden-git/foodlens/catalog"
	"github.com/camden-git/foodlens/intake"
	"github.com/camden-git/foodlens/media"
	"github.com/camden-git/foodlens/nutrition"
	"github.com/camden-git/foodlens/services"
	"github.com/camden-git/foodlens/workers"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, strict bool) http.Handler {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypePreview:  "previews",
		media.AssetTypeOriginal: "originals",
	})
	require.NoError(t, err)
	previewer := media.NewPreviewer(store, media.NewProcessor(store, 64), nil)

	evaluator := nutrition.NewEvaluator(nutrition.DefaultPolicy(), "")
	queue := workers.NewRecognitionQueue(workers.NewMockRecognizer(50*time.Millisecond, evaluator), 4, 1)
	t.Cleanup(queue.Stop)

	svc := services.NewIntakeService(
		intake.NewRegistry(previewer),
		catalog.New(catalog.NewMemoryStore()),
		evaluator,
		previewer,
		queue,
		nil,
		strict,
	)

	sessions := NewSessionHandler(svc, 8<<20)
	products := &ProductHandler{Service: svc}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", sessions.Routes)
		r.Get("/products", products.ListProducts)
		r.Get("/products/summary", products.Summary)
		r.Get("/products/{product_id}", products.GetProduct)
		r.Get("/allergens", products.ListAllergens)
		r.Get("/previews/*", AssetServer(store, "previews"))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[intake.State](t, rec).ID
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		img.Set(x, x%100, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, h http.Handler, sessionID string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile(uploadFormField, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUnknownSessionReturnsErrorEnvelope(t *testing.T) {
	h := newTestRouter(t, false)
	rec := do(t, h, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode[APIErrorResponse](t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "session_not_found", resp.Errors[0].Code)
	assert.Equal(t, "404", resp.Errors[0].Status)
}

func TestUploadAndServePreview(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)

	rec := upload(t, h, id, map[string][]byte{"label.png": pngFile(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[intake.State](t, rec)
	require.Len(t, st.Images, 1)
	require.NotNil(t, st.CurrentIndex)
	assert.Equal(t, 0, *st.CurrentIndex)
	assert.True(t, strings.HasPrefix(st.Images[0].Preview.URL, "/api/previews/"))

	preview := do(t, h, http.MethodGet, st.Images[0].Preview.URL, nil)
	assert.Equal(t, http.StatusOK, preview.Code)
	assert.Equal(t, "image/jpeg", preview.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id+"/images/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[intake.State](t, rec).CurrentIndex)

	gone := do(t, h, http.MethodGet, st.Images[0].Preview.URL, nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestUploadRejectsNonImages(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)

	rec := upload(t, h, id, map[string][]byte{"notes.txt": []byte("hello there")})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = upload(t, h, id, map[string][]byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNavigationAndSelection(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)
	require.Equal(t, http.StatusOK, upload(t, h, id, map[string][]byte{"a.png": pngFile(t)}).Code)
	require.Equal(t, http.StatusOK, upload(t, h, id, map[string][]byte{"b.png": pngFile(t)}).Code)

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/navigate", map[string]string{"direction": "next"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *decode[intake.State](t, rec).CurrentIndex)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/navigate", map[string]string{"direction": "next"})
	assert.Equal(t, 1, *decode[intake.State](t, rec).CurrentIndex)

	rec = do(t, h, http.MethodPut, "/api/sessions/"+id+"/current", map[string]int{"index": 0})
	assert.Equal(t, 0, *decode[intake.State](t, rec).CurrentIndex)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/navigate", map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id+"/images/first", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id+"/images/9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[intake.State](t, rec).Images, 2)
}

func TestManualSubmitFlow(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPatch, "/api/sessions/"+id+"/entry", map[string]string{
		"product_name": "Greek yogurt",
		"calories":     "120",
		"protein":      "10",
		"potassium":    "240",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPatch, "/api/sessions/"+id+"/details", map[string]string{"weight": "170g"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "170g", decode[intake.State](t, rec).Details.Weight)

	rec = do(t, h, http.MethodPut, "/api/sessions/"+id+"/allergens", map[string]interface{}{"allergen": "Milk", "checked": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPut, "/api/sessions/"+id+"/allergens", map[string]interface{}{"allergen": "Gluten", "checked": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/submit/manual", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[services.ManualSubmission](t, rec)
	assert.Equal(t, "Greek yogurt", res.Product.Name)
	assert.True(t, res.Product.IsSafe)
	assert.Equal(t, []string{"Milk"}, res.Product.Allergens)

	rec = do(t, h, http.MethodGet, "/api/products/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.SummaryRow{
		{Name: "Greek yogurt", Calories: "120", Protein: "10", Safety: "Safe", Allergens: "Milk"},
	}, decode[[]catalog.SummaryRow](t, rec))

	rec = do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	st := decode[intake.State](t, rec)
	assert.Equal(t, "", st.Entry.ProductName)
	assert.Equal(t, "", st.Details.Weight)
	require.NotNil(t, st.LastProductID)
	assert.Equal(t, res.Product.ID, *st.LastProductID)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/products/%d", *st.LastProductID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[nutrition.Product](t, rec)
	assert.Equal(t, "Greek yogurt", got.Name)
	assert.Equal(t, res.Product.NutritionalValues, got.NutritionalValues)
}

func TestGetProductErrors(t *testing.T) {
	h := newTestRouter(t, false)

	rec := do(t, h, http.MethodGet, "/api/products/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product_not_found", decode[APIErrorResponse](t, rec).Errors[0].Code)

	for _, bad := range []string{"abc", "0", "-1"} {
		rec = do(t, h, http.MethodGet, "/api/products/"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestStrictManualSubmitReturns422(t *testing.T) {
	h := newTestRouter(t, true)
	id := createSession(t, h)
	do(t, h, http.MethodPatch, "/api/sessions/"+id+"/entry", map[string]string{"product_name": "Soup", "sodium": "a lot"})

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/submit/manual", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[APIErrorResponse](t, rec)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "sodium", resp.Errors[0].Field)
	assert.Equal(t, "validation_failed", resp.Errors[0].Code)

	rec = do(t, h, http.MethodGet, "/api/products", nil)
	assert.Empty(t, decode[[]nutrition.Product](t, rec))
}

func TestRecognitionFlow(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/submit/recognition", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, upload(t, h, id, map[string][]byte{"label.png": pngFile(t)}).Code)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/submit/recognition", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode[intake.State](t, rec).IsLoading)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/submit/recognition", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/api/products", nil)
		return len(decode[[]nutrition.Product](t, rec)) == 1
	}, 3*time.Second, 20*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/api/products", nil)
	p := decode[[]nutrition.Product](t, rec)[0]
	assert.Equal(t, "Sample Food Product", p.Name)
	assert.False(t, p.IsSafe)

	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
		st := decode[intake.State](t, rec)
		return st.LastProductID != nil && *st.LastProductID == p.ID
	}, 3*time.Second, 20*time.Millisecond)
	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	k, ok := decode[nutrition.Product](t, rec).Nutrient("Potassium")
	require.True(t, ok)
	assert.True(t, k.IsRestricted)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+id+"/recognition", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	h := newTestRouter(t, false)
	id := createSession(t, h)

	rec := do(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAllergens(t *testing.T) {
	h := newTestRouter(t, false)
	rec := do(t, h, http.MethodGet, "/api/allergens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, nutrition.CommonAllergens, decode[[]string](t, rec))
}
