package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/fetch"
	"github.com/Brownie44l1/dogbreed-api/internal/labels"
	"github.com/Brownie44l1/dogbreed-api/internal/model"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

type fixedModel struct {
	probs []float32
}

func (m *fixedModel) Predict(ctx context.Context, input model.Tensor) ([]float32, error) {
	if input.Size() != 224*224*3 {
		return nil, errors.New("unexpected input size")
	}
	return m.probs, nil
}

func (m *fixedModel) Close() error { return nil }

type recordingMetrics struct {
	core.NopMetrics
	mu     sync.Mutex
	models []string
}

func (m *recordingMetrics) RecordPrediction(endpoint, model string, duration time.Duration, kind core.Kind, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = append(m.models, model)
}

func (m *recordingMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.models...)
}

type testEnv struct {
	router    *gin.Engine
	loads     *atomic.Int32
	metrics   *recordingMetrics
	modelsDir string
}

// emptyGIF is a well-formed GIF with a 0x0 canvas and frame.
var emptyGIF = []byte{
	'G', 'I', 'F', '8', '9', 'a',
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x2C, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80,
	0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF,
	0x02, 0x01, 0x2C, 0x00,
	0x3B,
}

func dogVector() []float32 {
	probs := make([]float32, 120)
	probs[5] = 0.9
	probs[2] = 0.08
	return probs
}

func newTestEnv(t *testing.T, table *labels.Table) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	for _, name := range []string{"dogs.onnx", "broken.onnx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("onnx"), 0o600); err != nil {
			t.Fatalf("write model: %v", err)
		}
	}

	loads := &atomic.Int32{}
	cache := model.NewCache(model.CacheConfig{
		Dir: dir,
		Loader: model.LoaderFunc(func(path string) (model.Model, error) {
			loads.Add(1)
			if filepath.Base(path) == "broken.onnx" {
				return nil, errors.New("invalid protobuf")
			}
			return &fixedModel{probs: dogVector()}, nil
		}),
	})

	metrics := &recordingMetrics{}
	h := NewHandler(Config{
		Models:  cache,
		Labels:  table,
		Fetcher: fetch.New(fetch.Config{Timeout: time.Second}),
		Metrics: metrics,
	})

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/models", h.ListModels)
	r.POST("/predict/file", h.PredictFromFile)
	r.POST("/predict/url", h.PredictFromURL)

	return &testEnv{router: r, loads: loads, metrics: metrics, modelsDir: dir}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for i := 0; i < 40; i++ {
		img.Set(i, i%30, color.NRGBA{R: 200, G: 150, B: 100, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "dog.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(content)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) model.PredictionResponse {
	t.Helper()
	var resp model.PredictionResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestPredictFromFile(t *testing.T) {
	env := newTestEnv(t, labels.New(map[int]string{5: "Labrador", 2: "Poodle"}))

	rec := env.do(multipartRequest(t, "/predict/file?model_name=dogs.onnx", "file", pngBytes(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	want := []model.Prediction{{Breed: "Labrador", Confidence: 90}, {Breed: "Poodle", Confidence: 8}}
	if len(resp.Predictions) != len(want) {
		t.Fatalf("predictions = %+v, want %+v", resp.Predictions, want)
	}
	for i := range want {
		if resp.Predictions[i] != want[i] {
			t.Errorf("prediction %d = %+v, want %+v", i, resp.Predictions[i], want[i])
		}
	}
}

func TestPredictFromFile_ReusesModel(t *testing.T) {
	env := newTestEnv(t, labels.New(nil))

	for i := 0; i < 3; i++ {
		rec := env.do(multipartRequest(t, "/predict/file?model_name=dogs.onnx", "file", pngBytes(t)))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		for _, p := range decodeResponse(t, rec).Predictions {
			if p.Breed != core.UnknownLabel {
				t.Errorf("breed = %q, want %q", p.Breed, core.UnknownLabel)
			}
		}
	}
	if got := env.loads.Load(); got != 1 {
		t.Errorf("model loaded %d times, want 1", got)
	}
}

func TestPredictFromFile_Errors(t *testing.T) {
	env := newTestEnv(t, labels.New(nil))

	tests := []struct {
		name       string
		target     string
		field      string
		content    []byte
		wantStatus int
	}{
		{"non-image payload", "/predict/file?model_name=dogs.onnx", "file", []byte("hello, not an image"), http.StatusBadRequest},
		{"empty image", "/predict/file?model_name=dogs.onnx", "file", emptyGIF, http.StatusBadRequest},
		{"missing model_name", "/predict/file", "file", pngBytes(t), http.StatusBadRequest},
		{"missing file field", "/predict/file?model_name=dogs.onnx", "", nil, http.StatusBadRequest},
		{"unknown model", "/predict/file?model_name=cats.onnx", "file", pngBytes(t), http.StatusNotFound},
		{"traversal", "/predict/file?model_name=../../etc/passwd", "file", pngBytes(t), http.StatusNotFound},
		{"load failure", "/predict/file?model_name=broken.onnx", "file", pngBytes(t), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(multipartRequest(t, tt.target, tt.field, tt.content))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"detail"`) {
				t.Errorf("error body should carry detail: %s", rec.Body.String())
			}
		})
	}
}

func TestPredict_MetricsModelLabel(t *testing.T) {
	env := newTestEnv(t, labels.New(nil))

	for i := 0; i < 20; i++ {
		target := fmt.Sprintf("/predict/file?model_name=junk%d.onnx", i)
		_ = env.do(multipartRequest(t, target, "file", pngBytes(t)))
	}
	_ = env.do(multipartRequest(t, "/predict/file?model_name=dogs.onnx", "file", pngBytes(t)))
	_ = env.do(multipartRequest(t, "/predict/file?model_name=broken.onnx", "file", pngBytes(t)))
	req := httptest.NewRequest(http.MethodPost, "/predict/url",
		strings.NewReader(`{"url":"http://127.0.0.1:1/a.jpg","model_name":"junk.onnx"}`))
	req.Header.Set("Content-Type", "application/json")
	_ = env.do(req)

	counts := make(map[string]int)
	for _, label := range env.metrics.recorded() {
		counts[label]++
	}
	want := map[string]int{UnresolvedModel: 21, "dogs.onnx": 1, "broken.onnx": 1}
	if len(counts) != len(want) {
		t.Fatalf("model labels = %v, want %v", counts, want)
	}
	for label, n := range want {
		if counts[label] != n {
			t.Errorf("label %q recorded %d times, want %d", label, counts[label], n)
		}
	}
}

func TestPredictFromFile_LoadErrorIncludesCause(t *testing.T) {
	env := newTestEnv(t, labels.New(nil))

	rec := env.do(multipartRequest(t, "/predict/file?model_name=broken.onnx", "file", pngBytes(t)))
	if !strings.Contains(rec.Body.String(), "invalid protobuf") {
		t.Errorf("detail should include the load cause: %s", rec.Body.String())
	}
}

func TestPredictFromURL(t *testing.T) {
	payload := pngBytes(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dog.png":
			_, _ = w.Write(payload)
		case "/text":
			_, _ = w.Write([]byte("plain text"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachable := closed.URL + "/dog.png"
	closed.Close()

	env := newTestEnv(t, labels.New(map[int]string{5: "Labrador", 2: "Poodle"}))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"url":"` + upstream.URL + `/dog.png","model_name":"dogs.onnx"}`, http.StatusOK},
		{"unreachable", `{"url":"` + unreachable + `","model_name":"dogs.onnx"}`, http.StatusBadRequest},
		{"upstream 404", `{"url":"` + upstream.URL + `/missing","model_name":"dogs.onnx"}`, http.StatusBadRequest},
		{"not an image", `{"url":"` + upstream.URL + `/text","model_name":"dogs.onnx"}`, http.StatusBadRequest},
		{"missing model", `{"url":"` + upstream.URL + `/dog.png","model_name":"nope.onnx"}`, http.StatusNotFound},
		{"load failure", `{"url":"` + upstream.URL + `/dog.png","model_name":"broken.onnx"}`, http.StatusInternalServerError},
		{"missing fields", `{"url":""}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predict/url", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := env.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				resp := decodeResponse(t, rec)
				if len(resp.Predictions) != 2 || resp.Predictions[0].Breed != "Labrador" {
					t.Errorf("unexpected predictions %+v", resp.Predictions)
				}
			} else if !strings.Contains(rec.Body.String(), `"detail"`) {
				t.Errorf("error body should carry detail: %s", rec.Body.String())
			}
		})
	}
}

func TestHealthAndListModels(t *testing.T) {
	env := newTestEnv(t, labels.New(nil))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}

	_ = env.do(multipartRequest(t, "/predict/file?model_name=dogs.onnx", "file", pngBytes(t)))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/models", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Models []model.Info `json:"models"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models = %+v, want 2", body.Models)
	}
	for _, info := range body.Models {
		if want := info.Name == "dogs.onnx"; info.Loaded != want {
			t.Errorf("%s loaded = %v, want %v", info.Name, info.Loaded, want)
		}
	}
}
