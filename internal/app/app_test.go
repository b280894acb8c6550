package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imageforge/sdxl-playground/server/internal/config"
	"github.com/imageforge/sdxl-playground/server/internal/gallery"
	"github.com/imageforge/sdxl-playground/server/internal/prediction"
	"github.com/imageforge/sdxl-playground/server/internal/replicate"
)

// fakeProvider is an httptest stand-in for the predictions API that completes
// every job on the first status fetch.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(replicate.Prediction{ID: "pred-1", Status: replicate.StatusStarting})
	})
	mux.HandleFunc("GET /predictions/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(replicate.Prediction{
			ID:     r.PathValue("id"),
			Status: replicate.StatusSucceeded,
			Output: []string{"https://x/img.png"},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T, providerURL string) *App {
	t.Helper()
	a, err := New(config.Config{
		ReplicateAPIURL:   providerURL,
		ReplicateAPIToken: "r8_test",
		ClientAgent:       "test-agent",
		DataDir:           t.TempDir(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestStartPredictionEndpoint(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	body := `{"prompt":"a lighthouse","resolution":"4:5","style":"sketch"}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var snap prediction.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != prediction.StatePolling {
		t.Errorf("state = %q, want polling right after submission", snap.State)
	}
	if snap.PredictionID != "pred-1" {
		t.Errorf("predictionId = %q", snap.PredictionID)
	}
}

func TestStartPredictionValidation(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	tests := []struct {
		name string
		body string
	}{
		{"blank prompt", `{"prompt":"  "}`},
		{"unknown mode", `{"prompt":"a lighthouse","mode":"video"}`},
		{"image-to-image without source", `{"prompt":"a lighthouse","mode":"image-to-image"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestImageToImageUsesSelectedInputImage(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	// Select a source first, then submit image-to-image without one inline.
	sel := httptest.NewRequest(http.MethodPut, "/api/gallery/input-image", strings.NewReader(`{"url":"https://x/source.png"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, sel)
	if rec.Code != http.StatusOK {
		t.Fatalf("select input image: status %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(`{"prompt":"a lighthouse","mode":"image-to-image"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestGenerationFlowLandsInGallery(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(`{"prompt":"a lighthouse"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: status %d", rec.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(a.store.List()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	images := a.store.List()
	if len(images) != 1 || images[0].URL != "https://x/img.png" {
		t.Fatalf("gallery = %v, want the completed generation", images)
	}
	if images[0].Dimensions != (gallery.Dimensions{Width: 512, Height: 512}) {
		t.Errorf("dimensions = %+v, want the default 1:1 preset", images[0].Dimensions)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/gallery", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("gallery list: status %d", listRec.Code)
	}

	var payload struct {
		Images []gallery.GeneratedImage `json:"images"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode gallery: %v", err)
	}
	if len(payload.Images) != 1 {
		t.Errorf("gallery response = %v", payload.Images)
	}
}

func TestRemoveFromGallery(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	a.store.Add(gallery.GeneratedImage{URL: "https://x/a.png", Dimensions: gallery.Dimensions{Width: 512, Height: 512}})

	req := httptest.NewRequest(http.MethodDelete, "/api/gallery?url=https%3A%2F%2Fx%2Fa.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status %d", rec.Code)
	}
	if got := a.store.List(); len(got) != 0 {
		t.Errorf("gallery after remove = %v, want empty", got)
	}

	// Missing url parameter is a client error.
	req = httptest.NewRequest(http.MethodDelete, "/api/gallery", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("remove without url: status %d, want 400", rec.Code)
	}
}

func TestPresetsEndpoint(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("presets: status %d", rec.Code)
	}

	var payload struct {
		Styles      []struct{ Key string } `json:"styles"`
		Resolutions []struct{ Key string } `json:"resolutions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode presets: %v", err)
	}
	if len(payload.Styles) != 4 || len(payload.Resolutions) != 7 {
		t.Errorf("presets = %d styles, %d resolutions; want 4 and 7", len(payload.Styles), len(payload.Resolutions))
	}
}

func TestUploadsUnavailableWithoutStorage(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("uploads without storage: status %d, want 503", rec.Code)
	}
}

func TestJobsUnavailableWithoutDatabase(t *testing.T) {
	provider := fakeProvider(t)
	a := newTestApp(t, provider.URL)
	router := a.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("jobs without database: status %d, want 503", rec.Code)
	}
}
