package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/imageforge/sdxl-playground/server/internal/config"
	"github.com/imageforge/sdxl-playground/server/internal/gallery"
	"github.com/imageforge/sdxl-playground/server/internal/params"
	"github.com/imageforge/sdxl-playground/server/internal/prediction"
	"github.com/imageforge/sdxl-playground/server/internal/r2"
	"github.com/imageforge/sdxl-playground/server/internal/replicate"
	"github.com/imageforge/sdxl-playground/server/internal/storage"
)

const maxUploadBytes = 8 << 20

// App is the composition root: it owns the provider client, the stores, and
// the single prediction poller.
type App struct {
	cfg      config.Config
	client   *replicate.Client
	store    *gallery.Store
	jobs     *gallery.JobStore
	uploader *r2.Client
	poller   *prediction.Poller
}

func New(cfg config.Config) (*App, error) {
	var kv storage.KV
	if fileKV, err := storage.NewFileKV(cfg.DataDir); err != nil {
		log.Printf("Warning: data dir unavailable, gallery kept in memory: %v", err)
		kv = storage.NewMemoryKV()
	} else {
		kv = fileKV
	}
	store := gallery.NewStore(kv)

	var jobs *gallery.JobStore
	if cfg.DatabaseURL != "" {
		var err error
		jobs, err = gallery.NewJobStore(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: job records disabled: %v", err)
			jobs = nil
		}
	}

	var uploader *r2.Client
	if cfg.UploadEndpoint != "" {
		var err error
		uploader, err = r2.NewClient(
			cfg.UploadEndpoint,
			cfg.UploadBucket,
			cfg.UploadAccessKeyID,
			cfg.UploadAccessSecret,
			cfg.UploadPublicBaseURL,
		)
		if err != nil {
			log.Printf("Warning: uploads disabled: %v", err)
			uploader = nil
		}
	}

	client := replicate.NewClient(cfg.ReplicateAPIURL, cfg.ReplicateAPIToken, cfg.ClientAgent)

	var recorder prediction.JobRecorder
	if jobs != nil {
		recorder = jobs
	}

	return &App{
		cfg:      cfg,
		client:   client,
		store:    store,
		jobs:     jobs,
		uploader: uploader,
		poller:   prediction.NewPoller(client, store, recorder),
	}, nil
}

// Close tears down the active polling loop and releases the job database.
func (a *App) Close() {
	a.poller.Close()
	if a.jobs != nil {
		_ = a.jobs.Close()
	}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/presets", a.handlePresets)

		api.Post("/predictions", a.handleStartPrediction)
		api.Get("/predictions/current", a.handleCurrentPrediction)

		api.Get("/gallery", a.handleListGallery)
		api.Delete("/gallery", a.handleRemoveImage)
		api.Put("/gallery/input-image", a.handleSelectInputImage)

		api.Post("/uploads", a.handleUpload)
		api.Get("/jobs", a.handleListJobs)
	})

	return r
}

func (a *App) allowedOrigins() []string {
	if len(a.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return a.cfg.AllowedOrigins
}

func (a *App) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"styles":      params.Styles(),
		"resolutions": params.Resolutions(),
	})
}

type startPredictionRequest struct {
	Prompt     string `json:"prompt"`
	Mode       string `json:"mode"`
	Style      string `json:"style"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	InputImage string `json:"inputImage"`
}

func (a *App) handleStartPrediction(w http.ResponseWriter, r *http.Request) {
	var req startPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	mode, err := params.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		res := params.ResolutionByKey(req.Resolution)
		width, height = res.Width, res.Height
	}

	inputImage := req.InputImage
	if mode == params.ModeImageToImage && inputImage == "" {
		inputImage = a.store.InputImage()
	}

	genReq := params.GenerationRequest{
		Prompt:        req.Prompt,
		Width:         width,
		Height:        height,
		Mode:          mode,
		StyleKey:      req.Style,
		InputImageRef: inputImage,
	}
	if err := a.poller.StartPrediction(r.Context(), genReq); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusAccepted, a.poller.Snapshot())
}

func (a *App) handleCurrentPrediction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.poller.Snapshot())
}

func (a *App) handleListGallery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"images":     a.store.List(),
		"inputImage": a.store.InputImage(),
	})
}

func (a *App) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, errors.New("url query parameter required"))
		return
	}

	a.store.Remove(url)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleSelectInputImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL *string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	if req.URL == nil {
		a.store.SelectInputImage("")
	} else {
		a.store.SelectInputImage(*req.URL)
	}
	writeJSON(w, http.StatusOK, map[string]string{"inputImage": a.store.InputImage()})
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("upload storage not configured"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file field required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := a.uploader.Upload(r.Context(), file, contentType)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (a *App) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if a.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("job records not configured"))
		return
	}

	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	jobs, err := a.jobs.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jobs == nil {
		jobs = []gallery.GenerationJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error":  err.Error(),
		"status": status,
	})
}
