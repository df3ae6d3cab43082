package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/labels"
	"github.com/Brownie44l1/dogbreed-api/internal/model"
	"github.com/Brownie44l1/dogbreed-api/internal/predict"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// UnresolvedModel is the metrics label for requests whose model name
// did not match a file in the models directory.
const UnresolvedModel = "unresolved"

// ModelStore resolves model names to loaded models.
type ModelStore interface {
	GetOrLoad(ctx context.Context, name string) (model.Model, error)
	Available() ([]model.Info, error)
}

// ImageFetcher downloads remote images.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Config configuration for Handler
type Config struct {
	Models         ModelStore
	Labels         *labels.Table
	Fetcher        ImageFetcher
	Logger         core.Logger
	Metrics        core.MetricsCollector
	InputLayout    string
	MaxUploadBytes int64
}

type Handler struct {
	models         ModelStore
	labels         *labels.Table
	fetcher        ImageFetcher
	logger         core.Logger
	metrics        core.MetricsCollector
	layout         string
	maxUploadBytes int64
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NopMetrics{}
	}
	if cfg.InputLayout == "" {
		cfg.InputLayout = core.DefaultInputLayout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = core.DefaultMaxUploadBytes
	}
	return &Handler{
		models:         cfg.Models,
		labels:         cfg.Labels,
		fetcher:        cfg.Fetcher,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		layout:         cfg.InputLayout,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ListModels returns the model files available for prediction.
func (h *Handler) ListModels(c *gin.Context) {
	infos, err := h.models.Available()
	if err != nil {
		h.respondError(c, core.Internal(err, "cannot list models"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": infos})
}

// PredictFromFile classifies a multipart upload in field "file" with the
// model named by the model_name query parameter.
func (h *Handler) PredictFromFile(c *gin.Context) {
	start := time.Now()
	modelName := c.Query("model_name")

	label := UnresolvedModel
	resp, err := h.predictFromFile(c, modelName, &label)
	h.metrics.RecordPrediction("file", label, time.Since(start), core.KindOf(err), err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) predictFromFile(c *gin.Context, modelName string, label *string) (model.PredictionResponse, error) {
	if modelName == "" {
		return model.PredictionResponse{}, core.BadInput(nil, "model_name query parameter is required")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return model.PredictionResponse{}, core.BadInput(err, "multipart field \"file\" is required")
	}

	m, err := h.models.GetOrLoad(c.Request.Context(), modelName)
	*label = modelLabel(modelName, err)
	if err != nil {
		return model.PredictionResponse{}, err
	}

	file, err := header.Open()
	if err != nil {
		return model.PredictionResponse{}, core.BadInput(err, "cannot open uploaded file")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return model.PredictionResponse{}, core.BadInput(err, "cannot read uploaded file")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return model.PredictionResponse{}, core.BadInput(nil, "uploaded file exceeds %d bytes", h.maxUploadBytes)
	}

	h.logger.Debug("[%s] Received file: %s, size: %d bytes", c.GetString(RequestIDKey), header.Filename, len(data))
	return predict.Classify(c.Request.Context(), m, data, h.layout, h.labels)
}

// PredictFromURL classifies the image at the URL given in the JSON body.
func (h *Handler) PredictFromURL(c *gin.Context) {
	start := time.Now()

	label := UnresolvedModel
	resp, err := h.predictFromURL(c, &label)
	h.metrics.RecordPrediction("url", label, time.Since(start), core.KindOf(err), err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) predictFromURL(c *gin.Context, label *string) (model.PredictionResponse, error) {
	var req model.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return model.PredictionResponse{}, core.BadInput(err, "request body must be JSON with url and model_name")
	}

	ctx := c.Request.Context()
	m, err := h.models.GetOrLoad(ctx, req.ModelName)
	*label = modelLabel(req.ModelName, err)
	if err != nil {
		return model.PredictionResponse{}, err
	}

	data, err := h.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return model.PredictionResponse{}, err
	}

	h.logger.Debug("[%s] Fetched %s, size: %d bytes", c.GetString(RequestIDKey), req.URL, len(data))
	return predict.Classify(ctx, m, data, h.layout, h.labels)
}

// modelLabel keeps client-supplied names out of metric labels unless they
// resolved to a model file.
func modelLabel(name string, err error) string {
	if err != nil && core.KindOf(err) != core.KindLoad {
		return UnresolvedModel
	}
	return model.Sanitize(name)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	detail := err.Error()

	var appErr *core.Error
	if kind == core.KindInternal {
		h.logger.Error("[%s] %s %s: %v", c.GetString(RequestIDKey), c.Request.Method, c.Request.URL.Path, err)
		if errors.As(err, &appErr) {
			detail = appErr.Msg
		} else {
			detail = "internal server error"
		}
	} else {
		h.logger.Warn("[%s] %s %s: %v", c.GetString(RequestIDKey), c.Request.Method, c.Request.URL.Path, err)
	}

	c.JSON(kind.Status(), gin.H{"detail": detail})
}
