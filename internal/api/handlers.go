package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mbsoft/ohmy-tracks/internal/config"
	"github.com/mbsoft/ohmy-tracks/internal/export"
	"github.com/mbsoft/ohmy-tracks/internal/geocoding"
	"github.com/mbsoft/ohmy-tracks/internal/metrics"
	"github.com/mbsoft/ohmy-tracks/internal/optimizer"
	"github.com/mbsoft/ohmy-tracks/internal/parser"
	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/internal/storage/sqlite"
	"github.com/mbsoft/ohmy-tracks/internal/websocket"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Handler contains the API request handlers
type Handler struct {
	config       *config.Config
	layoutParser *parser.LayoutParser
	headerParser *parser.HeaderParser
	resolver     *geocoding.Resolver
	geoCache     *geocoding.Cache
	optimizerSvc *optimizer.Service
	uploads      *sqlite.UploadStorage
	wsServer     *websocket.Server
	metrics      *metrics.Collector
	logger       *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	cfg *config.Config,
	layoutParser *parser.LayoutParser,
	headerParser *parser.HeaderParser,
	resolver *geocoding.Resolver,
	geoCache *geocoding.Cache,
	optimizerSvc *optimizer.Service,
	uploads *sqlite.UploadStorage,
	wsServer *websocket.Server,
	collector *metrics.Collector,
	log *logger.Logger,
) *Handler {
	return &Handler{
		config:       cfg,
		layoutParser: layoutParser,
		headerParser: headerParser,
		resolver:     resolver,
		geoCache:     geoCache,
		optimizerSvc: optimizerSvc,
		uploads:      uploads,
		wsServer:     wsServer,
		metrics:      collector,
		logger:       log.Named("api-handler"),
	}
}

// Login exchanges the configured credentials for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(h.config.Auth.LoginEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.config.Auth.LoginPassword)) == 1
	if !emailOK || !passOK {
		h.logger.Warn("Failed login attempt", logger.String("email", req.Email))
		h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	expiresAt := time.Now().Add(time.Duration(h.config.Auth.TokenTTLHours) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.Email,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(h.config.Auth.JWTSecret))
	if err != nil {
		h.logger.Error("Failed to sign token", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":     signed,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// UploadReport accepts a stop-list workbook, parses it, geocodes every
// delivery, stores the result and returns it.
func (h *Handler) UploadReport(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.config.Server.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	fileName := header.Filename
	format := parser.DetectFormat(fileName)
	h.logger.Info("Processing upload",
		logger.String("file_name", fileName),
		logger.String("format", string(format)),
		logger.Int("bytes", len(data)))
	h.wsServer.Broadcast("upload_started", map[string]string{"fileName": fileName})

	rows, err := parser.ReadSheet(data)
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to read workbook: %v", err))
		return
	}

	var set *routes.RouteSet
	switch format {
	case parser.FormatPOC:
		set, err = h.headerParser.Parse(rows)
	default:
		set, err = h.layoutParser.Parse(rows)
	}
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to parse report: %v", err))
		return
	}
	h.metrics.RoutesParsed.Add(float64(set.TotalRoutes))
	h.metrics.DeliveriesParsed.Add(float64(set.TotalDeliveries))

	start := time.Now()
	set = h.resolver.Resolve(r.Context(), set)
	h.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if s := set.GeocodingStats; s != nil {
		h.metrics.GeocodeCalls.WithLabelValues("address").Add(float64(s.Pass1.Processed))
		h.metrics.GeocodeCalls.WithLabelValues("locationName").Add(float64(s.Pass2.Processed))
		h.metrics.RecordBatch(s.Failed, s.CacheHits, s.CacheMisses, s.CacheSize)
	}

	payload, err := json.Marshal(set)
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.respondError(w, http.StatusInternalServerError, "failed to encode result")
		return
	}
	id, err := h.uploads.SaveUpload(fileName, string(format), string(payload), set.TotalRoutes, set.TotalDeliveries)
	if err != nil {
		h.metrics.UploadFailures.Inc()
		h.logger.Error("Failed to store upload", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	h.metrics.UploadsProcessed.Inc()
	h.wsServer.Broadcast("upload_complete", map[string]interface{}{
		"id":       id,
		"fileName": fileName,
		"stats":    set.GeocodingStats,
	})
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"fileName": fileName,
		"format":   format,
		"routes":   set,
	})
}

// GetUploads lists stored uploads, newest first.
func (h *Handler) GetUploads(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.uploads.GetUploads()
	if err != nil {
		h.logger.Error("Failed to list uploads", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if summaries == nil {
		summaries = []*sqlite.UploadSummary{}
	}
	h.respondJSON(w, http.StatusOK, summaries)
}

// GetUpload returns a stored upload with its full parsed route set.
func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	record, set, ok := h.loadUpload(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        record.ID,
		"fileName":  record.FileName,
		"format":    record.Format,
		"createdAt": record.CreatedAt.UTC().Format(time.RFC3339),
		"routes":    set,
	})
}

// DeleteUpload removes a stored upload.
func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.uploads.DeleteUpload(id)
	if err != nil {
		h.logger.Error("Failed to delete upload", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to delete upload")
		return
	}
	if !deleted {
		h.respondError(w, http.StatusNotFound, "upload not found")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// OptimizeRoute runs both optimization variants for a single route of an
// upload.
func (h *Handler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	record, set, ok := h.loadUpload(w, r)
	if !ok {
		return
	}
	routeID := chi.URLParam(r, "routeId")

	var target *routes.Route
	for _, rt := range set.Routes {
		if rt.RouteID == routeID {
			target = rt
			break
		}
	}
	if target == nil {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("route %s not found in upload", routeID))
		return
	}

	depot := h.optimizerSvc.DepotForFile(record.FileName)
	result, err := h.optimizerSvc.OptimizeRoute(r.Context(), target, depot)
	if err != nil {
		h.metrics.OptimizationRuns.WithLabelValues("error").Inc()
		h.respondError(w, http.StatusBadGateway, fmt.Sprintf("optimization failed: %v", err))
		return
	}
	h.metrics.OptimizationRuns.WithLabelValues("ok").Inc()
	h.wsServer.Broadcast("optimization_complete", map[string]string{"routeId": routeID})
	h.respondJSON(w, http.StatusOK, result)
}

// OptimizeAll runs optimization for every route of an upload.
func (h *Handler) OptimizeAll(w http.ResponseWriter, r *http.Request) {
	record, set, ok := h.loadUpload(w, r)
	if !ok {
		return
	}

	depot := h.optimizerSvc.DepotForFile(record.FileName)
	result, err := h.optimizerSvc.OptimizeAll(r.Context(), set, depot)
	if err != nil {
		h.metrics.OptimizationRuns.WithLabelValues("error").Inc()
		h.respondError(w, http.StatusBadGateway, fmt.Sprintf("bulk optimization failed: %v", err))
		return
	}
	h.metrics.OptimizationRuns.WithLabelValues("ok").Add(float64(len(result.Routes)))
	h.wsServer.Broadcast("optimization_complete", map[string]interface{}{
		"uploadId": record.ID,
		"routes":   len(result.Routes),
	})
	h.respondJSON(w, http.StatusOK, result)
}

// OptimizeCustom submits a caller-provided problem body unchanged.
func (h *Handler) OptimizeCustom(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		h.respondError(w, http.StatusBadRequest, "missing request body")
		return
	}
	if !json.Valid(body) {
		h.respondError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	result, err := h.optimizerSvc.OptimizeCustom(r.Context(), body)
	if err != nil {
		h.metrics.OptimizationRuns.WithLabelValues("error").Inc()
		h.respondError(w, http.StatusBadGateway, fmt.Sprintf("optimization failed: %v", err))
		return
	}
	h.metrics.OptimizationRuns.WithLabelValues("ok").Inc()
	h.respondJSON(w, http.StatusOK, result)
}

// ClearGeocodeCache empties the persistent geocode cache.
func (h *Handler) ClearGeocodeCache(w http.ResponseWriter, r *http.Request) {
	removed := h.geoCache.Size()
	if err := h.geoCache.Clear(); err != nil {
		h.logger.Error("Failed to clear geocode cache", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	h.metrics.CacheSize.Set(0)
	h.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ExportCSV streams an upload's route set as CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	record, set, ok := h.loadUpload(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", record.FileName+".csv"))
	if err := export.WriteCSV(w, set); err != nil {
		h.logger.Error("Failed to write CSV export", logger.Error(err))
	}
}

// GetHealth returns service liveness plus cache and client counts.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"cacheSize": h.geoCache.Size(),
		"wsClients": h.wsServer.ClientCount(),
	})
}

// GetConfig returns the non-secret configuration the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"maxUploadSizeMB": h.config.Server.MaxUploadSizeMB,
		"equipmentTypes":  h.config.Reports.EquipmentTypes,
		"dayDates":        h.config.Reports.DayDates,
	})
}

// loadUpload fetches the upload named by the {id} URL parameter and decodes
// its route set, writing the error response itself on failure.
func (h *Handler) loadUpload(w http.ResponseWriter, r *http.Request) (*sqlite.UploadRecord, *routes.RouteSet, bool) {
	id := chi.URLParam(r, "id")
	record, err := h.uploads.GetUpload(id)
	if err != nil {
		h.logger.Error("Failed to load upload", logger.String("id", id), logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load upload")
		return nil, nil, false
	}
	if record == nil {
		h.respondError(w, http.StatusNotFound, "upload not found")
		return nil, nil, false
	}

	var set routes.RouteSet
	if err := json.Unmarshal([]byte(record.Payload), &set); err != nil {
		h.logger.Error("Failed to decode stored upload", logger.String("id", id), logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "stored upload is corrupt")
		return nil, nil, false
	}
	return record, &set, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
