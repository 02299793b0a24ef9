package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/connectome-service/backend/models"
	"github.com/gilchrisn/connectome-service/backend/service"
	"github.com/gilchrisn/connectome-service/backend/utils"
	"github.com/gilchrisn/connectome-service/pkg/degeneration"
	"github.com/gilchrisn/connectome-service/pkg/hubs"
	"github.com/gilchrisn/connectome-service/pkg/louvain"
	"github.com/gilchrisn/connectome-service/pkg/spanning"
	"github.com/gilchrisn/connectome-service/pkg/threshold"
)

// maxBodyBytes bounds request bodies; dense matrices are large.
const maxBodyBytes = 64 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	sessionService *service.SessionService
}

// NewHandlers creates a new handlers instance
func NewHandlers(sessionService *service.SessionService) *Handlers {
	return &Handlers{sessionService: sessionService}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !allowEmpty || !errors.Is(err, io.EOF) {
			utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", err)
			return false
		}
	}
	if err := validate.Struct(dst); err != nil {
		utils.WriteValidationErrorResponse(w, "Request validation failed", validationErrors(err))
		return false
	}
	return true
}

// CreateSession handles POST /sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !decode(w, r, &req, false) {
		return
	}

	sess, err := h.sessionService.Create(req.Name, &req.Dataset)
	if err != nil {
		log.Error().Err(err).Msg("Session creation failed")
		if errors.Is(err, service.ErrSessionLimit) {
			utils.WriteErrorResponse(w, http.StatusTooManyRequests, "Session limit reached", err)
			return
		}
		utils.WriteServiceError(w, "Session creation failed", err)
		return
	}
	utils.WriteCreatedResponse(w, "Session created successfully", sess)
}

// ListSessions handles GET /sessions
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "Sessions retrieved successfully", h.sessionService.List())
}

// GetSession handles GET /sessions/{sessionId}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionService.Get(mux.Vars(r)["sessionId"])
	if err != nil {
		utils.WriteServiceError(w, "Session not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "Session retrieved successfully", sess)
}

// DeleteSession handles DELETE /sessions/{sessionId}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.Delete(mux.Vars(r)["sessionId"]); err != nil {
		utils.WriteServiceError(w, "Session not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "Session deleted successfully", nil)
}

// CloneSession handles POST /sessions/{sessionId}/clone
func (h *Handlers) CloneSession(w http.ResponseWriter, r *http.Request) {
	var req models.CloneSessionRequest
	if !decode(w, r, &req, true) {
		return
	}
	sess, err := h.sessionService.Clone(mux.Vars(r)["sessionId"], req.Name)
	if err != nil {
		if errors.Is(err, service.ErrSessionLimit) {
			utils.WriteErrorResponse(w, http.StatusTooManyRequests, "Session limit reached", err)
			return
		}
		utils.WriteServiceError(w, "Clone failed", err)
		return
	}
	utils.WriteCreatedResponse(w, "Session cloned successfully", sess)
}

// Threshold handles POST /sessions/{sessionId}/threshold
func (h *Handlers) Threshold(w http.ResponseWriter, r *http.Request) {
	var req models.ThresholdRequest
	if !decode(w, r, &req, true) {
		return
	}
	mode, err := threshold.ParseMode(req.Mode)
	if err != nil {
		utils.WriteServiceError(w, "Invalid threshold mode", err)
		return
	}
	order, err := spanning.ParseOrder(req.SpanningOrder)
	if err != nil {
		utils.WriteServiceError(w, "Invalid spanning order", err)
		return
	}

	res, err := h.sessionService.Threshold(r.Context(), mux.Vars(r)["sessionId"], threshold.Request{
		Mode:             mode,
		Value:            req.Value,
		EdgePercent:      req.EdgePercent,
		TotalEdges:       req.TotalEdges,
		KeepSpanningTree: req.KeepSpanningTree,
		Rethreshold:      req.Rethreshold,
		SpanningOrder:    order,
	})
	if err != nil {
		utils.WriteServiceError(w, "Thresholding failed", err)
		return
	}
	utils.WriteSuccessResponse(w, "Graph thresholded", models.ThresholdResponse{
		Mode:        res.Mode,
		Threshold:   service.Finite(res.Threshold),
		Target:      res.Target,
		Edges:       res.Edges,
		ForestEdges: res.ForestEdges,
		Shortfall:   res.Shortfall,
		Warnings:    res.Warnings,
	})
}

// DetectModules handles POST /sessions/{sessionId}/modules
func (h *Handlers) DetectModules(w http.ResponseWriter, r *http.Request) {
	var req models.ModulesRequest
	if !decode(w, r, &req, true) {
		return
	}
	cfg := louvain.NewConfig()
	if req.Source != "" {
		cfg.Set("algorithm.source", req.Source)
	}
	if req.MaxLevels > 0 {
		cfg.Set("algorithm.max_levels", req.MaxLevels)
	}
	cfg.Set("algorithm.diagonal", req.Diagonal)

	res, err := h.sessionService.Modules(r.Context(), mux.Vars(r)["sessionId"], cfg, req.Seed)
	if err != nil {
		utils.WriteServiceError(w, "Module detection failed", err)
		return
	}
	utils.WriteSuccessResponse(w, "Modules detected", models.ModulesResponse{
		Modularity: res.Modularity,
		NumLevels:  res.NumLevels,
		Modules:    res.FinalCommunities,
		Excluded:   res.Excluded,
	})
}

// IdentifyHubs handles POST /sessions/{sessionId}/hubs
func (h *Handlers) IdentifyHubs(w http.ResponseWriter, r *http.Request) {
	var req models.HubsRequest
	if !decode(w, r, &req, true) {
		return
	}
	opts := hubs.DefaultOptions()
	opts.Weighted = req.Weighted
	opts.Pseudo = req.Pseudo
	if req.SDThreshold != nil {
		opts.SDThreshold = *req.SDThreshold
	}

	res, err := h.sessionService.Hubs(mux.Vars(r)["sessionId"], opts)
	if err != nil {
		utils.WriteServiceError(w, "Hub identification failed", err)
		return
	}
	utils.WriteSuccessResponse(w, "Hubs identified", res)
}

// Degenerate handles POST /sessions/{sessionId}/degenerate
func (h *Handlers) Degenerate(w http.ResponseWriter, r *http.Request) {
	var req models.DegenerateRequest
	if !decode(w, r, &req, true) {
		return
	}
	dreq := degeneration.DefaultRequest()
	dreq.ToxicNodes = req.ToxicNodes
	dreq.RiskEdges = req.RiskEdges
	if req.WeightLoss != nil {
		dreq.WeightLoss = *req.WeightLoss
	}
	if req.EdgesRemovedLimit != nil {
		dreq.EdgesRemovedLimit = *req.EdgesRemovedLimit
	}
	dreq.WeightLossLimit = req.WeightLossLimit
	dreq.PercentLimit = req.PercentLimit
	dreq.ThresholdLimit = req.ThresholdLimit
	dreq.Spread = req.Spread
	dreq.SpreadThreshold = req.SpreadThreshold
	dreq.SpatialSearch = req.SpatialSearch
	dreq.RecordLengths = req.RecordLengths

	res, err := h.sessionService.Degenerate(r.Context(), mux.Vars(r)["sessionId"], dreq, req.Seed)
	if err != nil {
		utils.WriteServiceError(w, "Degeneration failed", err)
		return
	}
	utils.WriteSuccessResponse(w, "Degeneration finished", res)
}

// GetGraph handles GET /sessions/{sessionId}/graph
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionService.Graph(mux.Vars(r)["sessionId"])
	if err != nil {
		utils.WriteServiceError(w, "Session not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "Graph retrieved successfully", view)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "Service is healthy", models.HealthResponse{
		Status:   "healthy",
		Sessions: h.sessionService.Count(),
	})
}
