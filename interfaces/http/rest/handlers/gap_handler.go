package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reallynicca-backend/application/queries"
	querybus "reallynicca-backend/application/queries/bus"
	"reallynicca-backend/pkg/common"
	pkgerrors "reallynicca-backend/pkg/errors"
)

// QueryAsker dispatches queries
type QueryAsker interface {
	Ask(ctx context.Context, query querybus.Query) (interface{}, error)
}

// GapHandler handles gap analysis HTTP requests
type GapHandler struct {
	queryBus QueryAsker
	errors   *pkgerrors.ErrorHandler
	maxBytes int64
	logger   *zap.Logger
}

// NewGapHandler creates a new gap handler
func NewGapHandler(queryBus QueryAsker, errorHandler *pkgerrors.ErrorHandler, maxBytes int64, logger *zap.Logger) *GapHandler {
	return &GapHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// DetectGaps handles POST /gaps with an inline graph
func (h *GapHandler) DetectGaps(w http.ResponseWriter, r *http.Request) {
	var query queries.DetectGapsQuery
	if err := common.ParseJSONBody(w, r, &query, h.maxBytes); err != nil {
		h.errors.Handle(w, r, bodyError(err))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// DetectGapsForGraph handles GET /graphs/{graphID}/gaps
func (h *GapHandler) DetectGapsForGraph(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")

	options, err := parseAnalysisOptions(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.DetectGapsForGraphQuery{
		GraphID: graphID,
		Options: options,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// parseAnalysisOptions reads optional overrides from the query string
func parseAnalysisOptions(r *http.Request) (queries.AnalysisOptions, error) {
	values := r.URL.Query()
	var opts queries.AnalysisOptions

	ints := []struct {
		name   string
		target **int
	}{
		{"min_cluster_size", &opts.MinClusterSize},
		{"max_gaps", &opts.MaxGaps},
		{"top_bridges", &opts.TopBridges},
		{"keywords_per_cluster", &opts.KeywordsPerCluster},
	}
	for _, p := range ints {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return opts, pkgerrors.NewValidationError(fmt.Sprintf("%s must be an integer", p.name))
		}
		*p.target = &v
	}

	if raw := values.Get("connectivity_threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, pkgerrors.NewValidationError("connectivity_threshold must be a number")
		}
		opts.ConnectivityThreshold = &v
	}

	return opts, nil
}

// bodyError classifies a request body decoding failure
func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return pkgerrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit)).
			WithCode("BODY_TOO_LARGE")
	}
	return pkgerrors.NewMalformedInputError("invalid request body: %v", err)
}
