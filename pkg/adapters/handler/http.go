package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

// NonceIssuer hands out nonces for the tracker config endpoint.
type NonceIssuer interface {
	Issue(action string) (string, error)
}

type HTTPHandler struct {
	ingestion ports.IngestionService
	retention ports.RetentionService
	nonces    NonceIssuer
	baseURL   string
}

func NewHTTPHandler(ingestion ports.IngestionService, retention ports.RetentionService, nonces NonceIssuer, baseURL string) *HTTPHandler {
	return &HTTPHandler{
		ingestion: ingestion,
		retention: retention,
		nonces:    nonces,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// TrackResponse is the success payload of POST /atf/v1/track
type TrackResponse struct {
	Message      string `json:"message"`
	VisitID      int64  `json:"visit_id"`
	LinksSaved   int    `json:"links_saved"`
	LinksSkipped int    `json:"links_skipped"`
}

func savedMessage(n int) string {
	if n == 1 {
		return "1 link processed and saved."
	}
	return fmt.Sprintf("%d links processed and saved.", n)
}

// Track ingests one scanner batch.
func (h *HTTPHandler) Track(w http.ResponseWriter, r *http.Request) {
	batch, err := decodeBatch(w, r)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	res, err := h.ingestion.Ingest(r.Context(), batch)
	if err != nil {
		status, msg := ingestError(err)
		if status >= http.StatusInternalServerError {
			logger.WithCtx(r.Context()).Error().Err(err).Msg("track failed")
		}
		fail(w, r, status, msg)
		return
	}

	success(w, http.StatusOK, TrackResponse{
		Message:      savedMessage(res.LinksSaved),
		VisitID:      res.VisitID,
		LinksSaved:   res.LinksSaved,
		LinksSkipped: res.LinksSkipped,
	})
}

// ingestError maps ingestion failures to a status and a client message.
func ingestError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Nonce verification failed. The security token is invalid or has expired."
	case errors.Is(err, domain.ErrInvalidBatch):
		return http.StatusBadRequest, clientMessage(err, domain.ErrInvalidBatch)
	case errors.Is(err, domain.ErrNoLinksSaved):
		return http.StatusBadRequest, clientMessage(err, domain.ErrNoLinksSaved)
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "Failed to save visit data."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

// clientMessage drops the sentinel prefix from a wrapped error and
// capitalises what is left.
func clientMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

// TrackerConfig returns what a page embeds to submit batches.
func (h *HTTPHandler) TrackerConfig(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.nonces.Issue(domain.TrackAction)
	if err != nil {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("issue nonce failed")
		fail(w, r, http.StatusInternalServerError, "Internal server error.")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	success(w, http.StatusOK, domain.TrackerConfig{
		Endpoint: h.baseURL + "/atf/v1/track",
		Action:   domain.TrackAction,
		Nonce:    nonce,
	})
}

// ReportResponse is the payload of GET /atf/v1/report
type ReportResponse struct {
	Count int                `json:"count"`
	Rows  []domain.ReportRow `json:"rows"`
}

// Report lists tracked links from the last seven days.
func (h *HTTPHandler) Report(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ingestion.Report(r.Context())
	if err != nil {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("report failed")
		fail(w, r, http.StatusInternalServerError, "Internal server error.")
		return
	}
	success(w, http.StatusOK, ReportResponse{Count: len(rows), Rows: rows})
}

// Retention runs one cleanup pass on demand.
func (h *HTTPHandler) Retention(w http.ResponseWriter, r *http.Request) {
	res, err := h.retention.Run(r.Context())
	if err != nil {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("retention failed")
		fail(w, r, http.StatusInternalServerError, "Cleanup failed.")
		return
	}
	success(w, http.StatusOK, res)
}
