package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmorgan81/promptgrid/internal/batch"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/dmorgan81/promptgrid/internal/metrics"
	"github.com/dmorgan81/promptgrid/internal/page"
	"github.com/samber/do"
)

const (
	GeneratePath = "/api/generate"
	HealthPath   = "/healthz"
	MetricsPath  = "/metrics"

	malformedMessage = `Request body must be a JSON object like {"prompt": "..."}`
)

type Orchestrator interface {
	Generate(context.Context, batch.Request) (int, any)
}

type Handler struct {
	orchestrator Orchestrator
	templator    *page.Templator
	logger       *slog.Logger
	mux          *http.ServeMux
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[*batch.Orchestrator](i),
		do.MustInvoke[*page.Templator](i),
		do.MustInvoke[*metrics.Metrics](i).Handler(),
		do.MustInvoke[*slog.Logger](i),
	), nil
}

func New(o Orchestrator, t *page.Templator, metrics http.Handler, logger *slog.Logger) *Handler {
	h := &Handler{
		orchestrator: o,
		templator:    t,
		logger:       logger,
		mux:          http.NewServeMux(),
	}
	h.mux.HandleFunc(GeneratePath, h.serveGenerate)
	h.mux.HandleFunc(HealthPath, h.serveHealth)
	h.mux.Handle(MetricsPath, metrics)
	h.mux.HandleFunc("/", h.servePage)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withRequestLogging(h.logger, h.mux).ServeHTTP(w, r)
}

// generate decodes an inbound body and runs one batch for it.
func (h *Handler) generate(ctx context.Context, body []byte) (int, any) {
	var req batch.Request
	if err := json.Unmarshal(body, &req); err != nil {
		log.FromContextOrDiscard(ctx).Warn("rejecting malformed request", "error", err)
		return http.StatusBadRequest, batch.ErrorResponse{Error: err.Error(), Message: malformedMessage}
	}
	return h.orchestrator.Generate(ctx, req)
}

func (h *Handler) serveGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, batch.ErrorResponse{Error: err.Error(), Message: malformedMessage})
		return
	}
	status, resp := h.generate(r.Context(), body)
	writeJSON(r.Context(), w, status, resp)
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	html, err := h.templator.Template(r.Context())
	if err != nil {
		log.FromContextOrDiscard(r.Context()).Error("rendering page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContextOrDiscard(ctx).Error("writing response", "error", err)
	}
}
