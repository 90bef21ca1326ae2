package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
	"github.com/gonkalabs/pii-masker-go/internal/imageredact"
	"github.com/gonkalabs/pii-masker-go/internal/metrics"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

// Options tunes request limits and the URLs handed back to clients.
type Options struct {
	PublicBaseURL string        // overrides the base URL derived from each request
	MaxBodyBytes  int64         // JSON request bodies; 0 = unlimited
	MaxImageBytes int64         // multipart uploads; 0 = unlimited
	DetectTimeout time.Duration // per /mask and /replace request; 0 = none
	ImageTimeout  time.Duration // per image redaction; 0 = none
}

// Handler implements all HTTP endpoints.
type Handler struct {
	masker   *sanitize.Masker
	redactor *imageredact.Redactor
	store    *imageredact.Store
	metrics  *metrics.Metrics
	opts     Options
}

// New creates a Handler. m may be nil.
func New(masker *sanitize.Masker, redactor *imageredact.Redactor, store *imageredact.Store, m *metrics.Metrics, opts Options) *Handler {
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Handler{
		masker:   masker,
		redactor: redactor,
		store:    store,
		metrics:  m,
		opts:     opts,
	}
}

// Register mounts routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /mask", h.mask(sanitize.ModeGeneric))
	mux.HandleFunc("POST /replace", h.mask(sanitize.ModeFixed))
	mux.HandleFunc("POST /redact_image_base64", h.redactImageBase64)
	mux.HandleFunc("POST /redact_image_url", h.redactImageURL)
	mux.HandleFunc("POST /redact_image_upload", h.redactImageUpload)
	mux.HandleFunc("GET /output/{filename}", h.output)
	mux.Handle("GET /metrics", h.metrics.Handler())
}

// ---------- endpoints ----------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) mask(mode sanitize.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := h.readBody(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx, cancel := withTimeout(r.Context(), h.opts.DetectTimeout)
		defer cancel()

		out, err := h.masker.Mask(ctx, body, mode)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

func (h *Handler) redactImageBase64(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageB64 string `json:"image_b64"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ImageB64 == "" {
		h.writeError(w, r, apperr.Validationf("Missing 'image_b64' in request body."))
		return
	}

	ctx, cancel := withTimeout(r.Context(), h.opts.ImageTimeout)
	defer cancel()
	art, err := h.redactor.RedactBase64(ctx, req.ImageB64)
	h.writeArtifact(w, r, art, err)
}

func (h *Handler) redactImageURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL string `json:"image_url"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ImageURL == "" {
		h.writeError(w, r, apperr.Validationf("Missing 'image_url' in request body."))
		return
	}

	ctx, cancel := withTimeout(r.Context(), h.opts.ImageTimeout)
	defer cancel()
	art, err := h.redactor.RedactURL(ctx, req.ImageURL)
	h.writeArtifact(w, r, art, err)
}

func (h *Handler) redactImageUpload(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxImageBytes > 0 {
		// room for the multipart envelope around the file
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxImageBytes+1<<20)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, apperr.Validationf("upload exceeds %d bytes", h.opts.MaxImageBytes))
			return
		}
		h.writeError(w, r, apperr.Validationf("Missing 'file' in multipart form."))
		return
	}
	defer file.Close()

	ctx, cancel := withTimeout(r.Context(), h.opts.ImageTimeout)
	defer cancel()
	art, err := h.redactor.RedactReader(ctx, file)
	h.writeArtifact(w, r, art, err)
}

func (h *Handler) output(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.store.Open(r.PathValue("filename"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// ---------- helpers ----------

// readBody reads the request body, bounded by MaxBodyBytes.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	src := io.Reader(r.Body)
	if h.opts.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Validationf("request body exceeds %d bytes", tooBig.Limit)
		}
		return nil, apperr.Validationf("failed to read body: %v", err)
	}
	return body, nil
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := h.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func (h *Handler) writeArtifact(w http.ResponseWriter, r *http.Request, art imageredact.Artifact, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"redacted_image_url": h.baseURL(r) + "output/" + art.Name,
	})
}

// baseURL returns the externally visible root URL, always ending in "/".
func (h *Handler) baseURL(r *http.Request) string {
	if h.opts.PublicBaseURL != "" {
		return h.opts.PublicBaseURL + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return fmt.Sprintf("%s://%s/", scheme, r.Host)
}

// writeError maps err to a status code and writes a {"detail": ...} body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	attrs := []any{
		"id", requestID(r.Context()),
		"route", r.Pattern,
		"kind", apperr.KindOf(err).String(),
		"op", apperr.OpOf(err),
		"status", status,
		"err", err,
	}
	if status >= 500 {
		slog.Error("api: request failed", attrs...)
	} else {
		slog.Warn("api: request rejected", attrs...)
	}
	writeErr(w, status, err.Error())
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
