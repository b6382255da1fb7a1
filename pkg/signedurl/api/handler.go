package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/signed-upload/pkg/signedurl"
	"github.com/tendant/signed-upload/pkg/signedurl/config"
	"github.com/tendant/signed-upload/pkg/signedurl/uploads"
)

const maxRequestBytes = 64 << 10

// Handler serves the signed upload URL API
type Handler struct {
	issuer      *uploads.Issuer
	config      *config.ServerConfig
	logger      *slog.Logger
	credentials CredentialsFinder
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithCredentialsFinder replaces the application default credentials
// lookup used by the debug identity endpoint
func WithCredentialsFinder(find CredentialsFinder) HandlerOption {
	return func(h *Handler) {
		if find != nil {
			h.credentials = find
		}
	}
}

func NewHandler(issuer *uploads.Issuer, cfg *config.ServerConfig, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		issuer:      issuer,
		config:      cfg,
		logger:      logger,
		credentials: DefaultCredentials,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes sets up the HTTP routes
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(h.logger))
	r.Use(RecoveryMiddleware(h.logger))
	r.Use(RequestSizeLimitMiddleware(maxRequestBytes))
	r.Use(middleware.Timeout(60 * time.Second))

	if h.config.IsDevelopment() {
		r.Use(CORSMiddleware)
	}

	r.Get("/health", h.Health)
	r.Post("/signed-url", h.CreateSignedURL)

	if h.config.IsDevelopment() {
		r.Get("/debug/identity", h.DebugIdentity)
	}

	return r
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	body.RequestID = RequestIDFrom(r.Context())
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

// CreateSignedURL issues a PUT URL for one upload
func (h *Handler) CreateSignedURL(w http.ResponseWriter, r *http.Request) {
	var req uploads.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Failed to decode request", "error", err)
		h.writeError(w, r, http.StatusBadRequest, ErrorBody{
			Code:    "invalid_request",
			Message: "request body must be a JSON object",
		})
		return
	}

	signed, err := h.issuer.Issue(r.Context(), req)
	if err != nil {
		status := uploads.StatusCode(err)
		body := ErrorBody{Code: uploads.ErrorCode(err), Message: err.Error()}

		var ve *signedurl.ValidationError
		if errors.As(err, &ve) {
			body.Field = ve.Field
		}
		if retryAfter := uploads.RetryAfterSeconds(err); retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		if status >= 500 {
			h.logger.Error("Failed to issue signed URL", "error", err, "request_id", RequestIDFrom(r.Context()))
			// signer details stay in the log
			body.Message = http.StatusText(status)
		}
		h.writeError(w, r, status, body)
		return
	}

	render.JSON(w, r, signed)
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "healthy", Environment: h.config.Environment})
}

// IdentityResponse describes who URLs are signed as and who the process
// runs as
type IdentityResponse struct {
	Bucket             string `json:"bucket"`
	ServiceAccount     string `json:"service_account"`
	Signer             string `json:"signer"`
	StorageHost        string `json:"storage_host"`
	VirtualHostedStyle bool   `json:"virtual_hosted_style"`
	DefaultContentType string `json:"default_content_type"`
	DefaultExpires     int    `json:"default_expires_minutes"`

	Runtime               *RuntimeIdentity `json:"runtime,omitempty"`
	RuntimeError          string           `json:"runtime_error,omitempty"`
	RunsAsSigningIdentity bool             `json:"runs_as_signing_identity"`
}

// DebugIdentity is only routed in development
func (h *Handler) DebugIdentity(w http.ResponseWriter, r *http.Request) {
	resp := IdentityResponse{
		Bucket:             h.issuer.Bucket(),
		ServiceAccount:     h.issuer.Identity(),
		Signer:             h.config.Signer.Kind,
		StorageHost:        h.config.StorageHost,
		VirtualHostedStyle: h.config.VirtualHostedStyle,
		DefaultContentType: h.config.DefaultContentType,
		DefaultExpires:     h.config.DefaultExpiresMinutes,
	}

	creds, err := h.credentials(r.Context())
	if err != nil {
		h.logger.Warn("Failed to find default credentials", "error", err)
		resp.RuntimeError = err.Error()
	} else {
		runtime := describeCredentials(r.Context(), creds)
		resp.Runtime = &runtime
		resp.RunsAsSigningIdentity = strings.EqualFold(runtime.ServiceAccountEmail, resp.ServiceAccount)
		h.logger.Debug("Runtime identity",
			"project_id", runtime.ProjectID,
			"credentials_type", runtime.CredentialsType,
			"service_account", runtime.ServiceAccountEmail,
			"signing_identity", resp.ServiceAccount,
		)
	}

	render.JSON(w, r, resp)
}
