package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripkit/internal/domain"
	"tripkit/internal/metrics"
)

const (
	maxBodySize     = 1 << 20 // 1MB
	codeRateLimited = "RATE_LIMITED"
)

var documentID = regexp.MustCompile(`^itinerary_[A-Za-z0-9_-]+$`)

// Invoker is the capability set served by the gateway.
type Invoker interface {
	Definitions() []domain.CapabilityDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// DocumentIndex lists committed itineraries.
type DocumentIndex interface {
	ListDocuments(ctx context.Context, limit int) ([]domain.ItineraryDocument, error)
	GetDocument(ctx context.Context, id string) (*domain.ItineraryDocument, error)
}

type Config struct {
	Host         string
	Port         int
	APIKey       string
	Capabilities Invoker
	Documents    DocumentIndex // optional
	DocumentDir  string        // used to serve documents when there is no index
	MetricsPath  string        // empty disables the metrics endpoint
	Limiter      *RateLimiter  // optional, throttles invocations
	Logger       *slog.Logger
}

// Gateway exposes the capability set over HTTP for orchestrators that do
// not link the Go API.
type Gateway struct {
	addr        string
	apiKey      string
	caps        Invoker
	docs        DocumentIndex
	docDir      string
	metricsPath string
	limiter     *RateLimiter
	logger      *slog.Logger
	server      *http.Server
}

func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		apiKey:      cfg.APIKey,
		caps:        cfg.Capabilities,
		docs:        cfg.Documents,
		docDir:      cfg.DocumentDir,
		metricsPath: cfg.MetricsPath,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
	}
}

// Handler returns the routed handler with auth, request ids and metrics.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.Handle("GET /v1/capabilities", g.auth(http.HandlerFunc(g.handleCapabilities)))
	mux.Handle("POST /v1/capabilities/{name}/invoke", g.auth(g.throttle(http.HandlerFunc(g.handleInvoke))))
	mux.Handle("GET /v1/documents", g.auth(http.HandlerFunc(g.handleDocuments)))
	mux.Handle("GET /v1/documents/{id}", g.auth(http.HandlerFunc(g.handleDocument)))
	if g.metricsPath != "" {
		mux.Handle("GET "+g.metricsPath, metrics.Collector.Handler())
	}
	return g.instrument(mux)
}

// Start serves until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:              g.addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second, // document rendering through Chrome can be slow
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g.logger.Info("gateway started", "addr", g.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g.server.Shutdown(shutdownCtx)
	}()

	if err := g.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (g *Gateway) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		rw.Header().Set("X-Request-ID", reqID)

		metrics.InFlight.Inc()
		defer metrics.InFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequest(route, rec.status).Inc()
		g.logger.Debug("gateway request",
			"id", reqID, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (g *Gateway) auth(next http.Handler) http.Handler {
	if g.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(g.apiKey)) != 1 {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (g *Gateway) throttle(next http.Handler) http.Handler {
	if g.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if ok, wait := g.limiter.Allow(); !ok {
			secs := int(math.Ceil(wait.Seconds()))
			rw.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeJSON(rw, http.StatusTooManyRequests, map[string]any{"error": errorBody{
				Code: codeRateLimited, Message: "too many invocations", Retryable: true,
			}})
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (g *Gateway) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleCapabilities(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"capabilities": g.caps.Definitions()})
}

type invokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (g *Gateway) handleInvoke(rw http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(rw, fmt.Errorf("%w: cannot read body", domain.ErrInvalidRequest))
		return
	}
	if len(body) > maxBodySize {
		writeJSON(rw, http.StatusRequestEntityTooLarge, map[string]any{"error": errorBody{
			Code: domain.CodeInvalidRequest, Message: "request body exceeds 1MB",
		}})
		return
	}

	var req invokeRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(rw, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidRequest, err))
			return
		}
	}

	result, err := g.caps.Invoke(r.Context(), name, req.Arguments)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"result": result})
}

func (g *Gateway) handleDocuments(rw http.ResponseWriter, r *http.Request) {
	if g.docs == nil {
		writeJSON(rw, http.StatusOK, map[string]any{"documents": []domain.ItineraryDocument{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	docs, err := g.docs.ListDocuments(r.Context(), limit)
	if err != nil {
		g.logger.Error("cannot list documents", "err", err)
		writeError(rw, err)
		return
	}
	if docs == nil {
		docs = []domain.ItineraryDocument{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"documents": docs})
}

func (g *Gateway) handleDocument(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !documentID.MatchString(id) {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	path := ""
	if g.docs != nil {
		doc, err := g.docs.GetDocument(r.Context(), id)
		if err != nil {
			writeError(rw, err)
			return
		}
		if doc != nil {
			path = doc.Path
		}
	} else if g.docDir != "" {
		path = filepath.Join(g.docDir, id+".pdf")
	}
	if path == "" {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(rw, err)
		return
	}

	rw.Header().Set("Content-Type", "application/pdf")
	rw.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(path)))
	http.ServeContent(rw, r, filepath.Base(path), info.ModTime(), f)
}

// StatusFor maps a capability error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownCapability):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOperand),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrDivisionByZero):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCurrency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(rw http.ResponseWriter, err error) {
	writeJSON(rw, StatusFor(err), map[string]any{"error": errorBody{
		Code:      domain.ErrorCode(err),
		Message:   err.Error(),
		Retryable: domain.Retryable(err),
	}})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}
