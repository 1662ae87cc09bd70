// Package api serves the parts HTTP API.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/internal/provider"
	"github.com/LibrePCB/librepcb-api-server/internal/resolver"
)

//go:embed static
var staticFiles embed.FS

const maxRequestBody = 64 << 10

// Resolver answers part queries.
type Resolver interface {
	Resolve(ctx context.Context, queries []model.PartQuery) (*resolver.Response, error)
	MaxParts() int
}

// Options configures the API.
type Options struct {
	// Operational advertises the query endpoint in the provider info.
	Operational bool
	InfoURL     string
	CORSOrigins []string
}

// ProviderInfo describes the parts provider to clients.
type ProviderInfo struct {
	ProviderName    string  `json:"provider_name"`
	ProviderURL     string  `json:"provider_url"`
	ProviderLogoURL string  `json:"provider_logo_url"`
	InfoURL         string  `json:"info_url"`
	QueryURL        *string `json:"query_url"`
	MaxParts        int     `json:"max_parts"`
}

// QueryRequest is the body of a parts query.
type QueryRequest struct {
	Parts []model.PartQuery `json:"parts"`
}

// QueryResponse is the answer to a parts query.
type QueryResponse struct {
	Parts []model.PartResult `json:"parts"`
}

type server struct {
	resolver Resolver
	opts     Options
	static   fs.FS
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(res Resolver, opts Options) http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s := &server{resolver: res, opts: opts, static: static}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/api/v1/parts", s.info)
	r.Post("/api/v1/parts/query", s.query)
	r.Get("/api/v1/parts/static/{filename}", s.staticFile)
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) info(w http.ResponseWriter, r *http.Request) {
	info := ProviderInfo{
		ProviderName:    provider.PartstackDisplayName,
		ProviderURL:     provider.PartstackURL,
		ProviderLogoURL: externalURL(r, "/api/v1/parts/static/"+provider.PartstackLogoFilename),
		InfoURL:         s.opts.InfoURL,
		MaxParts:        s.resolver.MaxParts(),
	}
	if s.opts.Operational {
		u := externalURL(r, "/api/v1/parts/query")
		info.QueryURL = &u
	}
	w.Header().Set("Cache-Control", "max-age=300")
	writeJSON(w, http.StatusOK, info)
}

func (s *server) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Parts == nil {
		writeError(w, http.StatusBadRequest, "parts is required")
		return
	}

	resp, err := s.resolver.Resolve(r.Context(), req.Parts)
	if err != nil {
		zap.L().Warn("api: resolve aborted", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request aborted")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Parts: resp.Parts})
}

func (s *server) staticFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !fs.ValidPath(name) || !strings.HasSuffix(name, ".png") {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(s.static, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// externalURL builds an absolute URL for path as seen by the client,
// honoring the proxy headers set by the reverse proxy in front of the server.
func externalURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(r, "X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if h := firstHeaderValue(r, "X-Forwarded-Host"); h != "" {
		host = h
	}
	return scheme + "://" + host + path
}

func firstHeaderValue(r *http.Request, key string) string {
	v, _, _ := strings.Cut(r.Header.Get(key), ",")
	return strings.TrimSpace(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
