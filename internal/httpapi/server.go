// Package httpapi exposes upload, query and user history endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/extractor"
	"docqa/internal/history"
	"docqa/internal/service"
)

// Backend is the part of the service the HTTP API drives.
type Backend interface {
	Upload(ctx context.Context, path, sourceID, declaredType string) (service.UploadResult, error)
	Ask(ctx context.Context, query string, topK int) (service.Answer, error)
}

// Options configures the HTTP server.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
}

// Server routes HTTP requests to the backend. Users may be nil, which disables
// the register, login and history routes.
type Server struct {
	backend Backend
	users   *history.Store
	opts    Options
	logger  *slog.Logger
	mux     *http.ServeMux
}

func New(backend Backend, users *history.Store, opts Options, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("httpapi: backend must not be nil")
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploaded_docs"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{backend: backend, users: users, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	if s.users != nil {
		s.mux.HandleFunc("POST /register", s.handleRegister)
		s.mux.HandleFunc("POST /login", s.handleLogin)
		s.mux.HandleFunc("GET /history", s.handleHistory)
	}
}

// Handler returns the routed handler wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type uploadResponse struct {
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	NumChunks int    `json:"num_chunks"`
	Summary   string `json:"summary"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	typ := extractor.TypeFromName(name)
	if typ == "" {
		s.writeError(w, r, domain.ErrUnsupportedType)
		return
	}

	path := filepath.Join(s.opts.UploadDir, strings.ReplaceAll(uuid.NewString(), "-", "")+"_"+name)
	if err := saveFile(path, file); err != nil {
		s.logger.ErrorContext(r.Context(), "save upload failed", "path", path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	res, err := s.backend.Upload(r.Context(), path, name, typ)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "document uploaded",
		"source_id", res.SourceID,
		"chunks", res.Chunks,
		"username", r.URL.Query().Get("username"),
	)
	writeJSON(w, http.StatusOK, uploadResponse{Status: "ok", Filename: name, NumChunks: res.Chunks, Summary: res.Summary})
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

type queryRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	Username string `json:"username"`
}

type querySource struct {
	SourceID string  `json:"source_id"`
	Position int     `json:"position"`
	Distance float64 `json:"distance"`
	Snippet  string  `json:"snippet"`
}

type queryResponse struct {
	Query   string        `json:"query"`
	Answer  string        `json:"answer"`
	Sources []querySource `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	ans, err := s.backend.Ask(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := queryResponse{Query: ans.Query, Answer: ans.Answer, Sources: make([]querySource, len(ans.Sources))}
	for i, c := range ans.Sources {
		resp.Sources[i] = querySource{SourceID: c.SourceID, Position: c.Position, Distance: c.Distance, Snippet: c.Snippet}
	}
	if req.Username != "" && s.users != nil {
		s.record(r.Context(), req.Username, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) record(ctx context.Context, username string, resp queryResponse) {
	sources := make([]history.Source, len(resp.Sources))
	for i, src := range resp.Sources {
		sources[i] = history.Source(src)
	}
	if _, err := s.users.Append(username, history.Entry{Query: resp.Query, Answer: resp.Answer, Sources: sources}); err != nil {
		s.logger.WarnContext(ctx, "history not recorded", "username", username, "error", err)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	switch err := s.users.Register(c.Username, c.Password); {
	case errors.Is(err, history.ErrUserExists):
		writeDetail(w, http.StatusConflict, "Username already exists.")
	case errors.Is(err, history.ErrInvalidPassword):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok", "username": c.Username})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.users.Authenticate(c.Username, c.Password); err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "username": c.Username})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeDetail(w, http.StatusBadRequest, "username is required")
		return
	}
	entries, err := s.users.List(username)
	if errors.Is(err, history.ErrUnknownUser) {
		writeDetail(w, http.StatusNotFound, "unknown user")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
