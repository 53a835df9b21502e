// Package server exposes the contract analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/contractcheck/internal/analysis"
	"github.com/dshills/contractcheck/internal/document"
	"github.com/dshills/contractcheck/internal/schema"
)

// Service is the analysis backend the handlers call. *analysis.Analyzer
// satisfies it.
type Service interface {
	Analyze(ctx context.Context, text, contractType string) (*schema.Envelope, error)
	Explain(ctx context.Context, clause string) (string, error)
}

// DefaultMaxUpload bounds request bodies when Options.MaxUploadBytes is unset.
const DefaultMaxUpload = 20 << 20

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	opts   Options
	logger *zap.Logger
	engine *gin.Engine
}

// New builds the gin engine and registers routes. A nil logger is replaced
// by a no-op logger.
func New(svc Service, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUpload
	}
	s := &Server{svc: svc, opts: opts, logger: logger}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), recovery(logger))
	s.registerRoutes(r)
	s.engine = r
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	api := r.Group("/api/v1")
	{
		api.POST("/analyze", s.analyze)
		api.POST("/explain", s.explain)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	<-errCh
	return nil
}

type analyzeRequest struct {
	Text         string `json:"text"`
	ContractType string `json:"contract_type"`
}

type explainRequest struct {
	Clause string `json:"clause"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

func (s *Server) health(c *gin.Context) {
	Success(c, gin.H{"status": "ok"})
}

func (s *Server) analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	var req analyzeRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		text, status, err := s.readUpload(c)
		if err != nil {
			_ = c.Error(err)
			Fail(c, status, err.Error())
			return
		}
		req.Text = text
		req.ContractType = c.PostForm("contract_type")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		Fail(c, bodyStatus(err), "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		Fail(c, http.StatusBadRequest, "contract text is empty")
		return
	}

	env, err := s.svc.Analyze(c.Request.Context(), req.Text, req.ContractType)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, analysis.ErrEmptyContract) {
			Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		Fail(c, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}
	Success(c, env)
}

// readUpload extracts text from the multipart "file" field and returns the
// HTTP status to use on failure.
func (s *Server) readUpload(c *gin.Context) (string, int, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", bodyStatus(err), fmt.Errorf("missing or unreadable 'file' field: %w", err)
	}
	if !document.Supported(fh.Filename) {
		return "", http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported document %q: accepted extensions are %s",
				fh.Filename, strings.Join(document.Extensions, ", "))
	}
	f, err := fh.Open()
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	text, err := document.Extract(fh.Filename, f)
	switch {
	case err == nil:
		return text, http.StatusOK, nil
	case errors.Is(err, document.ErrUnsupportedFormat):
		return "", http.StatusUnsupportedMediaType, err
	case errors.Is(err, document.ErrCorruptDocument), errors.Is(err, document.ErrNoText):
		return "", http.StatusBadRequest, err
	default:
		return "", http.StatusInternalServerError, err
	}
}

func (s *Server) explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		Fail(c, bodyStatus(err), "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Clause) == "" {
		Fail(c, http.StatusBadRequest, "clause is empty")
		return
	}

	text, err := s.svc.Explain(c.Request.Context(), req.Clause)
	if err != nil {
		_ = c.Error(err)
		Fail(c, http.StatusInternalServerError, "explanation failed: "+err.Error())
		return
	}
	Success(c, explainResponse{Explanation: text})
}

// bodyStatus maps a body read error to 413 when the upload limit was hit.
func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
