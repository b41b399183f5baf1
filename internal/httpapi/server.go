// Package httpapi exposes retrieval and answering over a JSON API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

const RequestIDHeader = "X-Request-ID"

// RAG is the subset of the service the API serves.
type RAG interface {
	Query(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
	Answer(ctx context.Context, question string, topK int) (string, []domain.RetrievedChunk, error)
	Stats() (service.IngestStats, bool)
}

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type answerRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type result struct {
	ChunkID     string   `json:"chunk_id"`
	DocumentID  string   `json:"document_id"`
	Text        string   `json:"text"`
	Score       float32  `json:"score"`
	Retrieval   string   `json:"retrieval"`
	RerankScore *float32 `json:"rerank_score,omitempty"`
}

type retrieveResponse struct {
	Results []result `json:"results"`
}

type answerResponse struct {
	Answer  string   `json:"answer"`
	Sources []result `json:"sources"`
}

// NewRouter builds the gin engine for rag.
func NewRouter(rag RAG, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))

	h := &handlers{rag: rag, logger: logger}
	router.GET("/healthz", h.health)
	v1 := router.Group("/v1")
	v1.POST("/retrieve", h.retrieve)
	v1.POST("/answer", h.answer)
	return router
}

// Serve runs the API on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type handlers struct {
	rag    RAG
	logger *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	stats, ready := h.rag.Stats()
	body := gin.H{"status": "ok", "ready": ready}
	if ready {
		body["build_id"] = stats.BuildID
		body["chunks"] = stats.Chunks
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if req.TopK < 0 {
		writeError(c, http.StatusBadRequest, "invalid_input", "top_k must not be negative")
		return
	}
	chunks, err := h.rag.Query(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, retrieveResponse{Results: toResults(chunks)})
}

func (h *handlers) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if req.TopK < 0 {
		writeError(c, http.StatusBadRequest, "invalid_input", "top_k must not be negative")
		return
	}
	answer, chunks, err := h.rag.Answer(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, answerResponse{Answer: answer, Sources: toResults(chunks)})
}

func (h *handlers) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
	}
	writeError(c, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrGenerationDisabled):
		return http.StatusNotImplemented, "generation_disabled"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInconsistentState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error_code": code, "message": message})
}

func toResults(chunks []domain.RetrievedChunk) []result {
	out := make([]result, len(chunks))
	for i, ch := range chunks {
		out[i] = result{
			ChunkID:     ch.ChunkID,
			DocumentID:  ch.DocumentID,
			Text:        ch.Text,
			Score:       ch.Score,
			Retrieval:   ch.Retrieval,
			RerankScore: ch.RerankScore,
		}
	}
	return out
}

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", c.GetString("request_id"),
			"elapsed", time.Since(start))
	}
}
