// Package server exposes the HTTP API consumed by the upload/chat
// presentation layer.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfp-ai/server/internal/agents"
	"github.com/rfp-ai/server/internal/chat"
	"github.com/rfp-ai/server/internal/llm"
	"github.com/rfp-ai/server/internal/pipeline"
	"github.com/rfp-ai/server/internal/store"
)

// maxUploadBytes caps accepted document uploads.
const maxUploadBytes = 50 << 20

// Server wires the HTTP routes to the pipeline, store and chat engine.
type Server struct {
	store       store.DocumentStore
	coordinator *pipeline.Coordinator
	chat        *chat.Engine
	corsOrigins []string
	log         *zap.Logger
}

// New creates a Server.
func New(st store.DocumentStore, coord *pipeline.Coordinator, chatEngine *chat.Engine, corsOrigins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:       st,
		coordinator: coord,
		chat:        chatEngine,
		corsOrigins: corsOrigins,
		log:         log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.corsMiddleware())

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	{
		api.POST("/process", s.processDocument)
		api.GET("/documents", s.listDocuments)
		api.GET("/documents/:id", s.getDocument)
		api.GET("/documents/:id/download", s.downloadDocument)
		api.GET("/documents/:id/status", s.documentStatus)
		api.GET("/documents/:id/kb", s.getKnowledgeBase)
		api.POST("/chat", s.chatHandler)
	}
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.corsOrigins))
	for _, o := range s.corsOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// detail writes the non-success envelope the UI expects.
func detail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"detail": msg})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "RFP Process Enhancer API is running"})
}

// processDocument handles POST /api/process: multipart upload of one
// PDF plus optional workspace metadata, processed synchronously through
// the pipeline.
func (s *Server) processDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		detail(c, http.StatusBadRequest, "file too large")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		detail(c, http.StatusBadRequest, "failed to read upload")
		return
	}

	ws := agents.Workspace{
		Name:        c.PostForm("workspace_name"),
		Description: c.PostForm("workspace_description"),
	}

	result, err := s.coordinator.Process(c.Request.Context(), content, fileHeader.Filename, ws, nil)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			s.log.Error("processing failed",
				zap.String("filename", fileHeader.Filename),
				zap.String("stage", stageErr.Stage),
				zap.Error(stageErr.Err))
			detail(c, http.StatusInternalServerError, "Processing failed: "+stageErr.Error())
			return
		}
		s.log.Error("processing failed", zap.String("filename", fileHeader.Filename), zap.Error(err))
		detail(c, http.StatusInternalServerError, "Processing failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Successfully processed " + fileHeader.Filename,
		"output":      result.KnowledgeBase,
		"document_id": result.DocumentID.String(),
	})
}

type documentSummary struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	SizeFormatted string `json:"size_formatted"`
	ModifiedAt    string `json:"modified_at"`
	Status        string `json:"status"`
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.store.ListDocuments(c.Request.Context())
	if err != nil {
		detail(c, http.StatusInternalServerError, "failed to list documents")
		return
	}

	out := make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentSummary{
			ID:            doc.ID.String(),
			Filename:      doc.Filename,
			SizeFormatted: humanize.Bytes(uint64(doc.Size)),
			ModifiedAt:    doc.ModifiedAt.Format(time.RFC3339),
			Status:        string(doc.Status),
		})
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

func (s *Server) docID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) getDocument(c *gin.Context) {
	id, ok := s.docID(c)
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	content, err := s.store.GetExtractedText(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":    doc.Filename,
		"content":     content,
		"document_id": doc.ID.String(),
	})
}

func (s *Server) downloadDocument(c *gin.Context) {
	id, ok := s.docID(c)
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	original, err := s.store.GetOriginal(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", original)
}

// documentStatus is the polling endpoint backing real per-stage
// progress in the UI.
func (s *Server) documentStatus(c *gin.Context) {
	id, ok := s.docID(c)
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID.String(),
		"status":      string(doc.Status),
		"detail":      doc.FailureReason,
	})
}

func (s *Server) getKnowledgeBase(c *gin.Context) {
	id, ok := s.docID(c)
	if !ok {
		return
	}

	kb, err := s.store.GetKnowledgeBase(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content":      kb.Content,
		"generated_at": kb.GeneratedAt.Format(time.RFC3339),
	})
}

type chatRequest struct {
	Question   string `json:"question"`
	History    []turn `json:"history"`
	DocumentID string `json:"document_id"`
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	scope := uuid.Nil
	if req.DocumentID != "" {
		id, err := uuid.Parse(req.DocumentID)
		if err != nil {
			detail(c, http.StatusBadRequest, "invalid document_id")
			return
		}
		scope = id
	}

	history := make([]llm.Message, len(req.History))
	for i, t := range req.History {
		history[i] = llm.Message{Role: llm.Role(t.Role), Content: t.Content}
	}

	answer, err := s.chat.Answer(c.Request.Context(), req.Question, history, scope)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		detail(c, http.StatusNotFound, "document not found")
		return
	}
	s.log.Error("store error", zap.Error(err))
	detail(c, http.StatusInternalServerError, "internal error")
}
