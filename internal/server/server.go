package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/models"
)

// Asker answers a question from a set of uploaded documents.
type Asker interface {
	Ask(ctx context.Context, uploads []models.Upload, question string) (*models.Answer, error)
}

type Server struct {
	engine   *gin.Engine
	pipeline Asker
}

func New(pipeline Asker, maxUploadMbytes int64) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.MaxMultipartMemory = maxUploadMbytes << 20

	s := &Server{engine: engine, pipeline: pipeline}
	engine.GET("/healthz", s.handleHealth)
	engine.POST("/ask", s.handleAsk)
	return s
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAsk(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a multipart form with document files and a question is required"})
		return
	}

	question := c.PostForm("question")
	files := form.File["files"]
	if len(files) == 0 || strings.TrimSpace(question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid document files and a question are required"})
		return
	}

	uploads := make([]models.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload " + fh.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload " + fh.Filename})
			return
		}
		uploads = append(uploads, models.Upload{
			Filename:  fh.Filename,
			Content:   content,
			MediaType: fh.Header.Get("Content-Type"),
		})
	}

	answer, err := s.pipeline.Ask(c.Request.Context(), uploads, question)
	if err != nil {
		status := http.StatusInternalServerError
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Int("status", status).Msg("request failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}
