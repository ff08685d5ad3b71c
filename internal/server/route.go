package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elbartohub/myWhisper/internal/errors"
	"github.com/elbartohub/myWhisper/internal/job"
	"github.com/elbartohub/myWhisper/internal/pipeline"
)

func (s *Service) initRouter() {
	s.initBaseRouter()
	s.initAPIRouter()
}

func (s *Service) initBaseRouter() {
	s.router.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func (s *Service) initAPIRouter() {
	api := s.router.Group("/api/v1")
	{
		api.POST("/transcribe", s.handleTranscribe)
		api.GET("/transcribe/:id", s.handleStatus)
		api.GET("/transcribe/:id/download", s.handleDownload)
		api.GET("/models", s.handleModels)
	}
}

// POST /api/v1/transcribe
// Multipart upload plus form fields. All input validation happens here,
// before any job exists; a rejected request never registers a job.
func (s *Service) handleTranscribe(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		errors.Err(c, errors.InvalidArg("file"))
		return
	}
	if file.Size == 0 {
		errors.Err(c, errors.InvalidArg("file"))
		return
	}

	format := strings.TrimSpace(c.PostForm("format"))
	if format == "" {
		format = s.conf.Format
	}
	if !pipeline.ValidFormat(format) {
		errors.Err(c, errors.InvalidArg("format"))
		return
	}

	model := strings.TrimSpace(c.PostForm("model"))
	if model == "" {
		model = s.conf.Model
	}

	translate := parseBoolForm(c.PostForm("translate"))
	if translate && !s.conf.Translate.Enabled() {
		errors.Err(c, errors.InvalidArg("translate: no translation backend configured"))
		return
	}

	outputDir := strings.TrimSpace(c.PostForm("output_dir"))

	// Uploads keep their original extension so the chunker can hand the
	// container format to ffmpeg, but get a unique name.
	name := filepath.Base(file.Filename)
	savePath := filepath.Join(s.conf.UploadsDir, uuid.NewString()[:8]+"-"+name)
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		errors.Err(c, errors.Internal(err))
		return
	}

	id := s.pipeline.Submit(pipeline.Request{
		InputPath: savePath,
		OutputDir: outputDir,
		Model:     model,
		Format:    format,
		UseCPU:    parseBoolForm(c.PostForm("cpu")),
		Translate: translate,
	})

	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

// GET /api/v1/transcribe/:id
// Always 200; unknown ids read as a pending job at zero progress.
func (s *Service) handleStatus(c *gin.Context) {
	snap := s.pipeline.Status(c.Param("id"))
	snap.ID = c.Param("id")
	c.JSON(http.StatusOK, snap)
}

// GET /api/v1/transcribe/:id/download
func (s *Service) handleDownload(c *gin.Context) {
	snap := s.pipeline.Status(c.Param("id"))
	if snap.State != job.StateSucceeded || snap.OutputFile == "" {
		errors.Err(c, errors.NotFound(fmt.Sprintf("artifact for job %s", c.Param("id"))))
		return
	}
	if _, err := os.Stat(snap.OutputFile); err != nil {
		errors.Err(c, errors.NotFound(fmt.Sprintf("artifact for job %s", c.Param("id"))))
		return
	}
	c.FileAttachment(snap.OutputFile, filepath.Base(snap.OutputFile))
}

// GET /api/v1/models
func (s *Service) handleModels(c *gin.Context) {
	if s.downloader == nil {
		c.JSON(http.StatusOK, gin.H{"models": []string{}})
		return
	}
	models, err := s.downloader.ListLocal()
	if err != nil {
		errors.Err(c, errors.Internal(err))
		return
	}
	if models == nil {
		models = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func parseBoolForm(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
