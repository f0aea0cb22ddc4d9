// Package handlers implements the HTTP handlers of the analysis API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/driftlab/internal/database"
	"github.com/quantfold/driftlab/internal/pipeline"
)

// RunRequest is the body of POST /api/v1/analysis/run.
type RunRequest struct {
	Symbols []string `json:"symbols" binding:"required,min=1"`
	Start   string   `json:"start" binding:"required"`
	End     string   `json:"end" binding:"required"`
}

// AnalysisHandler runs the pipeline on demand. The repository is optional;
// when present, finished reports are persisted.
type AnalysisHandler struct {
	runner *pipeline.Runner
	repo   *database.ReportRepository
}

func NewAnalysisHandler(runner *pipeline.Runner, repo *database.ReportRepository) *AnalysisHandler {
	return &AnalysisHandler{runner: runner, repo: repo}
}

// Run executes the analysis for the requested symbols and date range and
// returns the full report. Per-symbol failures are part of the report body,
// not an HTTP error.
func (h *AnalysisHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start"})
		return
	}

	rep := h.runner.Run(c.Request.Context(), req.Symbols, start, end)

	if h.repo != nil {
		if err := h.repo.SaveReport(c.Request.Context(), rep); err != nil {
			logrus.WithError(err).WithField("run_id", rep.RunID).Error("failed to persist report")
		}
	}

	c.JSON(http.StatusOK, rep)
}
