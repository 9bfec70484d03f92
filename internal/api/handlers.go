package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/middleware"
	"github.com/somatic-tier-classifier/internal/service"
)

// BatchRequest is the body of POST /api/v1/classify/batch.
type BatchRequest struct {
	Cases []service.Case `json:"cases"`
}

// BatchResponse is returned by POST /api/v1/classify/batch.
type BatchResponse struct {
	RequestID string              `json:"request_id"`
	Items     []service.BatchItem `json:"items"`
}

// ResultsResponse is returned by GET /api/v1/results/:variant_id.
type ResultsResponse struct {
	VariantID string              `json:"variant_id"`
	Records   []domain.TierRecord `json:"records"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"frameworks": s.pipeline.Engine().Frameworks(),
	}

	store := s.pipeline.Store()
	if store == nil {
		body["storage"] = "disabled"
		c.JSON(http.StatusOK, body)
		return
	}

	count, err := store.Count(c.Request.Context())
	if err != nil {
		body["status"] = "unhealthy"
		body["storage"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["storage"] = "ok"
	body["stored_results"] = count
	c.JSON(http.StatusOK, body)
}

// handleClassify classifies a single case.
func (s *Server) handleClassify(c *gin.Context) {
	var req service.Case
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err)
		return
	}
	if req.CaseID == "" {
		req.CaseID = c.GetString(middleware.RequestIDKey)
	}

	result, err := s.pipeline.Classify(c.Request.Context(), req)
	if err != nil {
		s.respondClassifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleClassifyBatch classifies several cases; per-case failures are reported inline.
func (s *Server) handleClassifyBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err)
		return
	}
	if len(req.Cases) == 0 {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "batch contains no cases", nil)
		return
	}
	if len(req.Cases) > maxBatchCases {
		s.respondError(c, http.StatusRequestEntityTooLarge, domain.ErrInvalidInput,
			fmt.Sprintf("batch exceeds %d cases", maxBatchCases), nil)
		return
	}

	requestID := c.GetString(middleware.RequestIDKey)
	for i := range req.Cases {
		if req.Cases[i].CaseID == "" {
			req.Cases[i].CaseID = fmt.Sprintf("%s-%d", requestID, i)
		}
	}

	items, err := s.pipeline.ClassifyBatch(c.Request.Context(), req.Cases)
	if err != nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "batch aborted", err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{RequestID: requestID, Items: items})
}

// handleGetResults returns stored results for a variant. With ?framework= and
// no ?history=true it returns only the latest record for that framework.
func (s *Server) handleGetResults(c *gin.Context) {
	store := s.pipeline.Store()
	if store == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrStorage, "result storage is disabled", nil)
		return
	}

	variantID := c.Param("variant_id")
	framework := domain.GuidelineFramework(c.Query("framework"))
	if framework != "" && !framework.IsValid() {
		err := domain.NewConfigurationError("", string(framework), "unknown guideline framework")
		s.respondError(c, http.StatusBadRequest, domain.ErrConfigurationCode, "unknown framework", err)
		return
	}
	history, _ := strconv.ParseBool(c.DefaultQuery("history", "false"))

	ctx := c.Request.Context()
	var records []domain.TierRecord
	if framework != "" && !history {
		rec, err := store.Latest(ctx, variantID, framework)
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrNotFoundCode, "no stored result", err)
			return
		}
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, domain.ErrStorage, "failed to load result", err)
			return
		}
		records = []domain.TierRecord{*rec}
	} else {
		var err error
		records, err = store.History(ctx, variantID, framework)
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, domain.ErrStorage, "failed to load results", err)
			return
		}
		if len(records) == 0 {
			s.respondError(c, http.StatusNotFound, domain.ErrNotFoundCode, "no stored result", nil)
			return
		}
	}

	c.JSON(http.StatusOK, ResultsResponse{VariantID: variantID, Records: records})
}

// handleFrameworks lists every framework with its tiers and rules.
func (s *Server) handleFrameworks(c *gin.Context) {
	engine := s.pipeline.Engine()
	descriptions := make([]domain.FrameworkDescription, 0, len(engine.Frameworks()))
	for _, f := range engine.Frameworks() {
		d, err := engine.Describe(f)
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "failed to describe framework", err)
			return
		}
		descriptions = append(descriptions, d)
	}
	c.JSON(http.StatusOK, gin.H{"frameworks": descriptions})
}

// handlePathway returns the pathway configuration for an analysis type.
func (s *Server) handlePathway(c *gin.Context) {
	analysisType, err := domain.ParseAnalysisType(c.Param("analysis_type"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrConfigurationCode, "unknown analysis type", err)
		return
	}
	cfg, err := s.pipeline.Router().Configure(analysisType, c.Query("tumor_type"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrorCode(err), "invalid pathway request", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) respondClassifyError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.ErrValidation, domain.ErrConfigurationCode:
		status = http.StatusBadRequest
	case domain.ErrRuleInvariantCode:
		status = http.StatusUnprocessableEntity
	}
	s.respondError(c, status, code, "classification failed", err)
}

// respondError writes a standardized APIError body.
func (s *Server) respondError(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if status >= http.StatusInternalServerError && err != nil {
		s.logger.WithError(err).WithField("request_id", c.GetString(middleware.RequestIDKey)).Error(message)
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.RequestIDKey)))
}
