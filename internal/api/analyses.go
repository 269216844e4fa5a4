package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/analysis"
)

func registerAnalysisRoutes(g *gin.RouterGroup, svc *analysis.Service) {
	g.POST("", handleAnalysisCreate(svc))
	g.GET("", handleAnalysisList(svc))
	g.GET("/stats", handleAnalysisStats(svc))
	g.GET("/:id", handleAnalysisGet(svc))
	g.PATCH("/:id", handleAnalysisUpdate(svc))
	g.POST("/:id/start", handleAnalysisStart(svc))
	g.POST("/:id/complete", handleAnalysisComplete(svc))
	g.POST("/:id/cancel", handleAnalysisCancel(svc))
	g.POST("/:id/results", handleAnalysisResults(svc))
}

type analysisCreateRequest struct {
	SampleID       string `json:"sample_id" binding:"required"`
	AnalysisTypeID string `json:"analysis_type_id" binding:"required"`
	AnalystID      string `json:"analyst_id"`
	Notes          string `json:"notes"`
}

type analysisUpdateRequest struct {
	AnalystID *string                `json:"analyst_id"`
	Notes     *string                `json:"notes"`
	Results   map[string]interface{} `json:"results"`
	ReportURL *string                `json:"report_url"`
	Status    string                 `json:"status"`
	StartedAt *time.Time             `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at"`
}

type analysisCompleteRequest struct {
	Results   map[string]interface{} `json:"results"`
	ReportURL string                 `json:"report_url"`
	Notes     string                 `json:"notes"`
	At        *time.Time             `json:"at"`
}

type analysisResultsRequest struct {
	Results   map[string]interface{} `json:"results"`
	ReportURL string                 `json:"report_url"`
	Notes     string                 `json:"notes"`
}

func handleAnalysisCreate(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analysisCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := svc.Create(c.Request.Context(), analysis.CreateOpts{
			SampleID:       req.SampleID,
			AnalysisTypeID: req.AnalysisTypeID,
			AnalystID:      req.AnalystID,
			Notes:          req.Notes,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleAnalysisList(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), analysis.Filters{
			SampleID:       c.Query("sample_id"),
			AnalysisTypeID: c.Query("analysis_type_id"),
			AnalystID:      c.Query("analyst_id"),
			Status:         c.Query("status"),
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleAnalysisStats(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Statistics(c.Request.Context())
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleAnalysisGet(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleAnalysisUpdate(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analysisUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := svc.Update(c.Request.Context(), c.Param("id"), analysis.UpdateOpts{
			AnalystID: req.AnalystID,
			Notes:     req.Notes,
			Results:   req.Results,
			ReportURL: req.ReportURL,
			Status:    req.Status,
			StartedAt: req.StartedAt,
			EndedAt:   req.EndedAt,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// handleAnalysisStart assigns the caller unless the body names an analyst.
func handleAnalysisStart(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AnalystID string `json:"analyst_id"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		if req.AnalystID == "" {
			req.AnalystID = caller(c)
		}
		a, err := svc.Start(c.Request.Context(), c.Param("id"), req.AnalystID)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleAnalysisComplete(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analysisCompleteRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		a, err := svc.Complete(c.Request.Context(), c.Param("id"), analysis.CompleteOpts{
			Results:   req.Results,
			ReportURL: req.ReportURL,
			Notes:     req.Notes,
			At:        req.At,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleAnalysisCancel(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleAnalysisResults(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req analysisResultsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := svc.UploadResults(c.Request.Context(), c.Param("id"), analysis.ResultsOpts{
			Results:   req.Results,
			ReportURL: req.ReportURL,
			Notes:     req.Notes,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}
