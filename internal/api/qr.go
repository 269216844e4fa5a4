package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/qrevent"
)

func registerQRRoutes(g *gin.RouterGroup, svc *qrevent.Service) {
	g.POST("/events", handleQRRecord(svc))
	g.GET("/recent", handleQRRecent(svc))
	g.GET("/stats", handleQRStats(svc))
	g.GET("/search", handleQRSearch(svc))
	g.GET("/type/:type", handleQRByType(svc))
	g.GET("/samples/:id/timeline", handleQRTimeline(svc))
	g.GET("/code/:code", handleQRByCode(svc))
}

type qrRecordRequest struct {
	QRCode   string                 `json:"qr_code" binding:"required"`
	Type     string                 `json:"type" binding:"required"`
	UserID   string                 `json:"user_id"`
	Location string                 `json:"location"`
	Metadata map[string]interface{} `json:"metadata"`
}

func handleQRRecord(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req qrRecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.UserID == "" {
			req.UserID = caller(c)
		}
		ev, err := svc.Record(c.Request.Context(), qrevent.RecordOpts{
			QRCode:   req.QRCode,
			Type:     req.Type,
			UserID:   req.UserID,
			Location: req.Location,
			Metadata: req.Metadata,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, ev)
	}
}

func handleQRRecent(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", qrevent.DefaultRecent)
		if err != nil {
			badRequest(c, err)
			return
		}
		list, err := svc.Recent(c.Request.Context(), limit)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleQRStats(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Statistics(c.Request.Context())
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleQRSearch(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.SearchLocation(c.Request.Context(), c.Query("location"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleQRByType(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ByType(c.Request.Context(), c.Param("type"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleQRTimeline(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Timeline(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleQRByCode(svc *qrevent.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		trail, err := svc.ByQRCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sample": trail.Sample, "events": trail.Events})
	}
}
