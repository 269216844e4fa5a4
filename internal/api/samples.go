package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/sample"
)

func registerSampleRoutes(g *gin.RouterGroup, svc *sample.Service) {
	g.POST("", handleSampleCreate(svc))
	g.GET("", handleSampleList(svc))
	g.GET("/qr/:code", handleSampleByQRCode(svc))
	g.GET("/:id", handleSampleGet(svc))
	g.GET("/:id/history", handleSampleHistory(svc))
	g.GET("/:id/qr", handleSampleQRImage(svc))
	g.PATCH("/:id", handleSampleUpdate(svc))
	g.POST("/:id/derivatives", handleSampleDerive(svc))
	g.POST("/:id/receive", handleSampleReceive(svc))
	g.POST("/:id/status", handleSampleStatus(svc))
	g.DELETE("/:id", handleSampleRemove(svc))
}

type sampleCreateRequest struct {
	RequirementID   string `json:"requirement_id" binding:"required"`
	ParentSampleID  string `json:"parent_sample_id"`
	Type            string `json:"type"`
	Format          string `json:"format"`
	Quantity        string `json:"quantity"`
	Notes           string `json:"notes"`
	IsCounterSample bool   `json:"is_counter_sample"`
}

type sampleDeriveRequest struct {
	Type            string `json:"type"`
	Format          string `json:"format"`
	Quantity        string `json:"quantity"`
	Notes           string `json:"notes"`
	IsCounterSample bool   `json:"is_counter_sample"`
}

type sampleUpdateRequest struct {
	Type            *string `json:"type"`
	Format          *string `json:"format"`
	Quantity        *string `json:"quantity"`
	Notes           *string `json:"notes"`
	IsCounterSample *bool   `json:"is_counter_sample"`
}

type receiveRequest struct {
	Note string     `json:"note"`
	At   *time.Time `json:"at"`
}

func handleSampleCreate(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sampleCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		smp, err := svc.Create(c.Request.Context(), sample.CreateOpts{
			RequirementID:   req.RequirementID,
			ParentSampleID:  req.ParentSampleID,
			Type:            req.Type,
			Format:          req.Format,
			Quantity:        req.Quantity,
			Notes:           req.Notes,
			IsCounterSample: req.IsCounterSample,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, smp)
	}
}

func handleSampleDerive(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sampleDeriveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		smp, err := svc.CreateDerivative(c.Request.Context(), c.Param("id"), sample.DerivativeOpts{
			Type:            req.Type,
			Format:          req.Format,
			Quantity:        req.Quantity,
			Notes:           req.Notes,
			IsCounterSample: req.IsCounterSample,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, smp)
	}
}

func handleSampleList(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), sample.Filters{
			RequirementID: c.Query("requirement_id"),
			Status:        c.Query("status"),
			QRCode:        c.Query("qr_code"),
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleSampleGet(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		smp, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, smp)
	}
}

func handleSampleByQRCode(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		smp, err := svc.GetByQRCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, smp)
	}
}

func handleSampleHistory(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, err := svc.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sample": h.Sample, "events": h.Events, "analyses": h.Analyses})
	}
}

func handleSampleQRImage(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := svc.QRImage(c.Request.Context(), c.Param("id"), c.Query("format"))
		if err != nil {
			respond(c, err)
			return
		}
		if img.Format == sample.FormatDataURL {
			c.JSON(http.StatusOK, gin.H{"code": img.Code, "data_url": string(img.Data)})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, img.Code, img.Format))
		c.Data(http.StatusOK, img.ContentType, img.Data)
	}
}

func handleSampleUpdate(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sampleUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		smp, err := svc.Update(c.Request.Context(), c.Param("id"), sample.UpdateOpts{
			Type:            req.Type,
			Format:          req.Format,
			Quantity:        req.Quantity,
			Notes:           req.Notes,
			IsCounterSample: req.IsCounterSample,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, smp)
	}
}

func handleSampleReceive(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req receiveRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		smp, err := svc.Receive(c.Request.Context(), c.Param("id"), sample.ReceiveOpts{Note: req.Note, At: req.At})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, smp)
	}
}

func handleSampleStatus(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		smp, err := svc.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, req.At)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, smp)
	}
}

func handleSampleRemove(svc *sample.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
