package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/auth"
	"github.com/zulandar/labyard/internal/storage"
)

func registerStorageRoutes(g *gin.RouterGroup, svc *storage.Service) {
	g.POST("", handleStorageCreate(svc))
	g.GET("", handleStorageList(svc))
	g.GET("/expiring", handleStorageExpiring(svc))
	g.GET("/stats", handleStorageStats(svc))
	g.GET("/shelves/:shelf", handleStorageShelf(svc))
	g.GET("/sample/:sampleId", handleStorageBySample(svc))
	g.GET("/:id", handleStorageGet(svc))
	g.PATCH("/:id", handleStorageUpdate(svc))
	g.POST("/:id/request-deletion", handleStorageRequestDeletion(svc))
	g.POST("/:id/approve-deletion", RequireRole(auth.Approvers...), handleStorageApproveDeletion(svc))
	g.DELETE("/:id", handleStorageRemove(svc))
}

type storageCreateRequest struct {
	SampleID  string     `json:"sample_id" binding:"required"`
	Location  string     `json:"location"`
	Shelf     string     `json:"shelf"`
	Box       string     `json:"box"`
	Position  string     `json:"position"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type storageUpdateRequest struct {
	Location  *string    `json:"location"`
	Shelf     *string    `json:"shelf"`
	Box       *string    `json:"box"`
	Position  *string    `json:"position"`
	ExpiresAt *time.Time `json:"expires_at"`
	Status    *string    `json:"status"`
}

func handleStorageCreate(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req storageCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		st, err := svc.Create(c.Request.Context(), storage.CreateOpts{
			SampleID:  req.SampleID,
			Location:  req.Location,
			Shelf:     req.Shelf,
			Box:       req.Box,
			Position:  req.Position,
			ExpiresAt: req.ExpiresAt,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, st)
	}
}

func handleStorageList(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), storage.Filters{
			Status:          c.Query("status"),
			Shelf:           c.Query("shelf"),
			Location:        c.Query("location"),
			PendingDeletion: c.Query("pending_deletion") == "true",
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// handleStorageExpiring accepts ?days=N; absent means the default window.
func handleStorageExpiring(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := queryInt(c, "days", 0)
		if err != nil {
			badRequest(c, err)
			return
		}
		list, err := svc.ExpiringSoon(c.Request.Context(), days)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleStorageStats(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Statistics(c.Request.Context())
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageShelf(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		layout, err := svc.Locations(c.Request.Context(), c.Param("shelf"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, layout)
	}
}

func handleStorageBySample(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.GetBySample(c.Request.Context(), c.Param("sampleId"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageGet(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageUpdate(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req storageUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		st, err := svc.Update(c.Request.Context(), c.Param("id"), storage.UpdateOpts{
			Location:  req.Location,
			Shelf:     req.Shelf,
			Box:       req.Box,
			Position:  req.Position,
			ExpiresAt: req.ExpiresAt,
			Status:    req.Status,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageRequestDeletion(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.RequestDeletion(c.Request.Context(), c.Param("id"), caller(c))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageApproveDeletion(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.ApproveDeletion(c.Request.Context(), c.Param("id"), caller(c))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handleStorageRemove(svc *storage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
