package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/requirement"
)

func registerRequirementRoutes(g *gin.RouterGroup, svc *requirement.Service) {
	g.POST("", handleRequirementCreate(svc))
	g.GET("", handleRequirementList(svc))
	g.GET("/mine", handleRequirementMine(svc))
	g.GET("/code/:code", handleRequirementByCode(svc))
	g.GET("/:id", handleRequirementGet(svc))
	g.PATCH("/:id", handleRequirementUpdate(svc))
	g.POST("/:id/status", handleRequirementStatus(svc))
	g.DELETE("/:id", handleRequirementRemove(svc))
	g.POST("/:id/attachments", handleRequirementAttach(svc))
	g.GET("/:id/attachments/url", handleRequirementAttachmentURL(svc))
}

type requirementCreateRequest struct {
	RequesterID      string   `json:"requester_id"`
	PlantID          string   `json:"plant_id"`
	AssignedLabID    string   `json:"assigned_lab_id"`
	SampleType       string   `json:"sample_type"`
	ExpectedQuantity int      `json:"expected_quantity"`
	Description      string   `json:"description"`
	Attachments      []string `json:"attachments"`
}

type requirementUpdateRequest struct {
	PlantID          *string `json:"plant_id"`
	AssignedLabID    *string `json:"assigned_lab_id"`
	SampleType       *string `json:"sample_type"`
	ExpectedQuantity *int    `json:"expected_quantity"`
	Description      *string `json:"description"`
	Status           *string `json:"status"`
}

type statusRequest struct {
	Status string     `json:"status" binding:"required"`
	At     *time.Time `json:"at"`
}

func handleRequirementCreate(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requirementCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.RequesterID == "" {
			req.RequesterID = caller(c)
		}
		r, err := svc.Create(c.Request.Context(), requirement.CreateOpts{
			RequesterID:      req.RequesterID,
			PlantID:          req.PlantID,
			AssignedLabID:    req.AssignedLabID,
			SampleType:       req.SampleType,
			ExpectedQuantity: req.ExpectedQuantity,
			Description:      req.Description,
			Attachments:      req.Attachments,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func handleRequirementList(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), requirement.Filters{
			RequesterID: c.Query("requester_id"),
			Status:      c.Query("status"),
			PlantID:     c.Query("plant_id"),
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleRequirementMine(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.History(c.Request.Context(), caller(c))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleRequirementGet(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRequirementByCode(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := svc.GetByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRequirementUpdate(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requirementUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := svc.Update(c.Request.Context(), c.Param("id"), requirement.UpdateOpts{
			PlantID:          req.PlantID,
			AssignedLabID:    req.AssignedLabID,
			SampleType:       req.SampleType,
			ExpectedQuantity: req.ExpectedQuantity,
			Description:      req.Description,
			Status:           req.Status,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRequirementStatus(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := svc.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleRequirementRemove(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRequirementAttach(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()

		key, err := svc.Attach(c.Request.Context(), c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": key})
	}
}

func handleRequirementAttachmentURL(svc *requirement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := svc.AttachmentURL(c.Request.Context(), c.Param("id"), c.Query("key"), 15*time.Minute)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
