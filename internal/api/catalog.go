package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/auth"
	"github.com/zulandar/labyard/internal/catalog"
)

func registerCatalogRoutes(g *gin.RouterGroup, svc *catalog.Service) {
	admin := RequireRole(auth.Approvers...)

	g.GET("/users", handleUserList(svc))
	g.GET("/users/:id", handleUserGet(svc))
	g.POST("/users", admin, handleUserCreate(svc))
	g.PUT("/users/:id/active", admin, handleUserActive(svc))

	g.GET("/plants", handlePlantList(svc))
	g.POST("/plants", admin, handlePlantCreate(svc))

	g.GET("/analysis-types", handleTypeList(svc))
	g.POST("/analysis-types", admin, handleTypeCreate(svc))
	g.PUT("/analysis-types/:id/active", admin, handleTypeActive(svc))
	g.DELETE("/analysis-types/:id", admin, handleTypeRemove(svc))
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func handleUserList(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListUsers(c.Request.Context(), c.Query("role"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleUserGet(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func handleUserCreate(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
			Name  string `json:"name" binding:"required"`
			Role  string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		u, err := svc.CreateUser(c.Request.Context(), catalog.UserOpts{Email: req.Email, Name: req.Name, Role: req.Role})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

func handleUserActive(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req activeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.SetUserActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
			respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handlePlantList(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListPlants(c.Request.Context())
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handlePlantCreate(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code     string `json:"code" binding:"required"`
			Name     string `json:"name" binding:"required"`
			Location string `json:"location"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		p, err := svc.CreatePlant(c.Request.Context(), catalog.PlantOpts{Code: req.Code, Name: req.Name, Location: req.Location})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleTypeList(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAnalysisTypes(c.Request.Context(), c.Query("active") == "true")
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleTypeCreate(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name           string `json:"name" binding:"required"`
			Description    string `json:"description"`
			Method         string `json:"method"`
			EstimatedHours int    `json:"estimated_hours"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		at, err := svc.CreateAnalysisType(c.Request.Context(), catalog.AnalysisTypeOpts{
			Name:           req.Name,
			Description:    req.Description,
			Method:         req.Method,
			EstimatedHours: req.EstimatedHours,
		})
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, at)
	}
}

func handleTypeActive(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req activeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.SetAnalysisTypeActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
			respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleTypeRemove deletes an unused type; a referenced one is deactivated.
func handleTypeRemove(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := svc.RemoveAnalysisType(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "deactivated": !deleted})
	}
}
