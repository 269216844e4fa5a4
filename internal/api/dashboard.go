package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/stats"
	"gorm.io/gorm"
)

func registerDashboardRoutes(g *gin.RouterGroup, db *gorm.DB) {
	g.GET("/overview", handleOverview(db))
	g.GET("/pending", handlePending(db))
	g.GET("/recent", handleRecent(db))
}

func handleOverview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := stats.GetOverview(c.Request.Context(), db)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func handlePending(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := stats.GetPending(c.Request.Context(), db)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleRecent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := stats.GetRecent(c.Request.Context(), db)
		if err != nil {
			respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}
