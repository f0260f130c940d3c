package controller

import (
	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"

	"github.com/gin-gonic/gin"
)

type StatsController struct {
	router *gin.RouterGroup
	coach  *service.CoachService
}

func NewStatsController(router *gin.RouterGroup, coach *service.CoachService) *StatsController {
	return &StatsController{
		router: router,
		coach:  coach,
	}
}

func (controller *StatsController) SetupRoutes() {
	controller.router.GET("/stats", controller.statsHandler)
}

func (controller *StatsController) statsHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  200,
		"version": config.Version,
		"coach":   controller.coach.Stats(),
	})
}
