package controller

import (
	"errors"
	"fmt"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type FeedbackRequest struct {
	ActivityID string `json:"activity_id"`
}

type ActivityController struct {
	router   *gin.RouterGroup
	activity *service.ActivityService
	coach    *service.CoachService
}

func NewActivityController(router *gin.RouterGroup, activity *service.ActivityService, coach *service.CoachService) *ActivityController {
	return &ActivityController{
		router:   router,
		activity: activity,
		coach:    coach,
	}
}

func (controller *ActivityController) SetupRoutes() {
	activityGroup := controller.router.Group("/activities")
	activityGroup.GET("", controller.listHandler)
	activityGroup.GET("/summary", controller.summaryHandler)
	activityGroup.POST("/feedback", controller.feedbackHandler)
}

func (controller *ActivityController) listHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get user context")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if !context.IsLoggedIn {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	activities, err := controller.activity.RecentActivities(c.Request.Context(), context.UserID)

	if errors.Is(err, config.ErrNoCredential) {
		c.JSON(409, gin.H{
			"status":  409,
			"message": "Strava account not connected",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to fetch activities")
		c.JSON(502, gin.H{
			"status":  502,
			"message": "Bad Gateway",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":     200,
		"activities": activities,
	})
}

func (controller *ActivityController) summaryHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get user context")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if !context.IsLoggedIn {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	report, err := controller.activity.WorkoutSummary(c.Request.Context(), context.UserID, c.Query("activity_id"))

	if errors.Is(err, config.ErrNoCredential) {
		c.JSON(409, gin.H{
			"status":  409,
			"message": "Strava account not connected",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to build workout summary")
		c.JSON(502, gin.H{
			"status":  502,
			"message": "Bad Gateway",
		})
		return
	}

	c.JSON(200, gin.H{
		"status": 200,
		"report": report,
	})
}

func (controller *ActivityController) feedbackHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get user context")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if !context.IsLoggedIn {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	var req FeedbackRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	report, err := controller.activity.WorkoutSummary(c.Request.Context(), context.UserID, req.ActivityID)

	if errors.Is(err, config.ErrNoCredential) {
		c.JSON(409, gin.H{
			"status":  409,
			"message": "Strava account not connected",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to build workout summary")
		c.JSON(502, gin.H{
			"status":  502,
			"message": "Bad Gateway",
		})
		return
	}

	feedback, err := controller.coach.ChatCompletion(c.Request.Context(), []service.ChatMessage{
		{
			Role:    "system",
			Content: "You are an expert marathon coach. Give concise, actionable feedback on the athlete's workout.",
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Here is my latest workout:\n\n%s", report.Summary),
		},
	})

	if err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to generate feedback")
		c.JSON(502, gin.H{
			"status":  502,
			"message": "Bad Gateway",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":      200,
		"activity_id": report.ActivityID,
		"feedback":    feedback,
	})
}
