package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"

	"gotest.tools/v3/assert"
)

func fakeStravaAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/athlete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 77, "username": "runner", "firstname": "Road", "lastname": "Runner"}`))
	})

	mux.HandleFunc("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 100, "name": "Morning Run", "distance": 10000, "moving_time": 2950, "start_date_local": "2025-07-27T08:34:12Z", "average_heartrate": 152.3},
			{"id": 99, "name": "Easy Jog", "distance": 5000, "moving_time": 1800, "start_date_local": "2025-07-26T07:00:00Z", "average_heartrate": 131.0}
		]`))
	})

	mux.HandleFunc("/activities/100", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 100, "name": "Morning Run", "distance": 10000, "moving_time": 2950, "elapsed_time": 3010,
			"start_date_local": "2025-07-27T08:34:12Z", "average_heartrate": 152.3, "max_heartrate": 171,
			"total_elevation_gain": 84, "calories": 650, "average_temp": 18, "average_cadence": 88,
			"splits_metric": [
				{"distance": 1000, "moving_time": 296, "average_speed": 3.38, "average_heartrate": 148, "elevation_difference": 2.0},
				{"distance": 1000, "moving_time": 294, "average_speed": 3.4, "average_heartrate": 153, "elevation_difference": -1.5}
			]
		}`))
	})

	mux.HandleFunc("/activities/100/streams", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"heartrate": {"data": [140, 150, 155, 160]},
			"distance": {"data": [100, 800, 1200, 1900]}
		}`))
	})

	mux.HandleFunc("/activities/100/laps", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"distance": 5000, "moving_time": 1480, "average_heartrate": 149, "max_heartrate": 162, "average_cadence": 87, "total_elevation_gain": 40}
		]`))
	})

	return httptest.NewServer(mux)
}

func setupActivityService(t *testing.T, apiURL string, connected bool) *service.ActivityService {
	tokenService := setupTokenService(t, "http://localhost/token")

	if connected {
		err := tokenService.SaveTokens(1, &config.TokenPayload{
			AccessToken:  "A1",
			RefreshToken: "R1",
			ExpiresAt:    time.Now().Unix() + 3600,
		})
		assert.NilError(t, err)
	}

	activityService := service.NewActivityService(service.ActivityServiceConfig{
		APIBaseURL: apiURL,
	}, tokenService)

	err := activityService.Init()
	assert.NilError(t, err)

	return activityService
}

func TestGetAthlete(t *testing.T) {
	server := fakeStravaAPI(t)
	defer server.Close()

	activityService := setupActivityService(t, server.URL, true)

	athlete, err := activityService.GetAthlete(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, int64(77), athlete.ID)
	assert.Equal(t, "runner", athlete.Username)
}

func TestRecentActivities(t *testing.T) {
	server := fakeStravaAPI(t)
	defer server.Close()

	activityService := setupActivityService(t, server.URL, true)

	activities, err := activityService.RecentActivities(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, 2, len(activities))

	assert.Equal(t, int64(100), activities[0].ID)
	assert.Equal(t, "2025-07-27", activities[0].Date)
	assert.Equal(t, 10.0, activities[0].DistanceKm)
	assert.Equal(t, "49:10", activities[0].Duration)
	assert.Equal(t, "4:55/km", activities[0].AvgPace)
	assert.Equal(t, 152, activities[0].AvgHeartrate)
}

func TestRecentActivitiesWithoutCredential(t *testing.T) {
	server := fakeStravaAPI(t)
	defer server.Close()

	activityService := setupActivityService(t, server.URL, false)

	_, err := activityService.RecentActivities(context.Background(), 1)
	assert.ErrorIs(t, err, config.ErrNoCredential)
}

func TestWorkoutSummary(t *testing.T) {
	server := fakeStravaAPI(t)
	defer server.Close()

	activityService := setupActivityService(t, server.URL, true)

	report, err := activityService.WorkoutSummary(context.Background(), 1, "100")
	assert.NilError(t, err)

	assert.Equal(t, int64(100), report.ActivityID)
	assert.Equal(t, "Morning Run", report.Name)

	assert.Assert(t, strings.Contains(report.Summary, "Workout: Morning Run"))
	assert.Assert(t, strings.Contains(report.Summary, "Distance: 10.00 km"))
	assert.Assert(t, strings.Contains(report.Summary, "Splits:"))
	assert.Assert(t, strings.Contains(report.Summary, "Custom Laps:"))

	// First stream sample starts at 100m, which reads as a privacy zone
	assert.Assert(t, strings.Contains(report.Summary, "start location privacy"))
	// Last distance sample is 1.9km of a 10km run
	assert.Assert(t, strings.Contains(report.Summary, "end location privacy"))
}

func TestWorkoutSummaryLatestActivity(t *testing.T) {
	server := fakeStravaAPI(t)
	defer server.Close()

	activityService := setupActivityService(t, server.URL, true)

	// An empty activity id selects the most recent activity
	report, err := activityService.WorkoutSummary(context.Background(), 1, "")
	assert.NilError(t, err)
	assert.Equal(t, int64(100), report.ActivityID)
}
