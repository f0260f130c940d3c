package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/rs/zerolog/log"
)

type ActivityServiceConfig struct {
	APIBaseURL string
}

// ActivityService fetches workout data from the provider API and derives
// the human-readable summaries the coach prompt is built from. Every call
// resolves the access token through the token service, so an expired
// credential is refreshed transparently and a dead one surfaces as
// ErrNoCredential.
type ActivityService struct {
	Config ActivityServiceConfig
	tokens *TokenService
	client *http.Client
}

type ActivitySummary struct {
	ID           int64   `json:"id"`
	Date         string  `json:"date"`
	Name         string  `json:"name"`
	DistanceKm   float64 `json:"length_km"`
	Duration     string  `json:"duration"`
	AvgPace      string  `json:"avg_pace"`
	AvgHeartrate int     `json:"avg_hr"`
}

// WorkoutReport carries the composed summary for one activity.
type WorkoutReport struct {
	ActivityID int64  `json:"activity_id"`
	Name       string `json:"name"`
	Summary    string `json:"summary"`
}

type stravaAthlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"`
}

type stravaSplit struct {
	Distance            float64 `json:"distance"`
	MovingTime          int64   `json:"moving_time"`
	AverageSpeed        float64 `json:"average_speed"`
	AverageHeartrate    float64 `json:"average_heartrate"`
	ElevationDifference float64 `json:"elevation_difference"`
}

type stravaLap struct {
	Distance           float64 `json:"distance"`
	MovingTime         int64   `json:"moving_time"`
	AverageHeartrate   float64 `json:"average_heartrate"`
	MaxHeartrate       float64 `json:"max_heartrate"`
	AverageCadence     float64 `json:"average_cadence"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
}

type stravaActivity struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"name"`
	Distance           float64       `json:"distance"`
	MovingTime         int64         `json:"moving_time"`
	ElapsedTime        int64         `json:"elapsed_time"`
	StartDateLocal     string        `json:"start_date_local"`
	AverageHeartrate   float64       `json:"average_heartrate"`
	MaxHeartrate       float64       `json:"max_heartrate"`
	TotalElevationGain float64       `json:"total_elevation_gain"`
	Calories           float64       `json:"calories"`
	AverageTemp        float64       `json:"average_temp"`
	AverageCadence     float64       `json:"average_cadence"`
	SplitsMetric       []stravaSplit `json:"splits_metric"`
}

type stravaStreams struct {
	Heartrate struct {
		Data []float64 `json:"data"`
	} `json:"heartrate"`
	Distance struct {
		Data []float64 `json:"data"`
	} `json:"distance"`
}

func NewActivityService(config ActivityServiceConfig, tokens *TokenService) *ActivityService {
	return &ActivityService{
		Config: config,
		tokens: tokens,
	}
}

func (as *ActivityService) Init() error {
	as.client = &http.Client{
		Timeout: 30 * time.Second,
	}
	return nil
}

// GetAthlete fetches the connected athlete's profile.
func (as *ActivityService) GetAthlete(ctx context.Context, userID uint) (*config.Athlete, error) {
	token := as.tokens.GetAccessToken(ctx, userID)

	if token == "" {
		return nil, config.ErrNoCredential
	}

	var athlete stravaAthlete

	if err := as.doGet(ctx, token, "/athlete", nil, &athlete); err != nil {
		return nil, err
	}

	return &config.Athlete{
		ID:        athlete.ID,
		Username:  athlete.Username,
		Firstname: athlete.Firstname,
		Lastname:  athlete.Lastname,
	}, nil
}

// RecentActivities returns summaries of the athlete's last 20 activities.
func (as *ActivityService) RecentActivities(ctx context.Context, userID uint) ([]ActivitySummary, error) {
	token := as.tokens.GetAccessToken(ctx, userID)

	if token == "" {
		return nil, config.ErrNoCredential
	}

	var raw []stravaActivity

	query := url.Values{}
	query.Set("per_page", "20")
	query.Set("page", "1")

	if err := as.doGet(ctx, token, "/athlete/activities", query, &raw); err != nil {
		return nil, err
	}

	activities := make([]ActivitySummary, 0, len(raw))

	for _, act := range raw {
		distanceKm := utils.MetersToKm(act.Distance)

		summary := ActivitySummary{
			ID:           act.ID,
			Date:         strings.SplitN(act.StartDateLocal, "T", 2)[0],
			Name:         act.Name,
			DistanceKm:   distanceKm,
			Duration:     utils.FormatDuration(act.MovingTime, "colon"),
			AvgPace:      utils.FormatPace(float64(act.MovingTime), distanceKm),
			AvgHeartrate: int(act.AverageHeartrate),
		}

		activities = append(activities, summary)
	}

	return activities, nil
}

// WorkoutSummary builds the full text report for an activity: headline
// metrics, per-kilometer splits with max heart rate, custom laps and
// privacy warnings for missing stream data. An empty activityID selects
// the most recent activity.
func (as *ActivityService) WorkoutSummary(ctx context.Context, userID uint, activityID string) (*WorkoutReport, error) {
	token := as.tokens.GetAccessToken(ctx, userID)

	if token == "" {
		return nil, config.ErrNoCredential
	}

	if activityID == "" {
		var latest []stravaActivity

		query := url.Values{}
		query.Set("per_page", "1")

		if err := as.doGet(ctx, token, "/athlete/activities", query, &latest); err != nil {
			return nil, err
		}

		if len(latest) == 0 {
			return nil, fmt.Errorf("no activities found")
		}

		activityID = fmt.Sprintf("%d", latest[0].ID)
	}

	var activity stravaActivity

	if err := as.doGet(ctx, token, "/activities/"+activityID, nil, &activity); err != nil {
		return nil, err
	}

	var streams stravaStreams

	query := url.Values{}
	query.Set("keys", "heartrate,distance")
	query.Set("key_by_type", "true")

	if err := as.doGet(ctx, token, "/activities/"+activityID+"/streams", query, &streams); err != nil {
		log.Warn().Err(err).Str("activity_id", activityID).Msg("Failed to fetch activity streams, report will have no max heart rates")
	}

	var laps []stravaLap

	if err := as.doGet(ctx, token, "/activities/"+activityID+"/laps", nil, &laps); err != nil {
		log.Warn().Err(err).Str("activity_id", activityID).Msg("Failed to fetch activity laps")
	}

	return &WorkoutReport{
		ActivityID: activity.ID,
		Name:       activity.Name,
		Summary:    composeSummary(&activity, &streams, laps),
	}, nil
}

func (as *ActivityService) doGet(ctx context.Context, token string, path string, query url.Values, out any) error {
	endpoint := as.Config.APIBaseURL + path

	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)

	res, err := as.client.Do(req)

	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("provider api returned %s for %s", res.Status, path)
	}

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

func composeSummary(activity *stravaActivity, streams *stravaStreams, laps []stravaLap) string {
	distanceKm := utils.MetersToKm(activity.Distance)

	var b strings.Builder

	fmt.Fprintf(&b, "Workout: %s\n", activity.Name)
	fmt.Fprintf(&b, "Start: %s\n", utils.FormatDate(activity.StartDateLocal))
	fmt.Fprintf(&b, "Distance: %.2f km\n", distanceKm)
	fmt.Fprintf(&b, "Moving Time: %s | Elapsed: %s\n", utils.FormatDuration(activity.MovingTime, "long"), utils.FormatDuration(activity.ElapsedTime, "long"))
	fmt.Fprintf(&b, "Avg HR: %d bpm | Max HR: %d bpm\n", int(activity.AverageHeartrate), int(activity.MaxHeartrate))
	fmt.Fprintf(&b, "Calories: %d\n", int(activity.Calories))
	fmt.Fprintf(&b, "Temp: %.0f C | Cadence: %d spm\n", activity.AverageTemp, int(activity.AverageCadence*2))
	fmt.Fprintf(&b, "Elev Gain: %d m\n\n", int(activity.TotalElevationGain))

	b.WriteString(strings.Repeat("=", 40) + "\nSplits:\n")
	b.WriteString(formatSplits(activity, streams, distanceKm))

	b.WriteString("\n" + strings.Repeat("=", 40) + "\nCustom Laps:\n")
	b.WriteString(formatLaps(laps))

	return b.String()
}

func formatSplits(activity *stravaActivity, streams *stravaStreams, distanceKm float64) string {
	hrData := streams.Heartrate.Data
	distData := streams.Distance.Data

	// Bucket the heart-rate stream by kilometer so each split can report
	// its own maximum.
	splitMaxHR := make(map[int]float64)

	for i := 0; i < len(hrData) && i < len(distData); i++ {
		split := int(distData[i] / 1000)
		if hrData[i] > splitMaxHR[split] {
			splitMaxHR[split] = hrData[i]
		}
	}

	var b strings.Builder

	for i, split := range activity.SplitsMetric {
		splitKm := split.Distance / 1000
		pace := utils.ValueMissing
		if split.AverageSpeed > 0 {
			pace = utils.FormatPace(1000/split.AverageSpeed, 1)
		}

		maxHR := utils.ValueMissing
		if hr, ok := splitMaxHR[i]; ok {
			maxHR = fmt.Sprintf("%d", int(hr))
		}

		fmt.Fprintf(&b, "%2d: %.2f km | %-8s | %-8s | HR %-3d | Max HR %-3s | Elev %+.1fm\n",
			i+1,
			splitKm,
			pace,
			utils.FormatDuration(split.MovingTime, "compact"),
			int(split.AverageHeartrate),
			maxHR,
			split.ElevationDifference,
		)
	}

	b.WriteString(privacyWarnings(distData, distanceKm))

	return b.String()
}

func formatLaps(laps []stravaLap) string {
	var b strings.Builder

	for i, lap := range laps {
		distanceKm := utils.MetersToKm(lap.Distance)

		fmt.Fprintf(&b, "%2d: %.2f km | Time %-5s | Pace %-8s | HR %d | Max %d | Elev %+.1fm | Cadence %d\n",
			i+1,
			distanceKm,
			utils.FormatDuration(lap.MovingTime, "compact"),
			utils.FormatPace(float64(lap.MovingTime), distanceKm),
			int(lap.AverageHeartrate),
			int(lap.MaxHeartrate),
			lap.TotalElevationGain,
			int(lap.AverageCadence*2),
		)
	}

	return b.String()
}

// privacyWarnings flags heart-rate data clipped by the athlete's start or
// end location privacy zones, which otherwise reads as a sensor dropout.
func privacyWarnings(distData []float64, distanceKm float64) string {
	var b strings.Builder

	if len(distData) > 0 && distData[0] > 30 {
		b.WriteString("\nWarning: missing early HR data, likely due to start location privacy settings.\n")
	}

	if len(distData) > 0 && distanceKm-distData[len(distData)-1]/1000 > 0.1 {
		b.WriteString("\nWarning: missing end HR data, likely due to end location privacy settings.\n")
	}

	return b.String()
}
