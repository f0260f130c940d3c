package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stridecoach/stridecoach/internal/service"

	"gotest.tools/v3/assert"
)

func coachMessages() []service.ChatMessage {
	return []service.ChatMessage{
		{Role: "system", Content: "You are an expert marathon coach."},
		{Role: "user", Content: "How was my run?"},
	}
}

func TestChatCompletionDisabled(t *testing.T) {
	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: false,
	})
	assert.NilError(t, coachService.Init())

	reply, err := coachService.ChatCompletion(context.Background(), coachMessages())
	assert.NilError(t, err)
	assert.Assert(t, reply != "")

	stats := coachService.Stats()
	assert.Equal(t, int64(1), stats.Stubbed)
	assert.Equal(t, int64(0), stats.Requests)
}

func TestInitRequiresKeyWhenEnabled(t *testing.T) {
	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: true,
	})
	assert.Assert(t, coachService.Init() != nil)
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "Nice negative split, keep the easy days easy."}}],
			"usage": {"prompt_tokens": 1000, "completion_tokens": 500, "total_tokens": 1500}
		}`)
	}))
	defer server.Close()

	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: true,
		APIKey:  "test-key",
		APIURL:  server.URL,
		Model:   "gpt-4o-mini",
	})
	assert.NilError(t, coachService.Init())

	reply, err := coachService.ChatCompletion(context.Background(), coachMessages())
	assert.NilError(t, err)
	assert.Equal(t, "Nice negative split, keep the easy days easy.", reply)

	stats := coachService.Stats()
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(1000), stats.PromptTokens)
	assert.Equal(t, int64(500), stats.CompletionTokens)
	assert.Equal(t, 0.0025, stats.CostUSD)
}

func TestChatCompletionRetriesServerErrors(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "Recovered."}}], "usage": {}}`)
	}))
	defer server.Close()

	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: true,
		APIKey:  "test-key",
		APIURL:  server.URL,
		Model:   "gpt-4o-mini",
	})
	assert.NilError(t, coachService.Init())

	reply, err := coachService.ChatCompletion(context.Background(), coachMessages())
	assert.NilError(t, err)
	assert.Equal(t, "Recovered.", reply)
	assert.Equal(t, 3, calls)
}

func TestChatCompletionDoesNotRetryClientErrors(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: true,
		APIKey:  "bad-key",
		APIURL:  server.URL,
		Model:   "gpt-4o-mini",
	})
	assert.NilError(t, coachService.Init())

	_, err := coachService.ChatCompletion(context.Background(), coachMessages())
	assert.Assert(t, err != nil)
	assert.Equal(t, 1, calls)

	stats := coachService.Stats()
	assert.Equal(t, int64(1), stats.Failures)
}
