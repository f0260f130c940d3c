package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const coachStubReply = "[coach disabled, no feedback generated]"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

type CoachServiceConfig struct {
	Enabled bool
	APIKey  string
	APIURL  string
	Model   string
}

// CoachService calls the chat-completion endpoint that generates training
// feedback. The service is best effort: calls are timeout bounded, retried
// a few times on transient failures and an error here must never take the
// caller down.
type CoachService struct {
	Config CoachServiceConfig
	client *http.Client

	requests         atomic.Int64
	stubbed          atomic.Int64
	failures         atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	costMicroUSD     atomic.Int64
}

// CoachStats is a point-in-time snapshot of the usage counters.
type CoachStats struct {
	Requests         int64   `json:"requests"`
	Stubbed          int64   `json:"stubbed"`
	Failures         int64   `json:"failures"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

func NewCoachService(config CoachServiceConfig) *CoachService {
	return &CoachService{
		Config: config,
	}
}

func (cs *CoachService) Init() error {
	if cs.Config.Enabled && cs.Config.APIKey == "" {
		return errors.New("coach api key is required when the coach is enabled")
	}

	cs.client = &http.Client{
		Timeout: 60 * time.Second,
	}

	return nil
}

// ChatCompletion sends the conversation to the completion endpoint and
// returns the generated text. When the coach is disabled a stub reply is
// returned so the rest of the app behaves the same in development.
func (cs *CoachService) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if !cs.Config.Enabled {
		log.Info().Str("model", cs.Config.Model).Msg("Coach disabled, returning stub reply")
		cs.stubbed.Add(1)
		return coachStubReply, nil
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:    cs.Config.Model,
		Messages: messages,
	})

	if err != nil {
		return "", err
	}

	start := time.Now()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.RandomizationFactor = 0.1
	exp.Multiplier = 1.5
	exp.Reset()

	operation := func() (*chatCompletionResponse, error) {
		return cs.doRequest(ctx, body)
	}

	completion, err := backoff.Retry(ctx, operation, backoff.WithBackOff(exp), backoff.WithMaxTries(3))

	latency := time.Since(start)

	if err != nil {
		log.Error().Err(err).Str("model", cs.Config.Model).Str("latency", latency.String()).Msg("Coach completion failed")
		cs.failures.Add(1)
		return "", err
	}

	if len(completion.Choices) == 0 {
		cs.failures.Add(1)
		return "", errors.New("completion response has no choices")
	}

	cs.requests.Add(1)
	cs.promptTokens.Add(completion.Usage.PromptTokens)
	cs.completionTokens.Add(completion.Usage.CompletionTokens)

	// Prompt tokens at $0.0015/1K, completion tokens at $0.0020/1K,
	// tracked in microdollars to keep the counter integral.
	cost := completion.Usage.PromptTokens*3/2 + completion.Usage.CompletionTokens*2
	cs.costMicroUSD.Add(cost)

	log.Info().
		Str("model", cs.Config.Model).
		Int64("prompt_tokens", completion.Usage.PromptTokens).
		Int64("completion_tokens", completion.Usage.CompletionTokens).
		Int64("total_tokens", completion.Usage.TotalTokens).
		Str("latency", latency.String()).
		Msg("Coach completion successful")

	return completion.Choices[0].Message.Content, nil
}

func (cs *CoachService) doRequest(ctx context.Context, body []byte) (*chatCompletionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cs.Config.APIURL, bytes.NewReader(body))

	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cs.Config.APIKey)

	res, err := cs.client.Do(req)

	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return nil, fmt.Errorf("completion endpoint returned %s", res.Status)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Client errors will not get better on retry
		return nil, backoff.Permanent(fmt.Errorf("completion endpoint returned %s", res.Status))
	}

	payload, err := io.ReadAll(res.Body)

	if err != nil {
		return nil, err
	}

	var completion chatCompletionResponse

	if err := json.Unmarshal(payload, &completion); err != nil {
		return nil, backoff.Permanent(err)
	}

	return &completion, nil
}

func (cs *CoachService) Stats() CoachStats {
	return CoachStats{
		Requests:         cs.requests.Load(),
		Stubbed:          cs.stubbed.Load(),
		Failures:         cs.failures.Load(),
		PromptTokens:     cs.promptTokens.Load(),
		CompletionTokens: cs.completionTokens.Load(),
		CostUSD:          float64(cs.costMicroUSD.Load()) / 1e6,
	}
}
