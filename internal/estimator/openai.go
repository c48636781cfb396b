package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/obeyhq/backend/domain"
)

const (
	// remoteGraceMinutes is the deadline slack the remote path grants on
	// top of the raw estimate.
	remoteGraceMinutes = 360

	minEstimateHours = 0.5
	maxEstimateHours = 24
)

// OpenAIConfig configures the chat-completions client. The endpoint only has
// to be OpenAI-compatible.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	ValidateModel string
	EstimateModel string
	CommentModel  string
}

// OpenAI asks a chat-completions endpoint to validate task text, estimate
// effort, and produce persona commentary. All numeric output is clamped
// before it leaves this package.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAI builds the remote estimator.
func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
}

var _ Estimator = (*OpenAI)(nil)

func (o *OpenAI) Estimate(ctx context.Context, text string, rank int) (*Result, error) {
	valid, err := o.validate(ctx, text)
	if err != nil {
		return nil, err
	}
	if !valid {
		return &Result{Valid: false, Comment: "...what are you even saying?"}, nil
	}

	hours, err := o.estimateHours(ctx, text)
	if err != nil {
		return nil, err
	}
	if hours < minEstimateHours {
		hours = minEstimateHours
	}
	if hours > maxEstimateHours {
		hours = maxEstimateHours
	}

	result := &Result{
		Valid:           true,
		EstimateMinutes: int(hours * 60),
		GraceMinutes:    remoteGraceMinutes,
		Weight:          3,
	}

	// Commentary is advisory; losing it should not cost a good estimate.
	comment, err := o.proposalComment(ctx, text, hours, rank)
	if err != nil {
		o.logger.Warn("proposal comment generation failed", zap.Error(err))
	} else {
		result.Comment = comment
	}
	return result, nil
}

func (o *OpenAI) CompletionComment(ctx context.Context, task *domain.Task, report string, rank int) (string, error) {
	persona := personaFor(rank)
	prompt := fmt.Sprintf(`Write a short comment on this completed task.

Task: %s
Completion report: %s

Rules:
- React to the report and the task outcome specifically.
- Never mention points or scores.
- Stay in character.
- Around 80 characters.`, task.Title, report)

	return o.chat(ctx, o.cfg.CommentModel, persona.Prompt+" Comment on the task completion.", prompt, false)
}

func (o *OpenAI) validate(ctx context.Context, text string) (bool, error) {
	prompt := fmt.Sprintf(`Decide whether the following text works as a task.

Input: %s

Accept anything that hints at work to be done, even a single word. Reject
repeated characters, symbol-only or digit-only strings, and random letter
mashing.

Answer as JSON: {"valid": true/false}`, text)

	content, err := o.chat(ctx, o.cfg.ValidateModel,
		"You are a task management assistant. Be lenient: accept input as a task whenever possible.",
		prompt, true)
	if err != nil {
		return false, err
	}

	var verdict struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return false, fmt.Errorf("parsing validation response: %w", err)
	}
	return verdict.Valid, nil
}

func (o *OpenAI) estimateHours(ctx context.Context, text string) (float64, error) {
	prompt := fmt.Sprintf(`Estimate how long this task realistically takes.

Task: %s

Give the pure working time in hours, between 0.5 and 24. Judge duration, not
difficulty.

Answer as JSON: {"estimate_hours": number}`, text)

	content, err := o.chat(ctx, o.cfg.EstimateModel,
		"You are a task management expert. Estimate realistic completion times.",
		prompt, true)
	if err != nil {
		return 0, err
	}

	var estimate struct {
		EstimateHours float64 `json:"estimate_hours"`
	}
	if err := json.Unmarshal([]byte(content), &estimate); err != nil {
		return 0, fmt.Errorf("parsing estimate response: %w", err)
	}
	return estimate.EstimateHours, nil
}

func (o *OpenAI) proposalComment(ctx context.Context, text string, hours float64, rank int) (string, error) {
	persona := personaFor(rank)
	prompt := fmt.Sprintf(`Write a short comment on this task as its assigned overseer.

Task: %s
Estimated effort: %.1f hours

Rules:
- Refer to the task content specifically.
- Mention how to approach it or what to watch out for.
- Stay in character.
- 30 to 50 characters.`, text, hours)

	return o.chat(ctx, o.cfg.CommentModel, persona.Prompt, prompt, false)
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) chat(ctx context.Context, model, system, user string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if jsonMode {
		reqBody.ResponseFormat = &chatFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.Trim(strings.TrimSpace(parsed.Choices[0].Message.Content), `"'`), nil
}
