package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

const systemPrompt = `You re-rank learning recommendations for a student.
Given a short student context and an ordered list of recommendation ids,
return a JSON object {"order": [ids...]} containing exactly the same ids,
best first. Return nothing else.`

// Reranker asks a chat model to reorder a recommendation list. Callers
// treat any error as "keep the rule-based order"; this client never
// needs to succeed.
type Reranker struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

func NewReranker(apiKey, model string, baseLog *logger.Logger) (*Reranker, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing openai api key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Reranker{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    baseLog.With("client", "OpenAIReranker"),
	}, nil
}

func (r *Reranker) Rerank(ctx context.Context, studentContext string, ids []uuid.UUID) ([]uuid.UUID, error) {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	user := fmt.Sprintf("Student context: %s\nRecommendation ids in rule-based order: %s", studentContext, strings.Join(idStrings, ", "))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: 512,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rerank completion returned no choices")
	}
	return parseOrder(resp.Choices[0].Message.Content, ids)
}

// parseOrder decodes the model response and verifies it is a
// permutation of the input ids.
func parseOrder(content string, ids []uuid.UUID) ([]uuid.UUID, error) {
	var payload struct {
		Order []string `json:"order"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(payload.Order) != len(ids) {
		return nil, fmt.Errorf("rerank response has %d ids, want %d", len(payload.Order), len(ids))
	}
	allowed := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, s := range payload.Order {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("rerank response contains invalid id %q", s)
		}
		if !allowed[id] || seen[id] {
			return nil, fmt.Errorf("rerank response is not a permutation of the input ids")
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
