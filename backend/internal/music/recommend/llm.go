package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	llmTimeout    = 15 * time.Second
	llmMaxRetries = 3
	radioPrompt   = "You are a music radio DJ. Suggest songs that flow well after the given song, keeping its mood and style. Format each suggestion as 'Artist - Song Title', one per line. Only output the song suggestions, nothing else."
)

var errNoChoices = errors.New("no choices in LLM response")

// LLM recommends tracks by asking an OpenAI compatible chat endpoint
type LLM struct {
	client *openai.Client
	model  string
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLLM creates an LLM recommender. baseURL is the API root, e.g.
// https://openrouter.ai/api or a LiteLLM proxy; "/v1" is appended.
func NewLLM(baseURL, apiKey, model string, logger *zap.Logger) *LLM {
	// LiteLLM accepts any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recommend returns a random "Artist - Song" suggestion for the seed
func (l *LLM) Recommend(ctx context.Context, title, artist string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	seed := title
	if artist != "" {
		seed = fmt.Sprintf("%s - %s", artist, title)
	}
	content, err := l.complete(ctx, radioPrompt,
		fmt.Sprintf("The last song played was: %s\n\nSuggest 5 songs to play next. Do not suggest the same song.", seed))
	if err != nil {
		return "", err
	}

	var candidates []string
	for _, q := range parseSongQueries(content) {
		if !strings.EqualFold(q, seed) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return candidates[l.rng.Intn(len(candidates))], nil
}

// complete sends one chat request, retrying with linear backoff
func (l *LLM) complete(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0.9,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < llmMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			l.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err = l.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		l.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", l.model))
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate response after %d attempts: %w", llmMaxRetries, err)
	}

	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// parseSongQueries extracts "Artist - Song" lines from a model reply,
// stripping list markers and rewriting "Song by Artist".
func parseSongQueries(content string) []string {
	var queries []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		line = stripNumbering(line)
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}

		if !strings.Contains(line, " - ") {
			idx := strings.Index(strings.ToLower(line), " by ")
			if idx < 0 {
				continue
			}
			line = fmt.Sprintf("%s - %s", strings.TrimSpace(line[idx+4:]), strings.TrimSpace(line[:idx]))
		}

		artist, song, _ := strings.Cut(line, " - ")
		if strings.TrimSpace(artist) != "" && strings.TrimSpace(song) != "" {
			queries = append(queries, line)
		}
	}

	return queries
}

// stripNumbering removes a leading "12. " marker
func stripNumbering(line string) string {
	dot := strings.Index(line, ". ")
	if dot <= 0 {
		return line
	}
	for _, r := range line[:dot] {
		if r < '0' || r > '9' {
			return line
		}
	}
	return strings.TrimSpace(line[dot+2:])
}
