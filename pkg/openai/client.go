package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"token-risk/internal/server/config"
	"token-risk/pkg/httpclient"
	"token-risk/pkg/logger"

	"go.uber.org/zap"
)

// ErrEmptyResponse 接口返回成功但没有内容
var ErrEmptyResponse = errors.New("empty completion")

// ErrDisabled 未配置 api key
var ErrDisabled = errors.New("chat generator not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type ChatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Client chat completions 客户端
type Client struct {
	cfg        config.OpenAIConfig
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	if cfg.Organization != "" {
		headers["OpenAI-Organization"] = cfg.Organization
	}
	return &Client{
		cfg: cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.HTTPClientConfig{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Headers: headers,
		}, logger),
		logger: logger,
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

// Respond 用 persona 作为 system prompt 生成回复；history 为最近的对话行
func (c *Client) Respond(ctx context.Context, persona, text string, history []string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	ctx, span := logger.StartSpan(ctx, "openai", "Respond")
	var err error
	defer func() { logger.EndSpan(span, err) }()

	messages := []Message{{Role: "system", Content: persona}}
	if len(history) > 0 {
		messages = append(messages, Message{Role: "system", Content: "Conversation so far:\n" + strings.Join(history, "\n")})
	}
	messages = append(messages, Message{Role: "user", Content: text})

	req := ChatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}

	var resp ChatResponse
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	if err = c.httpClient.PostJSON(ctx, url, req, nil, &resp); err != nil {
		err = fmt.Errorf("chat completion: %w", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err = ErrEmptyResponse
		return "", err
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		err = ErrEmptyResponse
		return "", err
	}
	c.logger.Debug("chat completion generated", zap.Int("chars", len(out)))
	return out, nil
}
