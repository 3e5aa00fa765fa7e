// Package llm provides a client for OpenAI-compatible chat-completion APIs.
package llm

import (
	"bytes"
	"code-playground-go/internal/config"
	"code-playground-go/pkg/log"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// 上游错误正文最多保留的字节数
const maxErrorDetail = 512

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以 role-based 消息调用聊天接口，返回第一条候选回复的完整文本。
	// 每次调用恰好发起一次上游请求，不做重试。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP 使用自定义的 http.Client，便于测试替换传输层。
func NewClientWithHTTP(cfg config.LLMConfig, httpClient *http.Client) Client {
	return &openAIClient{
		cfg:    cfg,
		client: httpClient,
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Complete calls the chat completions endpoint and returns the reply content.
func (c *openAIClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ClassifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GatewayError{
			Kind:       UpstreamRejected,
			StatusCode: resp.StatusCode,
			Detail:     c.redact(truncate(string(body), maxErrorDetail)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &GatewayError{Kind: UpstreamRejected, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode chat response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &GatewayError{Kind: UpstreamRejected, StatusCode: resp.StatusCode, Detail: "response contained no choices"}
	}

	log.Debugf("chat completion finished: model=%s latency=%s", c.cfg.Model, time.Since(start))
	return parsed.Choices[0].Message.Content, nil
}

// redact 防止上游在错误正文中回显凭证
func (c *openAIClient) redact(s string) string {
	if c.cfg.APIKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.cfg.APIKey, "[REDACTED]")
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// 退回到 rune 边界，避免截出非法 UTF-8
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
