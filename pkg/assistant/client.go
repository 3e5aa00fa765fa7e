// Package assistant 是模型网关 HTTP 接口的客户端，供会话在独立进程中调用网关。
package assistant

import (
	"bytes"
	"code-playground-go/internal/model"
	"code-playground-go/internal/parser"
	"code-playground-go/internal/service"
	"code-playground-go/pkg/llm"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client 通过 /api/analyze 与 /api/chat 调用网关，满足 playground.Gateway。
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 创建一个新的网关客户端，timeout 为 0 表示不设超时。
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP 使用自定义的 http.Client。
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type errorBody struct {
	Error string  `json:"error"`
	Raw   *string `json:"raw"`
}

// Analyze 请求代码审查。
func (c *Client) Analyze(ctx context.Context, code string) (*model.ReviewResult, error) {
	var result model.ReviewResult
	if err := c.post(ctx, "/api/analyze", map[string]string{"code": code}, &result); err != nil {
		return nil, err
	}
	if result.Suggestions == nil {
		result.Suggestions = []model.Suggestion{}
	}
	return &result, nil
}

// Chat 发送完整的对话历史并返回回复文本。
func (c *Client) Chat(ctx context.Context, history []model.ChatMessage) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/api/chat", map[string][]model.ChatMessage{"messages": history}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	reqBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return llm.ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.ClassifyTransportError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			return &llm.GatewayError{Kind: llm.UpstreamRejected, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return service.ErrPayloadTooLarge
	case resp.StatusCode == http.StatusInternalServerError && eb.Raw != nil:
		return &parser.MalformedError{Raw: *eb.Raw}
	default:
		return &llm.GatewayError{Kind: llm.UpstreamRejected, StatusCode: resp.StatusCode, Detail: eb.Error}
	}
}
