// Package service 包含了应用的业务逻辑层。
package service

import (
	"code-playground-go/internal/config"
	"code-playground-go/internal/model"
	"code-playground-go/internal/parser"
	"code-playground-go/pkg/llm"
	"code-playground-go/pkg/log"
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge 输入超过配置的大小上限，请求不会发往上游。
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidHistory 聊天历史为空或包含不允许的角色。
	ErrInvalidHistory = errors.New("invalid chat history")
)

// 未配置 llm.prompt.review_rules 时使用的系统提示，要求模型返回固定的 JSON 结构。
const defaultReviewRules = `You are an expert code reviewer.

Return STRICT VALID JSON and nothing else:

{
  "suggestions": [
    { "type": "performance|security|logic", "severity": "low|medium|high", "message": "" }
  ],
  "improved_code": ""
}

Use "improved_code" for the full corrected source, or leave it empty when no change is needed.`

// GatewayService 是模型网关：唯一持有上游凭证、负责调用远端模型的组件。
// 它在两次调用之间不保存任何状态。
type GatewayService interface {
	// Analyze 将代码发给模型审查并返回结构化结果。
	// 模型输出无法解析时返回 *parser.MalformedError。
	Analyze(ctx context.Context, code string) (*model.ReviewResult, error)
	// Chat 转发完整的对话历史，返回模型的原始回复文本。
	Chat(ctx context.Context, history []model.ChatMessage) (string, error)
}

type gatewayService struct {
	llmClient    llm.Client
	llmCfg       config.LLMConfig
	maxBodyBytes int64
}

// NewGatewayService 创建一个新的 GatewayService 实例。
func NewGatewayService(llmClient llm.Client, llmCfg config.LLMConfig, maxBodyBytes int64) GatewayService {
	return &gatewayService{
		llmClient:    llmClient,
		llmCfg:       llmCfg,
		maxBodyBytes: maxBodyBytes,
	}
}

// Analyze 构造审查提示、调用模型并归一化输出。
func (s *gatewayService) Analyze(ctx context.Context, code string) (*model.ReviewResult, error) {
	if s.tooLarge(int64(len(code))) {
		return nil, ErrPayloadTooLarge
	}

	messages := []llm.Message{
		{Role: "system", Content: s.reviewRules()},
		{Role: "user", Content: "Code:\n" + code},
	}
	raw, err := s.llmClient.Complete(ctx, messages, s.generationParams(s.llmCfg.Generation.AnalyzeTemperature))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	result, err := parser.Normalize(raw)
	if err != nil {
		log.Warnw("模型返回的审查结果无法解析", "rawLength", len(raw))
		return nil, err
	}
	log.Infof("代码审查完成: suggestions=%d improvedCode=%t", len(result.Suggestions), result.HasImprovedCode())
	return result, nil
}

// Chat 校验历史后原样转发给模型。
func (s *gatewayService) Chat(ctx context.Context, history []model.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidHistory)
	}
	var total int64
	messages := make([]llm.Message, 0, len(history))
	for i, m := range history {
		if !m.Role.Valid() {
			return "", fmt.Errorf("%w: message %d has role %q", ErrInvalidHistory, i, m.Role)
		}
		total += int64(len(m.Content))
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	if s.tooLarge(total) {
		return "", ErrPayloadTooLarge
	}

	reply, err := s.llmClient.Complete(ctx, messages, s.generationParams(s.llmCfg.Generation.ChatTemperature))
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

func (s *gatewayService) tooLarge(n int64) bool {
	return s.maxBodyBytes > 0 && n > s.maxBodyBytes
}

func (s *gatewayService) reviewRules() string {
	if s.llmCfg.Prompt.ReviewRules != "" {
		return s.llmCfg.Prompt.ReviewRules
	}
	return defaultReviewRules
}

// generationParams 从配置注入生成参数（零值表示沿用上游默认）
func (s *gatewayService) generationParams(temperature float64) *llm.GenerationParams {
	var gp llm.GenerationParams
	if temperature != 0 {
		t := temperature
		gp.Temperature = &t
	}
	if s.llmCfg.Generation.TopP != 0 {
		p := s.llmCfg.Generation.TopP
		gp.TopP = &p
	}
	if s.llmCfg.Generation.MaxTokens != 0 {
		m := s.llmCfg.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}
