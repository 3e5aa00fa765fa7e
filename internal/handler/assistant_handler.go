// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"code-playground-go/internal/model"
	"code-playground-go/internal/parser"
	"code-playground-go/internal/service"
	"code-playground-go/pkg/log"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 返回给客户端的固定错误文本
const (
	msgAnalyzeFailed   = "Failed to analyze code"
	msgChatFailed      = "Chat API failed"
	msgInvalidJSON     = "Invalid JSON"
	msgPayloadTooLarge = "Payload too large"
	msgInvalidBody     = "Invalid request body"
)

// AssistantHandler 暴露模型网关的两个 HTTP 接口。
type AssistantHandler struct {
	gateway service.GatewayService
}

// NewAssistantHandler 创建一个新的 AssistantHandler。
func NewAssistantHandler(gateway service.GatewayService) *AssistantHandler {
	return &AssistantHandler{gateway: gateway}
}

// AnalyzeRequest 是 /api/analyze 的请求体，code 允许为空。
type AnalyzeRequest struct {
	Code string `json:"code"`
}

// ChatRequest 是 /api/chat 的请求体。
type ChatRequest struct {
	Messages []model.ChatMessage `json:"messages" binding:"required"`
}

// ChatResponse 是 /api/chat 的成功响应。
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Analyze 处理代码审查请求。
func (h *AssistantHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBindError(c, err)
		return
	}

	result, err := h.gateway.Analyze(c.Request.Context(), req.Code)
	if err != nil {
		var malformed *parser.MalformedError
		switch {
		case errors.Is(err, service.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgPayloadTooLarge})
		case errors.As(err, &malformed):
			log.Warnf("Analyze Error: 模型输出无法解析为 JSON")
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgInvalidJSON, "raw": malformed.Raw})
		default:
			log.Error("Analyze Error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgAnalyzeFailed})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Chat 处理聊天请求，转发完整历史并返回模型回复。
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBindError(c, err)
		return
	}

	reply, err := h.gateway.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgPayloadTooLarge})
		case errors.Is(err, service.ErrInvalidHistory):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("Chat Error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgChatFailed})
		}
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// abortBindError 区分请求体超限与格式错误。
func abortBindError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgPayloadTooLarge})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
}
