package handler

import (
	"code-playground-go/internal/config"
	"code-playground-go/internal/playground"
	"code-playground-go/pkg/log"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	errorQueueSize = 16
	// 读上限在请求体上限之外留出 JSON 包装的余量
	frameOverhead = 4 << 10
)

// 客户端可以发送的动作
const (
	actionChat    = "chat"
	actionAnalyze = "analyze"
	actionEdit    = "edit"
	actionApply   = "apply"
)

// SessionAction 是客户端通过 WebSocket 发送的一条动作。
type SessionAction struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Code   string `json:"code,omitempty"`
	TurnID int64  `json:"turnId,omitempty"`
}

// SessionEvent 是服务端推送给客户端的事件。
type SessionEvent struct {
	Type     string               `json:"type"`
	Snapshot *playground.Snapshot `json:"snapshot,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// SessionHandler 负责 /api/session 的 WebSocket 连接，每个连接对应一个独立会话。
type SessionHandler struct {
	gateway      playground.Gateway
	playground   config.PlaygroundConfig
	maxBodyBytes int64
	upgrader     websocket.Upgrader
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(gateway playground.Gateway, cfg config.Config) *SessionHandler {
	origins := cfg.CORS.AllowedOrigins
	return &SessionHandler{
		gateway:      gateway,
		playground:   cfg.Playground,
		maxBodyBytes: cfg.Server.MaxBodyBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *SessionHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	if h.maxBodyBytes > 0 {
		conn.SetReadLimit(h.maxBodyBytes + frameOverhead)
	}

	sessionID := uuid.NewString()
	log.Infof("会话已建立: %s", sessionID)

	// 快照通道只保留最新一份，慢客户端只会错过中间版本
	snapshots := make(chan playground.Snapshot, 1)
	errs := make(chan string, errorQueueSize)
	done := make(chan struct{})

	session := playground.NewSession(h.gateway, playground.Options{
		ID:           sessionID,
		Greeting:     h.playground.Greeting,
		CodeLanguage: h.playground.CodeLanguage,
		InitialCode:  playground.DefaultInitialCode,
		OnChange: func(s playground.Snapshot) {
			publishLatest(snapshots, s)
		},
	})
	publishLatest(snapshots, session.Snapshot())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeEvents(conn, snapshots, errs, done)
	}()

	// 连接断开不取消进行中的请求，结果仍会对账进会话
	ctx := context.WithoutCancel(c.Request.Context())
	reportErr := func(err error) {
		select {
		case errs <- err.Error():
		default:
			log.Warnf("会话 %s 错误队列已满，丢弃: %v", sessionID, err)
		}
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}
		// 单个无法解析的帧只报告错误，不结束会话
		var action SessionAction
		if err := json.Unmarshal(message, &action); err != nil {
			reportErr(errors.New("invalid action"))
			continue
		}

		switch action.Type {
		case actionChat:
			text := action.Text
			go func() {
				if _, err := session.SubmitChat(ctx, text); err != nil {
					reportErr(err)
				}
			}()
		case actionAnalyze:
			go func() {
				if err := session.Analyze(ctx); err != nil {
					reportErr(err)
				}
			}()
		case actionEdit:
			session.SetCode(action.Code)
		case actionApply:
			if err := session.Apply(action.TurnID); err != nil {
				reportErr(err)
			}
		default:
			reportErr(errors.New("unknown action type: " + action.Type))
		}
	}

	close(done)
	<-writerDone
	log.Infof("会话已关闭: %s", sessionID)
}

// publishLatest 用新快照替换通道中尚未发送的旧快照，从不阻塞。
func publishLatest(ch chan playground.Snapshot, s playground.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// writeEvents 是连接上唯一的写者。
func writeEvents(conn *websocket.Conn, snapshots <-chan playground.Snapshot, errs <-chan string, done <-chan struct{}) {
	for {
		var event SessionEvent
		select {
		case <-done:
			return
		case s := <-snapshots:
			event = SessionEvent{Type: "snapshot", Snapshot: &s}
		case msg := <-errs:
			event = SessionEvent{Type: "error", Message: msg}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			return
		}
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
