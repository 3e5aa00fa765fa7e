package handler

import (
	"code-playground-go/internal/config"
	"code-playground-go/internal/middleware"
	"code-playground-go/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter 创建路由引擎并注册全部接口。
func NewRouter(cfg config.Config, gateway service.GatewayService) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	assistantHandler := NewAssistantHandler(gateway)
	api := r.Group("/api")
	{
		limited := api.Group("")
		limited.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
		{
			limited.POST("/analyze", assistantHandler.Analyze)
			limited.POST("/chat", assistantHandler.Chat)
		}

		// WebSocket 会话，会话状态只存在于连接的生命周期内
		api.GET("/session", NewSessionHandler(gateway, cfg).Handle)
	}
	return r
}
