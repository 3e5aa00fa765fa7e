// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Playground PlaygroundConfig `mapstructure:"playground"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// MaxBodyBytes 是请求体与待分析代码的大小上限，超出即返回 413。
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// CORSConfig 存储跨域相关的配置。
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	AnalyzeTemperature float64 `mapstructure:"analyze_temperature"`
	ChatTemperature    float64 `mapstructure:"chat_temperature"`
	TopP               float64 `mapstructure:"top_p"`
	MaxTokens          int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置代码审查的系统提示（可选，留空使用内置提示）。
type LLMPromptConfig struct {
	ReviewRules string `mapstructure:"review_rules"`
}

// PlaygroundConfig 配置会话状态机的展示文本。
type PlaygroundConfig struct {
	Greeting     string `mapstructure:"greeting"`
	CodeLanguage string `mapstructure:"code_language"`
}

// ErrMissingAPIKey 表示未配置上游模型的访问凭证。
var ErrMissingAPIKey = errors.New("llm.api_key must be set")

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量优先，例如 SERVER_PORT 覆盖 server.port。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取配置文件，文件不存在时仅使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 凭证没有默认值，只从文件或环境变量读取；兼容旧部署使用的 GROQ_API_KEY
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "GROQ_API_KEY")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "moonshotai/kimi-k2-instruct-0905")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.generation.analyze_temperature", 0.2)
	v.SetDefault("llm.generation.chat_temperature", 0.3)

	v.SetDefault("playground.greeting", "Hi! I'm your AI coding assistant. Paste some code and ask me anything!")
	v.SetDefault("playground.code_language", "js")
}
