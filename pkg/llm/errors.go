package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind 区分上游调用失败的原因。
type ErrorKind int

const (
	// UpstreamUnavailable 网络或传输层失败。
	UpstreamUnavailable ErrorKind = iota
	// UpstreamRejected 上游返回了非成功状态码，或返回内容不可用。
	UpstreamRejected
	// Timeout 调用超时。
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case UpstreamRejected:
		return "upstream_rejected"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// GatewayError 是模型网关的统一错误类型。
// 错误信息中不会包含请求头，因而也不会带出凭证。
type GatewayError struct {
	Kind       ErrorKind
	StatusCode int    // 仅 UpstreamRejected 时有值
	Detail     string // 上游返回的错误正文（已截断）
	Err        error
}

func (e *GatewayError) Error() string {
	msg := "llm gateway: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsKind 判断 err 链上是否存在指定类型的 GatewayError。
func IsKind(err error, kind ErrorKind) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// ClassifyTransportError 把 http.Client.Do 返回的错误归类为 Timeout 或 UpstreamUnavailable。
func ClassifyTransportError(err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Kind: Timeout, Err: stripURL(err)}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Kind: Timeout, Err: stripURL(err)}
	}
	return &GatewayError{Kind: UpstreamUnavailable, Err: stripURL(err)}
}

// stripURL 去掉 *url.Error 中的完整地址，只保留底层原因。
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
