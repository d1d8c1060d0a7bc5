package llm

import (
	"context"
	"errors"
)

// Request 描述一次短文本生成请求。
type Request struct {
	Prompt    string
	MaxTokens int
}

// Response 是文本生成的结果。
type Response struct {
	Text string
}

// Client 定义了调用文本生成服务的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ErrDisabled 表示未配置文本生成后端。
var ErrDisabled = errors.New("text generation disabled")

// Disabled 是始终失败的客户端，所有调用方都会使用兜底文案。
type Disabled struct{}

// Generate 实现 Client 接口。
func (Disabled) Generate(context.Context, Request) (*Response, error) {
	return nil, ErrDisabled
}

// ClientFunc 允许用函数实现 Client。
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Generate 实现 Client 接口。
func (f ClientFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
