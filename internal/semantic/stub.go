package semantic

import (
	"context"
	"sync"
	"time"
)

// Stub 可注入的固定结果分类器
type Stub struct {
	Response *Response
	Err      error
	Delay    time.Duration

	mu       sync.Mutex
	requests []Request
}

// Classify 返回预设结果；Delay 期间响应 ctx 取消
func (s *Stub) Classify(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Response == nil {
		return nil, ErrMalformedResponse
	}

	out := *s.Response
	out.FieldMapping = make(map[string]string, len(s.Response.FieldMapping))
	for k, v := range s.Response.FieldMapping {
		out.FieldMapping[k] = v
	}
	return &out, nil
}

// Requests 已收到的请求
func (s *Stub) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
