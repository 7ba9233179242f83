package semantic

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable 未配置外部分类器
	ErrUnavailable = errors.New("semantic classifier unavailable")
	// ErrMalformedResponse 外部返回无法解析
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// Classifier 外部语义分类器
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Response, error)
}

// ClassifierFunc 函数适配
type ClassifierFunc func(ctx context.Context, req Request) (*Response, error)

// Classify 实现 Classifier
func (f ClassifierFunc) Classify(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Request 分类请求
type Request struct {
	Headers       []string   `json:"headers"`
	SampleRows    [][]string `json:"sampleRows"`
	TotalRowCount int        `json:"totalRowCount"`
}

// Response 分类结果；FieldMapping 中的标签未经校验，调用方须过滤
type Response struct {
	FieldMapping     map[string]string  `json:"fieldMapping"`
	HeaderConfidence map[string]float64 `json:"headerConfidence,omitempty"`
	DetectedSubjects []string           `json:"detectedSubjects"`
	DataStructure    string             `json:"dataStructure"`
	Confidence       float64            `json:"confidence"`
	Issues           []string           `json:"issues,omitempty"`
	Suggestions      []string           `json:"suggestions,omitempty"`
}
