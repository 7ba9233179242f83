package strategy

import (
	"context"

	"go.uber.org/zap"

	"scoreintake/internal/cache"
	"scoreintake/internal/model"
	"scoreintake/internal/semantic"
)

// externalResult 校验后的外部结果
type externalResult struct {
	Tags        map[string]model.FieldTag
	Confidences map[string]float64
	Confidence  float64
}

// external 先查映射记忆，未命中再单次调用外部分类器（带超时，不重试）
func (s *Selector) external(ctx context.Context, det []model.HeaderClassification, targets []int, in Input) (*externalResult, bool, error) {
	headers := make([]string, len(targets))
	for i, idx := range targets {
		headers[i] = det[idx].Header
	}

	if s.memory != nil {
		entry, ok, err := s.memory.Get(ctx, cache.Key(headersOf(det)))
		if err != nil {
			s.logger.Warn("mapping memory lookup failed", zap.Error(err))
		} else if ok {
			raw := make(map[string]string, len(entry.FieldMapping))
			for h, tag := range entry.FieldMapping {
				raw[h] = string(tag)
			}
			resp := &semantic.Response{FieldMapping: raw, Confidence: entry.Confidence}
			return sanitize(resp, headers), true, nil
		}
	}

	if s.classifier == nil {
		return nil, false, semantic.ErrUnavailable
	}

	req := semantic.Request{
		Headers:       headers,
		SampleRows:    projectRows(in.SampleRows, targets),
		TotalRowCount: in.TotalRows,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.classifier.Classify(callCtx, req)
	if err != nil {
		return nil, false, err
	}
	if resp == nil {
		return nil, false, semantic.ErrMalformedResponse
	}
	return sanitize(resp, headers), false, nil
}

// sanitize 丢弃未知标签与请求之外的表头
func sanitize(resp *semantic.Response, headers []string) *externalResult {
	allowed := make(map[string]bool, len(headers))
	for _, h := range headers {
		allowed[h] = true
	}

	out := &externalResult{
		Tags:        make(map[string]model.FieldTag),
		Confidences: make(map[string]float64),
		Confidence:  resp.Confidence,
	}
	for h, raw := range resp.FieldMapping {
		if !allowed[h] {
			continue
		}
		tag := model.ParseFieldTag(raw)
		if tag == model.TagNone {
			continue
		}
		out.Tags[h] = tag
		conf := resp.Confidence
		if c, ok := resp.HeaderConfidence[h]; ok {
			conf = c
		}
		out.Confidences[h] = conf
	}
	return out
}

func projectRows(rows [][]string, cols []int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		p := make([]string, len(cols))
		for j, c := range cols {
			if c < len(r) {
				p[j] = r[c]
			}
		}
		out[i] = p
	}
	return out
}
