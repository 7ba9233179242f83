package parser

import (
	"fmt"
	"math"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"scoreintake/internal/model"
)

const (
	compoundConfidence = 0.92
	contextConfidence  = 0.7
	fallbackConfidence = 0.45
	maxRuleConfidence  = 0.98
	exactMatchBonus    = 0.05
)

// 含排名字样的表头不做内容兜底（如 "数排"）
var rankHintRe = regexp.MustCompile(`排|名次`)

// 紧跟在科目列后的简短限定列，如 "语文 | 等级 | 班排"
var bareQualifierRe = regexp.MustCompile(`^(等级|评级|等第|班排|班名|级排|级名|校排|校名|排名|名次)$`)

var bareQualifierKinds = map[string]model.FieldKind{
	"等级": model.KindGrade,
	"评级": model.KindGrade,
	"等第": model.KindGrade,
	"班排": model.KindRankInClass,
	"班名": model.KindRankInClass,
	"排名": model.KindRankInClass,
	"名次": model.KindRankInClass,
	"级排": model.KindRankInGrade,
	"级名": model.KindRankInGrade,
	"校排": model.KindRankInSchool,
	"校名": model.KindRankInSchool,
}

// Memo 表头识别结果缓存（进程级，只追加，键为原始表头）
type Memo struct {
	m sync.Map
}

// NewMemo 创建缓存
func NewMemo() *Memo {
	return &Memo{}
}

// Load 读取缓存
func (m *Memo) Load(header string) (model.HeaderClassification, bool) {
	if m == nil {
		return model.HeaderClassification{}, false
	}
	v, ok := m.m.Load(header)
	if !ok {
		return model.HeaderClassification{}, false
	}
	return v.(model.HeaderClassification), true
}

// Store 写入缓存（同键后写覆盖）
func (m *Memo) Store(header string, c model.HeaderClassification) {
	if m == nil {
		return
	}
	m.m.Store(header, c)
}

// HeaderClassifier 表头识别器
type HeaderClassifier struct {
	rules    []FieldRule
	profiler *ColumnProfiler
	memo     *Memo
	logger   *zap.Logger
}

// NewHeaderClassifier 创建表头识别器；memo 为空时不缓存
func NewHeaderClassifier(memo *Memo, logger *zap.Logger) *HeaderClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeaderClassifier{
		rules:    DefaultRules(),
		profiler: NewColumnProfiler(logger),
		memo:     memo,
		logger:   logger,
	}
}

// Classify 识别单个表头；samples 为该列的样本值（可为空）
func (c *HeaderClassifier) Classify(header string, samples []string) model.HeaderClassification {
	result := c.classifyByRules(header)
	if result.Mapped() || len(samples) == 0 {
		return result
	}
	return c.fallback(header, samples, result)
}

// ClassifyAll 识别整行表头；columns[i] 为第 i 列样本值
func (c *HeaderClassifier) ClassifyAll(headers []string, columns [][]string) []model.HeaderClassification {
	out := make([]model.HeaderClassification, len(headers))
	for i, h := range headers {
		var samples []string
		if i < len(columns) {
			samples = columns[i]
		}
		out[i] = c.Classify(h, samples)
	}

	// 简短限定列继承前一个科目列（或总分列）
	for i, h := range headers {
		kind, ok := bareQualifierKinds[NormalizeHeader(h)]
		if !ok {
			continue
		}
		prev, from, found := precedingAnchor(headers, out, i)
		if !found {
			continue
		}
		tag := aggregateTags[kind]
		if subject, ok := prev.Subject(); ok {
			tag = model.SubjectTag(subject, kind)
		}
		if tag == out[i].FieldTag {
			continue
		}
		out[i] = model.HeaderClassification{
			Header:     h,
			FieldTag:   tag,
			Confidence: contextConfidence,
			Evidence:   "context:" + from,
		}
	}
	return out
}

// precedingAnchor 向前跳过限定列，找到最近的科目列或总分列
func precedingAnchor(headers []string, classes []model.HeaderClassification, idx int) (model.FieldTag, string, bool) {
	for j := idx - 1; j >= 0; j-- {
		if bareQualifierRe.MatchString(NormalizeHeader(headers[j])) {
			continue
		}
		tag := classes[j].FieldTag
		if tag.IsSubjectScoped() || tag == model.TagTotalScore {
			return tag, headers[j], true
		}
		return model.TagNone, "", false
	}
	return model.TagNone, "", false
}

// classifyByRules 规则识别，结果与样本无关，可缓存
func (c *HeaderClassifier) classifyByRules(header string) model.HeaderClassification {
	if cached, ok := c.memo.Load(header); ok {
		return cached
	}

	result := c.evaluate(header)
	c.memo.Store(header, result)
	return result
}

func (c *HeaderClassifier) evaluate(header string) model.HeaderClassification {
	result := model.HeaderClassification{Header: header}
	norm := NormalizeHeader(header)
	if norm == "" {
		return result
	}

	// 复合规则命中即返回
	for i := range c.rules {
		r := &c.rules[i]
		if !r.Compound {
			continue
		}
		if ok, _ := r.Match(norm); ok {
			result.FieldTag = r.Tag
			result.Confidence = compoundConfidence
			result.Evidence = fmt.Sprintf("compound:%s", r.Tag)
			return result
		}
	}

	// 累计得分，同分取规则表中靠前者
	scores := make(map[model.FieldTag]int)
	exact := make(map[model.FieldTag]bool)
	var order []model.FieldTag
	for i := range c.rules {
		r := &c.rules[i]
		if r.Compound {
			continue
		}
		ok, ex := r.Match(norm)
		if !ok {
			continue
		}
		if _, seen := scores[r.Tag]; !seen {
			order = append(order, r.Tag)
		}
		scores[r.Tag] += r.Weight
		exact[r.Tag] = exact[r.Tag] || ex
	}
	if len(order) == 0 {
		return result
	}

	best := order[0]
	for _, tag := range order[1:] {
		if scores[tag] > scores[best] {
			best = tag
		}
	}

	conf := 0.75 + float64(scores[best])/400
	if exact[best] {
		conf += exactMatchBonus
	}
	result.FieldTag = best
	result.Confidence = round2(math.Min(maxRuleConfidence, conf))
	result.Evidence = fmt.Sprintf("rule:%s", best)
	return result
}

// fallback 规则未命中时参考列内容：分数型内容 + 含科目字样 => 低置信度科目分数
func (c *HeaderClassifier) fallback(header string, samples []string, result model.HeaderClassification) model.HeaderClassification {
	normalized := NormalizeHeader(header)
	if rankHintRe.MatchString(normalized) {
		return result
	}
	profile := c.profiler.Profile(header, samples)
	if profile.ObservedType != model.ObservedScore {
		return result
	}
	subject, ok := DetectSubject(normalized, true)
	if !ok {
		return result
	}
	c.logger.Debug("header matched by content fallback",
		zap.String("header", header),
		zap.String("subject", string(subject)),
		zap.Float64("sample_confidence", profile.SampleConfidence))
	return model.HeaderClassification{
		Header:     header,
		FieldTag:   model.SubjectTag(subject, model.KindScore),
		Confidence: fallbackConfidence,
		Evidence:   "fallback:profile",
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
