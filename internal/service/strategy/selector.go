package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"scoreintake/internal/cache"
	"scoreintake/internal/model"
	"scoreintake/internal/semantic"
)

const (
	// DeterministicThreshold 覆盖率达到该值时以规则结果为主
	DeterministicThreshold = 0.8
	// HybridThreshold 覆盖率达到该值时混合
	HybridThreshold = 0.5
)

// ErrLowExternalConfidence 外部结果置信度低于下限
var ErrLowExternalConfidence = errors.New("external confidence below threshold")

// Input 选择器输入
type Input struct {
	Classifications []model.HeaderClassification
	SampleRows      [][]string
	TotalRows       int
	Options         model.ImportOptions
}

// Result 最终映射及处理信息
type Result struct {
	Strategy   model.Strategy
	Coverage   float64
	Confidence float64
	Final      []model.HeaderClassification
	Processing model.ProcessingInfo
}

// Mapping 最终映射 header -> tag（仅已识别字段）
func (r *Result) Mapping() map[string]model.FieldTag {
	out := make(map[string]model.FieldTag, len(r.Final))
	for _, c := range r.Final {
		if c.Mapped() {
			out[c.Header] = c.FieldTag
		}
	}
	return out
}

// Selector 识别策略选择与结果融合
type Selector struct {
	classifier semantic.Classifier
	memory     cache.MappingStore
	timeout    time.Duration
	memoryTTL  time.Duration
	logger     *zap.Logger
}

// NewSelector 创建选择器；classifier 为 nil 表示外部分类器不可用，memory 可为 nil
func NewSelector(classifier semantic.Classifier, memory cache.MappingStore, timeout, memoryTTL time.Duration, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Selector{
		classifier: classifier,
		memory:     memory,
		timeout:    timeout,
		memoryTTL:  memoryTTL,
		logger:     logger,
	}
}

// Available 外部分类器是否可用
func (s *Selector) Available() bool {
	return s.classifier != nil
}

// Coverage 覆盖率：非空表头中已识别的比例
func Coverage(classes []model.HeaderClassification) float64 {
	total, mapped := 0, 0
	for _, c := range classes {
		if c.Header == "" {
			continue
		}
		total++
		if c.Mapped() {
			mapped++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(mapped) / float64(total)
}

// deterministicConfidence 规则识别的平均置信度（未识别计 0）
func deterministicConfidence(classes []model.HeaderClassification) float64 {
	total, sum := 0, 0.0
	for _, c := range classes {
		if c.Header == "" {
			continue
		}
		total++
		sum += c.Confidence
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

// ChooseStrategy 按覆盖率选择策略（区间左闭右开）
func ChooseStrategy(coverage float64) model.Strategy {
	switch {
	case coverage >= DeterministicThreshold:
		return model.StrategyDeterministicDominant
	case coverage >= HybridThreshold:
		return model.StrategyHybrid
	default:
		return model.StrategySemanticDominant
	}
}

// Select 选择策略、按需调用外部分类器并融合结果
func (s *Selector) Select(ctx context.Context, in Input) *Result {
	det := in.Classifications
	coverage := Coverage(det)
	detConf := deterministicConfidence(det)

	res := &Result{
		Strategy: ChooseStrategy(coverage),
		Coverage: coverage,
		Final:    cloneClasses(det),
	}
	res.Processing.Coverage = round2(coverage)

	mode := in.Options.ClassifierMode
	if mode == model.ClassifierForce {
		res.Strategy = model.StrategySemanticDominant
	}

	// 规则为主且无未识别字段：无需外部调用
	var targets []int
	for i, c := range det {
		if c.Header == "" {
			continue
		}
		if res.Strategy == model.StrategyDeterministicDominant && c.Mapped() {
			continue
		}
		targets = append(targets, i)
	}
	if res.Strategy == model.StrategyDeterministicDominant {
		res.Confidence = round2(math.Min(0.98, 0.95+coverage*0.03))
	}
	// 外部不可用、禁用或无需调用时直接回退为规则结果
	if mode == model.ClassifierDisabled || len(targets) == 0 {
		s.finish(res, det, detConf, nil)
		return res
	}
	// auto 模式下规则置信度已达阈值则不调用外部分类器
	if mode != model.ClassifierForce && detConf >= in.Options.MinConfidenceForExternal {
		s.logger.Debug("deterministic confidence meets threshold, skipping semantic classifier",
			zap.Float64("confidence", detConf),
			zap.Float64("threshold", in.Options.MinConfidenceForExternal))
		s.finish(res, det, detConf, nil)
		return res
	}

	ext, cached, err := s.external(ctx, det, targets, in)
	if err == nil && ext.Confidence < in.Options.MinExternalConfidence {
		err = fmt.Errorf("%w: %.2f < %.2f", ErrLowExternalConfidence, ext.Confidence, in.Options.MinExternalConfidence)
	}
	if err != nil {
		s.logger.Warn("semantic classifier failed, using deterministic mapping",
			zap.String("strategy", string(res.Strategy)),
			zap.Float64("coverage", coverage),
			zap.Error(err))
		res.Processing.ExternalError = err.Error()
		s.finish(res, det, detConf, nil)
		return res
	}

	res.Processing.ExternalUsed = true
	res.Processing.ExternalCached = cached
	s.finish(res, det, detConf, ext)

	if !cached {
		s.remember(ctx, det, res)
	}
	return res
}

// finish 融合结果；ext 为 nil 时回退为规则结果
func (s *Selector) finish(res *Result, det []model.HeaderClassification, detConf float64, ext *externalResult) {
	if ext == nil {
		res.Strategy = model.StrategyDeterministicDominant
		res.Final, res.Processing.HeaderConflicts = resolveConflicts(det)
		if res.Coverage >= DeterministicThreshold {
			res.Confidence = round2(math.Min(0.98, 0.95+res.Coverage*0.03))
		} else {
			res.Confidence = round2(detConf)
			res.Processing.RequiresUserInput = true
		}
		return
	}

	switch res.Strategy {
	case model.StrategyDeterministicDominant:
		res.Final = fillUnmapped(det, ext)
	case model.StrategyHybrid:
		res.Final, res.Processing.Disagreements = fuseHybrid(det, ext)
		res.Confidence = round2(math.Min(0.96, (ext.Confidence+detConf)/2+0.05))
	case model.StrategySemanticDominant:
		res.Final, res.Processing.Disagreements = fuseSemantic(det, ext)
		res.Confidence = round2(math.Min(0.94, ext.Confidence+detConf*0.1))
	}
	res.Final, res.Processing.HeaderConflicts = resolveConflicts(res.Final)
}

// Remember 记录已确认的映射，供相同表头模板复用
func (s *Selector) Remember(ctx context.Context, headers []string, mapping map[string]model.FieldTag, confidence float64) error {
	if s.memory == nil || len(mapping) == 0 {
		return nil
	}
	entry := cache.Entry{
		FieldMapping: mapping,
		Confidence:   confidence,
		StoredAt:     time.Now(),
	}
	return s.memory.Put(ctx, cache.Key(headers), entry, s.memoryTTL)
}

func (s *Selector) remember(ctx context.Context, det []model.HeaderClassification, res *Result) {
	if err := s.Remember(ctx, headersOf(det), res.Mapping(), res.Confidence); err != nil {
		s.logger.Warn("failed to store mapping memory", zap.Error(err))
	}
}

func headersOf(classes []model.HeaderClassification) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.Header
	}
	return out
}

func cloneClasses(in []model.HeaderClassification) []model.HeaderClassification {
	return append([]model.HeaderClassification(nil), in...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
