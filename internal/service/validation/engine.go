package validation

import (
	"fmt"

	"go.uber.org/zap"

	"scoreintake/internal/config"
	"scoreintake/internal/model"
)

// Engine 校验引擎
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// Report 校验结果
type Report struct {
	Findings []model.Finding    `json:"findings"`
	Quality  model.QualityScore `json:"qualityScore"`
	Accepted bool               `json:"accepted"`
}

// NewEngine 按配置创建校验引擎（禁用规则、总分误差）
func NewEngine(cfg config.ValidationConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	disabled := make(map[string]bool, len(cfg.DisabledRules))
	for _, id := range cfg.DisabledRules {
		disabled[id] = true
	}

	rules := DefaultRules(cfg.TotalTolerance)
	for i := range rules {
		rules[i].Enabled = !disabled[rules[i].ID]
	}
	return &Engine{rules: rules, logger: logger}
}

// Rules 当前规则表（含禁用状态）
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Validate 对一批记录执行全部启用的规则，不修改记录
func (e *Engine) Validate(records []*model.CanonicalRecord) Report {
	return e.ValidateImport(records, nil)
}

// ValidateImport 在记录校验之外报告表头冲突；表头问题排在最前
func (e *Engine) ValidateImport(records []*model.CanonicalRecord, conflicts []model.HeaderConflict) Report {
	findings := e.Check(records)
	if hf := e.CheckHeaders(conflicts); len(hf) > 0 {
		findings = append(hf, findings...)
	}
	quality := Score(findings)
	return Report{
		Findings: findings,
		Quality:  quality,
		Accepted: quality.Critical == 0,
	}
}

// Check 只返回问题列表；顺序为记录顺序、规则表顺序
func (e *Engine) Check(records []*model.CanonicalRecord) []model.Finding {
	batch := NewBatch(records)
	findings := make([]model.Finding, 0)

	for _, r := range records {
		if r == nil {
			continue
		}
		for i := range e.rules {
			rule := &e.rules[i]
			if !rule.Enabled || rule.Category == CategoryHeader {
				continue
			}
			findings = append(findings, e.apply(rule, r, batch)...)
		}
	}

	e.logger.Debug("validation finished",
		zap.Int("records", len(records)),
		zap.Int("findings", len(findings)))
	return findings
}

// CheckHeaders 每个落选的重复表头一条问题
func (e *Engine) CheckHeaders(conflicts []model.HeaderConflict) []model.Finding {
	rule := e.rule(RuleDuplicateHeaderTag)
	if rule == nil || !rule.Enabled {
		return nil
	}
	var out []model.Finding
	for _, c := range conflicts {
		out = append(out, model.Finding{
			RecordRef: "header:" + c.Header,
			RuleID:    rule.ID,
			Field:     string(c.Tag),
			Severity:  rule.Severity,
			Message: fmt.Sprintf("表头「%s」与「%s」均识别为 %s，已忽略「%s」列",
				c.Header, c.Winner, c.Tag, c.Header),
			Suggestion: rule.Suggestion,
			Value:      c.Header,
		})
	}
	return out
}

func (e *Engine) apply(rule *Rule, r *model.CanonicalRecord, b *Batch) []model.Finding {
	if rule.Values == nil {
		if rule.Condition(FieldValue{Field: rule.Field}, r, b) {
			return nil
		}
		return []model.Finding{newFinding(rule, r, FieldValue{Field: rule.Field, Text: recordValue(rule.Field, r)})}
	}

	var out []model.Finding
	for _, v := range rule.Values(r) {
		if rule.Condition(v, r, b) {
			continue
		}
		out = append(out, newFinding(rule, r, v))
	}
	return out
}

func newFinding(rule *Rule, r *model.CanonicalRecord, v FieldValue) model.Finding {
	msg := rule.Message
	if rule.Category == CategoryNote {
		msg = v.Text
	}
	f := model.Finding{
		RecordRef:  r.Ref,
		RuleID:     rule.ID,
		Field:      v.Field,
		Severity:   rule.Severity,
		Message:    msg,
		Suggestion: rule.Suggestion,
		Autofix:    rule.Fix != nil && (rule.Fixable == nil || rule.Fixable(v)),
	}
	if rule.Category != CategoryNote {
		f.Value = v.Display()
	}
	return f
}

func recordValue(field string, r *model.CanonicalRecord) string {
	switch model.FieldTag(field) {
	case model.TagStudentID:
		return r.StudentID
	case model.TagName:
		return r.Name
	case model.TagClassName:
		return r.ClassName
	case model.TagRankInClass:
		if r.RankInClass != nil {
			return numberValue(field, "", float64(*r.RankInClass)).Display()
		}
	}
	return ""
}

// ApplyAutofixes 对可自动修复的问题生成修复后的记录副本；原记录不变
func (e *Engine) ApplyAutofixes(records []*model.CanonicalRecord, findings []model.Finding) []*model.CanonicalRecord {
	byRef := make(map[string][]model.Finding)
	for _, f := range findings {
		if f.Autofix {
			byRef[f.RecordRef] = append(byRef[f.RecordRef], f)
		}
	}

	out := make([]*model.CanonicalRecord, len(records))
	for i, r := range records {
		out[i] = r
		if r == nil {
			continue
		}
		fixes := byRef[r.Ref]
		if len(fixes) == 0 {
			continue
		}
		clone := r.Clone()
		for _, f := range fixes {
			rule := e.rule(f.RuleID)
			if rule == nil || rule.Fix == nil || rule.Values == nil {
				continue
			}
			for _, v := range rule.Values(clone) {
				if v.Field == f.Field {
					rule.Fix(v, clone)
				}
			}
		}
		out[i] = clone
	}
	return out
}

func (e *Engine) rule(id string) *Rule {
	for i := range e.rules {
		if e.rules[i].ID == id {
			return &e.rules[i]
		}
	}
	return nil
}
