package validation

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"scoreintake/internal/model"
)

// RuleDuplicateHeaderTag 重复表头规则 ID
const RuleDuplicateHeaderTag = "duplicate-header-tag"

// DefaultTotalTolerance 各科之和与总分允许的误差
const DefaultTotalTolerance = 5.0

// 排名上限
const (
	MaxRankInClass  = 100
	MaxRankInGrade  = 2000
	MaxRankInSchool = 5000
)

var (
	studentIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{2,20}$`)
	nameRe      = regexp.MustCompile(`^[\p{Han}A-Za-z·.\s]+$`)
)

// 合法等级
var validGrades = map[string]bool{
	"A+": true, "A": true, "A-": true,
	"B+": true, "B": true, "B-": true,
	"C+": true, "C": true, "C-": true,
	"D+": true, "D": true, "D-": true,
	"E":  true,
	"优秀": true, "良好": true, "中等": true, "及格": true, "不及格": true, "合格": true, "不合格": true,
}

// IsValidGrade 是否为合法等级
func IsValidGrade(g string) bool {
	return validGrades[g]
}

func subjectScores(r *model.CanonicalRecord) []FieldValue {
	var out []FieldValue
	for _, s := range model.Subjects {
		if res, ok := r.Subjects[s]; ok && res.Score != nil {
			out = append(out, numberValue(string(model.SubjectTag(s, model.KindScore)), s, *res.Score))
		}
	}
	return out
}

func gradeValues(r *model.CanonicalRecord) []FieldValue {
	var out []FieldValue
	for _, s := range model.Subjects {
		if res, ok := r.Subjects[s]; ok && res.Grade != "" {
			out = append(out, textValue(string(model.SubjectTag(s, model.KindGrade)), s, res.Grade))
		}
	}
	if r.TotalGrade != "" {
		out = append(out, textValue(string(model.TagTotalGrade), "", r.TotalGrade))
	}
	return out
}

type rankRef struct {
	kind model.FieldKind
	max  int
}

var rankKinds = []rankRef{
	{model.KindRankInClass, MaxRankInClass},
	{model.KindRankInGrade, MaxRankInGrade},
	{model.KindRankInSchool, MaxRankInSchool},
}

func rankPointer(kind model.FieldKind, rankInClass, rankInGrade, rankInSchool *int) *int {
	switch kind {
	case model.KindRankInClass:
		return rankInClass
	case model.KindRankInGrade:
		return rankInGrade
	default:
		return rankInSchool
	}
}

func rankValues(r *model.CanonicalRecord) []FieldValue {
	var out []FieldValue
	for _, rk := range rankKinds {
		if p := rankPointer(rk.kind, r.RankInClass, r.RankInGrade, r.RankInSchool); p != nil {
			out = append(out, numberValue(string(rk.kind), "", float64(*p)))
		}
	}
	for _, s := range model.Subjects {
		res, ok := r.Subjects[s]
		if !ok {
			continue
		}
		for _, rk := range rankKinds {
			if p := rankPointer(rk.kind, res.RankInClass, res.RankInGrade, res.RankInSchool); p != nil {
				out = append(out, numberValue(string(model.SubjectTag(s, rk.kind)), s, float64(*p)))
			}
		}
	}
	return out
}

func rankMax(field string) int {
	kind := model.FieldTag(field).Kind()
	for _, rk := range rankKinds {
		if rk.kind == kind {
			return rk.max
		}
	}
	return MaxRankInSchool
}

// gradeBand 等级字母对应的档位（A=0 ... E=4）
func gradeBand(g string) (int, bool) {
	if g == "" {
		return 0, false
	}
	idx := strings.IndexByte("ABCDE", g[0])
	return idx, idx >= 0
}

// scoreBand 按得分率推算的档位
func scoreBand(score, max float64) int {
	pct := score / max
	switch {
	case pct >= 0.9:
		return 0
	case pct >= 0.8:
		return 1
	case pct >= 0.7:
		return 2
	case pct >= 0.6:
		return 3
	default:
		return 4
	}
}

// DefaultRules 默认规则表
func DefaultRules(totalTolerance float64) []Rule {
	if totalTolerance <= 0 {
		totalTolerance = DefaultTotalTolerance
	}

	return []Rule{
		{
			ID:         "required-identity",
			Field:      "student_id",
			Category:   CategoryRequired,
			Severity:   model.SeverityCritical,
			Message:    "缺少学生身份信息（学号与姓名均为空）",
			Suggestion: "补充学号或姓名",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, _ *Batch) bool {
				return r.StudentID != "" || r.Name != ""
			},
		},
		{
			ID:         "required-student-id",
			Field:      "student_id",
			Category:   CategoryRequired,
			Severity:   model.SeverityWarning,
			Message:    "学号为空",
			Suggestion: "补充学号以便跨考试关联",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, b *Batch) bool {
				return r.StudentID != "" || !b.hasStudentID
			},
		},
		{
			ID:         "required-name",
			Field:      "name",
			Category:   CategoryRequired,
			Severity:   model.SeverityWarning,
			Message:    "姓名为空",
			Suggestion: "补充学生姓名",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, b *Batch) bool {
				return r.Name != "" || !b.hasName
			},
		},
		{
			ID:         "required-class",
			Field:      "class_name",
			Category:   CategoryRequired,
			Severity:   model.SeverityWarning,
			Message:    "班级为空",
			Suggestion: "补充班级信息",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, b *Batch) bool {
				return r.ClassName != "" || !b.hasClass
			},
		},
		{
			ID:         "format-student-id",
			Field:      "student_id",
			Category:   CategoryFormat,
			Severity:   model.SeverityError,
			Message:    "学号格式不正确（应为 2-20 位字母、数字、下划线或连字符）",
			Suggestion: "检查学号是否包含空格或特殊字符",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				if r.StudentID == "" {
					return nil
				}
				return []FieldValue{textValue("student_id", "", r.StudentID)}
			},
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return studentIDRe.MatchString(v.Text)
			},
		},
		{
			ID:         "format-name",
			Field:      "name",
			Category:   CategoryFormat,
			Severity:   model.SeverityWarning,
			Message:    "姓名格式异常（应为 1-20 个汉字或字母）",
			Suggestion: "检查姓名列是否错位",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				if r.Name == "" {
					return nil
				}
				return []FieldValue{textValue("name", "", r.Name)}
			},
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return utf8.RuneCountInString(v.Text) <= 20 && nameRe.MatchString(v.Text)
			},
		},
		{
			ID:         "format-grade",
			Field:      "*_grade",
			Category:   CategoryFormat,
			Severity:   model.SeverityWarning,
			Message:    "等级取值不在有效范围内",
			Suggestion: "有效等级：A+ A A- B+ B B- C+ C C- D+ D D- E",
			Values:     gradeValues,
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return IsValidGrade(v.Text)
			},
			Fixable: func(v FieldValue) bool {
				return IsValidGrade(strings.ToUpper(strings.TrimSpace(v.Text)))
			},
			Fix: func(v FieldValue, r *model.CanonicalRecord) {
				fixed := strings.ToUpper(strings.TrimSpace(v.Text))
				if !IsValidGrade(fixed) {
					return
				}
				if v.Subject == "" {
					r.TotalGrade = fixed
					return
				}
				r.Subject(v.Subject).Grade = fixed
			},
		},
		{
			ID:         "range-score",
			Field:      "*_score",
			Category:   CategoryRange,
			Severity:   model.SeverityError,
			Message:    "分数超出有效范围",
			Suggestion: "检查是否录入错误或满分设置",
			Values:     subjectScores,
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return v.Number >= 0 && v.Number <= v.Subject.MaxScore()
			},
			Fix: func(v FieldValue, r *model.CanonicalRecord) {
				clamped := math.Max(0, math.Min(v.Number, v.Subject.MaxScore()))
				r.Subject(v.Subject).Score = model.Float(clamped)
			},
		},
		{
			ID:         "range-total",
			Field:      "total_score",
			Category:   CategoryRange,
			Severity:   model.SeverityError,
			Message:    "总分超出有效范围",
			Suggestion: "总分应在 0-900 之间",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				if r.TotalScore == nil {
					return nil
				}
				return []FieldValue{numberValue("total_score", "", *r.TotalScore)}
			},
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return v.Number >= 0 && v.Number <= model.TotalMaxScore
			},
			Fix: func(v FieldValue, r *model.CanonicalRecord) {
				r.TotalScore = model.Float(math.Max(0, math.Min(v.Number, model.TotalMaxScore)))
			},
		},
		{
			ID:         "range-rank",
			Field:      "*rank*",
			Category:   CategoryRange,
			Severity:   model.SeverityWarning,
			Message:    "排名超出合理范围",
			Suggestion: "排名应为正整数",
			Values:     rankValues,
			Condition: func(v FieldValue, _ *model.CanonicalRecord, _ *Batch) bool {
				return v.Number >= 1 && v.Number <= float64(rankMax(v.Field))
			},
		},
		{
			ID:         "logic-total-sum",
			Field:      "total_score",
			Category:   CategoryLogic,
			Severity:   model.SeverityWarning,
			Message:    "各科分数之和与总分不一致",
			Suggestion: "检查是否缺少科目或总分计算有误",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				if r.TotalScore == nil || len(subjectScores(r)) == 0 {
					return nil
				}
				return []FieldValue{numberValue("total_score", "", *r.TotalScore)}
			},
			Condition: func(v FieldValue, r *model.CanonicalRecord, _ *Batch) bool {
				sum := 0.0
				for _, s := range subjectScores(r) {
					sum += s.Number
				}
				return math.Abs(sum-v.Number) <= totalTolerance
			},
		},
		{
			ID:         "consistency-score-grade",
			Field:      "*_grade",
			Category:   CategoryConsistency,
			Severity:   model.SeverityInfo,
			Message:    "分数与等级不匹配",
			Suggestion: "确认等级划分标准",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				var out []FieldValue
				for _, s := range model.Subjects {
					res, ok := r.Subjects[s]
					if !ok || res.Score == nil || res.Grade == "" {
						continue
					}
					out = append(out, textValue(string(model.SubjectTag(s, model.KindGrade)), s, res.Grade))
				}
				return out
			},
			Condition: func(v FieldValue, r *model.CanonicalRecord, _ *Batch) bool {
				band, ok := gradeBand(v.Text)
				if !ok {
					return true
				}
				score, _ := r.SubjectScore(v.Subject)
				diff := band - scoreBand(score, v.Subject.MaxScore())
				return diff < 2 && diff > -2
			},
		},
		{
			ID:       "note-assembly",
			Field:    "*",
			Category: CategoryNote,
			Severity: model.SeverityInfo,
			Values: func(r *model.CanonicalRecord) []FieldValue {
				return noteValues(r, func(code string) bool { return code != model.NoteUnparsableValue })
			},
			Condition: func(FieldValue, *model.CanonicalRecord, *Batch) bool {
				return false
			},
		},
		{
			ID:         "note-unparsable-value",
			Field:      "*",
			Category:   CategoryNote,
			Severity:   model.SeverityWarning,
			Suggestion: "改为阿拉伯数字后重新导入",
			Values: func(r *model.CanonicalRecord) []FieldValue {
				return noteValues(r, func(code string) bool { return code == model.NoteUnparsableValue })
			},
			Condition: func(FieldValue, *model.CanonicalRecord, *Batch) bool {
				return false
			},
		},
		{
			ID:         RuleDuplicateHeaderTag,
			Field:      "*",
			Category:   CategoryHeader,
			Severity:   model.SeverityWarning,
			Message:    "多个表头识别为同一字段，已忽略重复列",
			Suggestion: "删除或重命名重复列，或在表头映射中手动指定",
		},
		{
			ID:         "batch-duplicate-student-id",
			Field:      "student_id",
			Category:   CategoryBatch,
			Severity:   model.SeverityCritical,
			Message:    "同一考试中学号重复",
			Suggestion: "删除重复行或更正学号",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, b *Batch) bool {
				return !b.duplicateIDAt[r]
			},
		},
		{
			ID:         "batch-duplicate-class-rank",
			Field:      "rank_in_class",
			Category:   CategoryBatch,
			Severity:   model.SeverityWarning,
			Message:    "同一班级中存在重复的班级排名",
			Suggestion: "确认是否并列排名",
			Condition: func(_ FieldValue, r *model.CanonicalRecord, b *Batch) bool {
				return !b.duplicateRankAt[r]
			},
		},
	}
}

func noteValues(r *model.CanonicalRecord, keep func(code string) bool) []FieldValue {
	var out []FieldValue
	for _, n := range r.Notes {
		if keep(n.Code) {
			out = append(out, textValue(string(n.Field), "", n.Message))
		}
	}
	return out
}
