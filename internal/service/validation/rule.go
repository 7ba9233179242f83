package validation

import (
	"strconv"

	"scoreintake/internal/model"
)

// Category 规则类别
type Category string

const (
	CategoryRequired    Category = "required"
	CategoryFormat      Category = "format"
	CategoryRange       Category = "range"
	CategoryLogic       Category = "logic"
	CategoryConsistency Category = "consistency"
	CategoryNote        Category = "note"
	CategoryBatch       Category = "batch"
	// CategoryHeader 表头级规则，不按记录执行
	CategoryHeader Category = "header"
)

// FieldValue 规则检查的单个取值
type FieldValue struct {
	Field   string
	Subject model.Subject
	Text    string
	Number  float64
	Numeric bool
}

// Display 用于问题描述的取值文本
func (v FieldValue) Display() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

func numberValue(field string, subject model.Subject, n float64) FieldValue {
	return FieldValue{Field: field, Subject: subject, Number: n, Numeric: true}
}

func textValue(field string, subject model.Subject, s string) FieldValue {
	return FieldValue{Field: field, Subject: subject, Text: s}
}

// Rule 声明式校验规则
//
// Values 取出待检查的值（为空时按记录整体检查一次）；
// Condition 返回 false 时产生一条问题；Fix 非空表示支持自动修复。
type Rule struct {
	ID         string
	Field      string
	Category   Category
	Severity   model.Severity
	Message    string
	Suggestion string

	Values    func(r *model.CanonicalRecord) []FieldValue
	Condition func(v FieldValue, r *model.CanonicalRecord, b *Batch) bool
	Fix       func(v FieldValue, r *model.CanonicalRecord)
	// Fixable 为空时凡有 Fix 即视为可修复
	Fixable func(v FieldValue) bool

	Enabled bool
}

// Batch 本批次全部记录及批次级索引
type Batch struct {
	Records []*model.CanonicalRecord

	hasStudentID bool
	hasName      bool
	hasClass     bool

	// 每个重复键只在第二次出现的记录上报告一次
	duplicateIDAt   map[*model.CanonicalRecord]bool
	duplicateRankAt map[*model.CanonicalRecord]bool
}

// NewBatch 构建批次索引
func NewBatch(records []*model.CanonicalRecord) *Batch {
	b := &Batch{
		Records:         records,
		duplicateIDAt:   make(map[*model.CanonicalRecord]bool),
		duplicateRankAt: make(map[*model.CanonicalRecord]bool),
	}

	idSeen := make(map[string]int)
	rankSeen := make(map[string]int)
	for _, r := range records {
		if r == nil {
			continue
		}
		b.hasStudentID = b.hasStudentID || r.StudentID != ""
		b.hasName = b.hasName || r.Name != ""
		b.hasClass = b.hasClass || r.ClassName != ""

		exam := examKey(r.Exam)
		if r.StudentID != "" {
			k := exam + "\x1f" + r.StudentID
			idSeen[k]++
			if idSeen[k] == 2 {
				b.duplicateIDAt[r] = true
			}
		}
		if r.RankInClass != nil && r.ClassName != "" {
			k := exam + "\x1f" + r.ClassName + "\x1f" + strconv.Itoa(*r.RankInClass)
			rankSeen[k]++
			if rankSeen[k] == 2 {
				b.duplicateRankAt[r] = true
			}
		}
	}
	return b
}

func examKey(e model.ExamInfo) string {
	return e.Title + "\x1f" + e.Type + "\x1f" + e.Date
}
