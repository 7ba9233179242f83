package importer

import (
	"path/filepath"
	"regexp"
	"strings"

	"scoreintake/internal/model"
	"scoreintake/internal/parser"
)

// DefaultExamTitle 无法从文件名推断时的考试标题
const DefaultExamTitle = "未命名考试"

// DefaultExamType 未识别考试类型时的默认值
const DefaultExamType = "考试"

// 考试范围
const (
	ScopeClass  = "class"
	ScopeGrade  = "grade"
	ScopeSchool = "school"
)

var examTypeKeywords = []struct {
	Keywords []string
	Type     string
}{
	{[]string{"月考"}, "月考"},
	{[]string{"期中", "midterm"}, "期中考试"},
	{[]string{"期末", "final"}, "期末考试"},
	{[]string{"模拟", "一模", "二模", "三模", "mock"}, "模拟考试"},
	{[]string{"单元"}, "单元测试"},
}

var gradeLevelRe = regexp.MustCompile(`(初|高)?([一二三四五六七八九]|[1-9])(年级|年|级)`)

// DetectExamType 识别考试类型
func DetectExamType(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kt := range examTypeKeywords {
		if parser.ContainsAny(lower, kt.Keywords) {
			return kt.Type, true
		}
	}
	return "", false
}

// InferExamInfo 从文件名推断考试信息；caption 为表头上方的标题行，用于补全
func InferExamInfo(filename, caption string) model.ExamInfo {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))

	info := model.ExamInfo{Title: stem}
	for _, src := range []string{stem, caption} {
		if src == "" {
			continue
		}
		if info.Type == "" {
			info.Type, _ = DetectExamType(src)
		}
		if info.Date == "" {
			info.Date, _ = parser.ExtractExamDate(src)
		}
		if info.GradeLevel == "" {
			info.GradeLevel = findGradeLevel(src)
		}
	}

	if info.Title == "" {
		info.Title = strings.TrimSpace(caption)
	}
	if info.Title == "" {
		info.Title = DefaultExamTitle
	}
	if info.Type == "" {
		info.Type = DefaultExamType
	}
	return info
}

// findGradeLevel 识别年级，跳过紧跟在数字后的匹配（如 "2024年" 中的 "4年"）
func findGradeLevel(text string) string {
	for _, loc := range gradeLevelRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] >= '0' && text[loc[0]-1] <= '9' {
			continue
		}
		return text[loc[0]:loc[1]]
	}
	return ""
}

// inferScope 根据记录推断考试范围
func inferScope(records []*model.CanonicalRecord) string {
	classes := make(map[string]bool)
	for _, r := range records {
		if r.RankInSchool != nil {
			return ScopeSchool
		}
		for _, res := range r.Subjects {
			if res.RankInSchool != nil {
				return ScopeSchool
			}
		}
		if r.ClassName != "" {
			classes[r.ClassName] = true
		}
	}
	if len(classes) <= 1 {
		return ScopeClass
	}
	return ScopeGrade
}
