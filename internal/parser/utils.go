package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	bracketRe  = regexp.MustCompile(`[()\[\]{}<>【】《》]`)
	examDateRe = regexp.MustCompile(`(\d{4})[年\-/.]?(\d{1,2})[月\-/.]?(\d{1,2})?`)
)

// NormalizeHeader 规范化表头：全角转半角、小写、去空白与括号
// 例如 "语文（等级）" -> "语文等级"，" Student ID " -> "studentid"
func NormalizeHeader(name string) string {
	name = width.Narrow.String(name)
	name = strings.ToLower(name)
	name = spaceRe.ReplaceAllString(name, "")
	name = bracketRe.ReplaceAllString(name, "")
	return name
}

// ExtractExamDate 从字符串中提取考试日期，缺少日时按 1 日处理
// 支持格式: "2024年3月15日" / "2024-03" / "20240315"
func ExtractExamDate(text string) (string, bool) {
	matches := examDateRe.FindStringSubmatch(text)
	if len(matches) < 3 {
		return "", false
	}
	year, _ := strconv.Atoi(matches[1])
	month, _ := strconv.Atoi(matches[2])
	day := 1
	if matches[3] != "" {
		day, _ = strconv.Atoi(matches[3])
	}
	if year < 1900 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// MatchPattern 使用正则匹配
func MatchPattern(text, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
