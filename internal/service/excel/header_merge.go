package excel

import (
	"strconv"
	"strings"
)

// 第二行表头中的子字段关键词
var subHeaderKeywords = []string{"分数", "成绩", "得分", "等级", "评级", "排名", "班排", "级排", "校排"}

// 基础信息列不加父级前缀
var basicHeaders = []string{"姓名", "学号", "班级", "考号", "准考证号", "性别", "序号", "学生姓名"}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func isBasicHeader(h string) bool {
	for _, b := range basicHeaders {
		if h == b {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return err == nil
}

// isMultiRowHeader 判断第二行是否为子表头
func isMultiRowHeader(top, sub []string) bool {
	hits, numbers, gapBelow := 0, 0, false
	for i, c := range sub {
		if c == "" {
			continue
		}
		if isNumeric(c) {
			numbers++
			continue
		}
		if containsAny(c, subHeaderKeywords) {
			hits++
			if i >= len(top) || top[i] == "" {
				gapBelow = true
			}
		}
	}
	if numbers > hits {
		return false
	}
	return hits >= 2 || (hits >= 1 && gapBelow)
}

// mergeHeaderRows 合并两行表头：父级沿合并单元格向右延续
func mergeHeaderRows(top, sub []string) []string {
	width := len(top)
	if len(sub) > width {
		width = len(sub)
	}

	merged := make([]string, width)
	parent := ""
	for i := 0; i < width; i++ {
		t, s := "", ""
		if i < len(top) {
			t = top[i]
		}
		if i < len(sub) {
			s = sub[i]
		}
		if t != "" {
			parent = t
		}

		switch {
		case s == "":
			merged[i] = t
			if isBasicHeader(t) {
				parent = ""
			}
		case isBasicHeader(s):
			merged[i] = s
			parent = ""
		case t != "" && isBasicHeader(t):
			merged[i] = t
			parent = ""
		case parent == "" || s == parent:
			merged[i] = s
		default:
			merged[i] = parent + s
		}
	}
	return merged
}
