package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scoreintake/internal/model"
)

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		" 语文（等级） ":   "语文等级",
		"Student ID": "studentid",
		"ＭＡＴＨ":       "math",
		"【总分】":       "总分",
		"姓\t名":       "姓名",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestExtractExamDate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"高一2024年3月月考":    "2024-03-01",
		"2024-06-15期末考试": "2024-06-15",
		"期中考试_20231108":  "2023-11-08",
		"2024/1/5 单元测试":  "2024-01-05",
	}
	for in, want := range cases {
		got, ok := ExtractExamDate(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ExtractExamDate("期中考试")
	assert.False(t, ok)
}

func TestDetectSubjectValue(t *testing.T) {
	t.Parallel()

	for in, ok := range map[string]bool{"语文": true, "Math": true, "数": true, "道德与法治": true, "体育": true, "书法": false, "": false} {
		_, got := DetectSubjectValue(in)
		assert.Equal(t, ok, got, in)
	}

	for in, want := range map[string]model.Subject{
		"理科综合": model.SubjectSciences,
		"文综":   model.SubjectLiberalArts,
		"PE":   model.SubjectPE,
		"Art":  model.SubjectArt,
		"音乐":   model.SubjectMusic,
		"信息技术": model.SubjectIT,
	} {
		got, ok := DetectSubjectValue(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}
