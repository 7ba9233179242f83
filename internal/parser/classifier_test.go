package parser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreintake/internal/model"
)

func TestClassify_KnownHeaders(t *testing.T) {
	t.Parallel()

	c := NewHeaderClassifier(nil, nil)
	cases := map[string]model.FieldTag{
		"学号":          model.TagStudentID,
		"准考证号":        model.TagStudentID,
		"Student ID":  model.TagStudentID,
		"ＩＤ":          model.TagStudentID,
		"姓名":          model.TagName,
		"姓 名":         model.TagName,
		"班级":          model.TagClassName,
		"班级名称":        model.TagClassName,
		"考试日期":        model.TagExamDate,
		"科目":          model.TagSubject,
		"分数":          model.TagScore,
		"语文":          model.SubjectTag(model.SubjectChinese, model.KindScore),
		"语文（分）":       model.SubjectTag(model.SubjectChinese, model.KindScore),
		"数学成绩":        model.SubjectTag(model.SubjectMath, model.KindScore),
		"道法":          model.SubjectTag(model.SubjectPolitics, model.KindScore),
		"english":     model.SubjectTag(model.SubjectEnglish, model.KindScore),
		"数学总分":        model.SubjectTag(model.SubjectMath, model.KindScore),
		"总分":          model.TagTotalScore,
		"total_score": model.TagTotalScore,
		"总分等级":        model.TagTotalGrade,
		"总分班名":        model.TagRankInClass,
		"总分级排":        model.TagRankInGrade,
		"总分校排":        model.TagRankInSchool,
		"总分排名":        model.TagRankInClass,
		"班级排名":        model.TagRankInClass,
		"年级排名":        model.TagRankInGrade,
		"学校排名":        model.TagRankInSchool,
		"排名":          model.TagRankInClass,
		"语文班名":        model.SubjectTag(model.SubjectChinese, model.KindRankInClass),
		"数学等级":        model.SubjectTag(model.SubjectMath, model.KindGrade),
		"英语级排":        model.SubjectTag(model.SubjectEnglish, model.KindRankInGrade),
		"物理校名":        model.SubjectTag(model.SubjectPhysics, model.KindRankInSchool),
		"math_rank":   model.SubjectTag(model.SubjectMath, model.KindRankInClass),
		"理综":          model.SubjectTag(model.SubjectSciences, model.KindScore),
		"文科综合":        model.SubjectTag(model.SubjectLiberalArts, model.KindScore),
		"理综班排":        model.SubjectTag(model.SubjectSciences, model.KindRankInClass),
		"信息技术":        model.SubjectTag(model.SubjectIT, model.KindScore),
		"计算机成绩":       model.SubjectTag(model.SubjectIT, model.KindScore),
		"体育":          model.SubjectTag(model.SubjectPE, model.KindScore),
		"音乐等级":        model.SubjectTag(model.SubjectMusic, model.KindGrade),
		"美术":          model.SubjectTag(model.SubjectArt, model.KindScore),
		"party":       model.TagNone,
		"type":        model.TagNone,
		"备注":          model.TagNone,
		"":            model.TagNone,
	}
	for header, want := range cases {
		got := c.Classify(header, nil)
		assert.Equal(t, want, got.FieldTag, "header %q", header)
		if want == model.TagNone {
			assert.Zero(t, got.Confidence, "header %q", header)
		} else {
			assert.Greater(t, got.Confidence, 0.5, "header %q", header)
		}
	}
}

func TestClassify_SubjectWithQualifierNeverResolvesToScore(t *testing.T) {
	t.Parallel()

	c := NewHeaderClassifier(nil, nil)
	qualifiers := map[string]model.FieldKind{
		"班名":   model.KindRankInClass,
		"班排":   model.KindRankInClass,
		"班级排名": model.KindRankInClass,
		"级名":   model.KindRankInGrade,
		"级排":   model.KindRankInGrade,
		"年级排名": model.KindRankInGrade,
		"校名":   model.KindRankInSchool,
		"校排":   model.KindRankInSchool,
		"学校排名": model.KindRankInSchool,
		"等级":   model.KindGrade,
		"评级":   model.KindGrade,
	}
	for _, s := range model.Subjects {
		for _, kw := range subjectKeywords[s] {
			for q, kind := range qualifiers {
				header := kw + q
				got := c.Classify(header, nil)
				assert.Equal(t, model.SubjectTag(s, kind), got.FieldTag, "header %q", header)
				assert.NotEqual(t, model.SubjectTag(s, model.KindScore), got.FieldTag, "header %q", header)
			}
		}
	}
}

func TestClassify_ProfileFallback(t *testing.T) {
	t.Parallel()

	c := NewHeaderClassifier(nil, nil)

	got := c.Classify("语", []string{"85", "90", "77"})
	assert.Equal(t, model.SubjectTag(model.SubjectChinese, model.KindScore), got.FieldTag)
	assert.Equal(t, fallbackConfidence, got.Confidence)

	got = c.Classify("语", nil)
	assert.Equal(t, model.TagNone, got.FieldTag)

	got = c.Classify("语", []string{"张三", "李四"})
	assert.Equal(t, model.TagNone, got.FieldTag)
}

func TestClassify_ProfileFallbackSkipsRankHeaders(t *testing.T) {
	t.Parallel()

	c := NewHeaderClassifier(nil, nil)
	for _, header := range []string{"数排", "地排序", "英排位"} {
		got := c.Classify(header, []string{"1", "2", "3", "4"})
		assert.Equal(t, model.TagNone, got.FieldTag, header)
		assert.Zero(t, got.Confidence, header)
	}

	got := c.Classify("数", []string{"1", "2", "3", "4"})
	assert.Equal(t, model.SubjectTag(model.SubjectMath, model.KindScore), got.FieldTag)
}

func TestClassifyAll_BareQualifiersInheritPrecedingSubject(t *testing.T) {
	t.Parallel()

	c := NewHeaderClassifier(nil, nil)
	headers := []string{"姓名", "语文", "等级", "班排", "数学", "等级", "总分", "等级", "排名"}
	got := c.ClassifyAll(headers, nil)
	require.Len(t, got, len(headers))

	want := []model.FieldTag{
		model.TagName,
		model.SubjectTag(model.SubjectChinese, model.KindScore),
		model.SubjectTag(model.SubjectChinese, model.KindGrade),
		model.SubjectTag(model.SubjectChinese, model.KindRankInClass),
		model.SubjectTag(model.SubjectMath, model.KindScore),
		model.SubjectTag(model.SubjectMath, model.KindGrade),
		model.TagTotalScore,
		model.TagTotalGrade,
		model.TagRankInClass,
	}
	for i := range want {
		assert.Equal(t, want[i], got[i].FieldTag, "header %d %q", i, headers[i])
	}
	assert.Equal(t, "context:语文", got[2].Evidence)
}

func TestClassifyAll_Deterministic(t *testing.T) {
	t.Parallel()

	headers := []string{"学号", "姓名", "班级", "语文", "数学", "英语", "总分", "班名", "语", "未知列"}
	columns := [][]string{
		{"001"}, {"张三"}, {"高一1班"}, {"85"}, {"90"}, {"100"}, {"275"}, {"1"}, {"80", "81"}, {"x"},
	}

	memo := NewMemo()
	first := NewHeaderClassifier(memo, nil).ClassifyAll(headers, columns)
	for i := 0; i < 5; i++ {
		again := NewHeaderClassifier(memo, nil).ClassifyAll(headers, columns)
		assert.Equal(t, first, again)
		fresh := NewHeaderClassifier(nil, nil).ClassifyAll(headers, columns)
		assert.Equal(t, first, fresh)
	}
}

func TestMemo_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	memo := NewMemo()
	c := NewHeaderClassifier(memo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			header := fmt.Sprintf("语文%d", i%4)
			got := c.Classify(header, nil)
			assert.Equal(t, model.SubjectTag(model.SubjectChinese, model.KindScore), got.FieldTag)
		}(i)
	}
	wg.Wait()

	cached, ok := memo.Load("语文0")
	require.True(t, ok)
	assert.Equal(t, "语文0", cached.Header)
}
