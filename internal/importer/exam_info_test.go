package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scoreintake/internal/model"
)

func TestInferExamInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		caption  string
		want     model.ExamInfo
	}{
		{
			name:     "full filename",
			filename: "/tmp/uploads/高一年级2024年3月15日期中考试.xlsx",
			want:     model.ExamInfo{Title: "高一年级2024年3月15日期中考试", Type: "期中考试", Date: "2024-03-15", GradeLevel: "高一年级"},
		},
		{
			name:     "month only",
			filename: "2024-06 月考成绩.csv",
			want:     model.ExamInfo{Title: "2024-06 月考成绩", Type: "月考", Date: "2024-06-01"},
		},
		{
			name:     "mock exam",
			filename: "初三二模.xlsx",
			want:     model.ExamInfo{Title: "初三二模", Type: "模拟考试"},
		},
		{
			name:     "english keyword",
			filename: "Midterm_scores.xlsx",
			want:     model.ExamInfo{Title: "Midterm_scores", Type: "期中考试"},
		},
		{
			name:     "caption fills gaps",
			filename: "成绩单.xlsx",
			caption:  "2023年12月 高二3班 期末考试",
			want:     model.ExamInfo{Title: "成绩单", Type: "期末考试", Date: "2023-12-01"},
		},
		{
			name:     "empty filename uses caption",
			filename: "",
			caption:  "单元测试一",
			want:     model.ExamInfo{Title: "单元测试一", Type: "单元测试"},
		},
		{
			name: "defaults",
			want: model.ExamInfo{Title: DefaultExamTitle, Type: DefaultExamType},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InferExamInfo(tt.filename, tt.caption))
		})
	}
}

func TestFindGradeLevel_SkipsYearDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", findGradeLevel("2024年期中"))
	assert.Equal(t, "初二级", findGradeLevel("2024年初二级期中"))
	assert.Equal(t, "7年级", findGradeLevel("2024年7年级期末"))
}

func TestInferScope(t *testing.T) {
	t.Parallel()

	one := &model.CanonicalRecord{ClassName: "1班"}
	two := &model.CanonicalRecord{ClassName: "2班"}
	assert.Equal(t, ScopeClass, inferScope([]*model.CanonicalRecord{one}))
	assert.Equal(t, ScopeClass, inferScope(nil))
	assert.Equal(t, ScopeGrade, inferScope([]*model.CanonicalRecord{one, two}))

	ranked := &model.CanonicalRecord{ClassName: "1班"}
	ranked.Subject(model.SubjectMath).RankInSchool = model.Int(30)
	assert.Equal(t, ScopeSchool, inferScope([]*model.CanonicalRecord{one, ranked}))
}
