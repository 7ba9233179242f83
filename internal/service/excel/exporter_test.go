package excel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreintake/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	rec := &model.CanonicalRecord{
		StudentID:  "001",
		Name:       "张三",
		ClassName:  "高一1班",
		TotalScore: fp(175),
		SourceRows: []int{2},
		Exam:       model.ExamInfo{Title: "期中考试"},
	}
	rec.Subject(model.SubjectChinese).Score = fp(85)
	rec.Subject(model.SubjectMath).Score = fp(90)
	rec.Subject(model.SubjectPhysics).Grade = "A"

	result := &model.ImportResult{
		ImportID: "x",
		Filename: "期中考试.csv",
		Records:  []*model.CanonicalRecord{rec},
		Findings: []model.Finding{{
			RecordRef: "row:2",
			RuleID:    "range-score",
			Field:     "math_score",
			Severity:  model.SeverityError,
			Message:   "超出范围",
			Autofix:   true,
		}},
		QualityScore: model.QualityScore{Score: 95, Label: "优秀"},
		Accepted:     true,
	}

	f, err := NewExporter().Export(result)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{recordsSheet, findingsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(recordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"学号", "姓名", "班级", "语文", "数学", "物理等级", "总分", "总等级", "班级排名", "年级排名", "学校排名", "考试", "来源行"}, rows[0])
	assert.Equal(t, "001", rows[1][0])
	assert.Equal(t, "85", rows[1][3])
	assert.Equal(t, "A", rows[1][5])
	assert.Equal(t, "175", rows[1][6])

	findings, err := f.GetRows(findingsSheet)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "range-score", findings[1][1])
	assert.Equal(t, "是", findings[1][7])

	v, err := f.GetCellValue(summarySheet, "B16")
	require.NoError(t, err)
	assert.Equal(t, "是", v)
}

func TestExporter_NilResult(t *testing.T) {
	t.Parallel()
	_, err := NewExporter().Export(nil)
	assert.Error(t, err)
}
