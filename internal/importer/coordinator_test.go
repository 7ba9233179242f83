package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"scoreintake/internal/cache"
	"scoreintake/internal/config"
	"scoreintake/internal/model"
	"scoreintake/internal/semantic"
	"scoreintake/internal/service/excel"
	"scoreintake/internal/service/strategy"
	"scoreintake/internal/service/validation"
	"scoreintake/internal/store"
)

func csvInput(filename, body string) Input {
	return Input{
		Filename: filename,
		Data:     []byte(body),
		Options:  model.DefaultImportOptions(),
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), store.DefaultDBName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func rulesOf(findings []model.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.RuleID)
	}
	return out
}

func TestAnalyze_ScenarioWide(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("2024年4月高一期中考试.csv",
		"学号,姓名,班级,语文,数学,总分\n001,张三,高一1班,85,90,175\n"))
	require.NoError(t, err)

	assert.Equal(t, model.StructureWide, res.Metadata.DetectedStructure)
	assert.Equal(t, model.StrategyDeterministicDominant, res.Metadata.StrategyUsed)
	assert.Equal(t, 0.98, res.Metadata.Confidence)
	assert.Equal(t, model.FileKindDelimited, res.Metadata.FileKind)
	assert.Equal(t, 1, res.Metadata.TotalRows)
	assert.Empty(t, res.Metadata.UnmappedHeaders)
	assert.False(t, res.Metadata.Processing.RequiresUserInput)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	chinese, _ := rec.SubjectScore(model.SubjectChinese)
	math, _ := rec.SubjectScore(model.SubjectMath)
	assert.Equal(t, 85.0, chinese)
	assert.Equal(t, 90.0, math)
	assert.Equal(t, 175.0, *rec.TotalScore)

	assert.Empty(t, res.Findings)
	assert.Equal(t, 100, res.QualityScore.Score)
	assert.True(t, res.Accepted)

	exam := res.Metadata.ExamInfo
	assert.Equal(t, "期中考试", exam.Type)
	assert.Equal(t, "2024-04-01", exam.Date)
	assert.Equal(t, ScopeClass, exam.Scope)
	assert.Equal(t, []string{"chinese", "math"}, res.Metadata.DetectedSubjects)
}

func TestAnalyze_ScenarioLong(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("scores.csv",
		"学号,姓名,科目,分数\n001,张三,语文,85\n001,张三,数学,90\n"))
	require.NoError(t, err)

	assert.Equal(t, model.StructureLong, res.Metadata.DetectedStructure)
	assert.Equal(t, "科目", res.Metadata.Discriminator)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "001", rec.StudentID)
	chinese, _ := rec.SubjectScore(model.SubjectChinese)
	math, _ := rec.SubjectScore(model.SubjectMath)
	assert.Equal(t, 85.0, chinese)
	assert.Equal(t, 90.0, math)
	assert.True(t, res.Accepted)
}

func TestAnalyze_ScenarioGradeReclassification(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("月考.csv",
		"学号,姓名,班级,语文,数学,英语\n001,张三,1班,A,90,88\n002,李四,1班,B,80,85\n003,王五,1班,C,70,60\n"))
	require.NoError(t, err)

	assert.Equal(t, model.FieldTag("chinese_grade"), res.Metadata.FieldMapping["语文"])
	require.Len(t, res.Metadata.Processing.Reclassified, 1)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, model.SeverityInfo, res.Findings[0].Severity)
	assert.Equal(t, "chinese_grade", res.Findings[0].Field)
	assert.Equal(t, "A", res.Records[0].Subjects[model.SubjectChinese].Grade)
	assert.Equal(t, 99, res.QualityScore.Score)
	assert.True(t, res.Accepted)
}

func TestAnalyze_ScenarioDuplicateBlocksImport(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	c := NewCoordinator(Deps{Persister: st})
	res, err := c.Analyze(context.Background(), csvInput("期末.csv",
		"学号,姓名,班级,语文,数学,英语\n001,张三,1班,80,90,100\n001,李四,1班,85,95,99\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"batch-duplicate-student-id"}, rulesOf(res.Findings))
	assert.Equal(t, model.SeverityCritical, res.Findings[0].Severity)
	assert.Equal(t, 90, res.QualityScore.Score)
	assert.False(t, res.Accepted)

	_, err = c.Confirm(context.Background(), res.ImportID)
	assert.ErrorIs(t, err, ErrImportRejected)

	records, err := st.ListRecords(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	logs, err := st.ListImportLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.ImportStatusRejected, logs[0].Status)
}

func TestAnalyze_ScenarioCombinedSubject(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("理科期末.csv",
		"学号,姓名,语文,数学,英语,理综,总分\n001,张三,100,110,120,250,580\n"))
	require.NoError(t, err)

	assert.Equal(t, model.FieldTag("sciences_score"), res.Metadata.FieldMapping["理综"])
	assert.Empty(t, res.Metadata.UnmappedHeaders)
	require.Len(t, res.Records, 1)
	sciences, ok := res.Records[0].SubjectScore(model.SubjectSciences)
	require.True(t, ok)
	assert.Equal(t, 250.0, sciences)
	assert.Equal(t, []string{"chinese", "math", "english", "sciences"}, res.Metadata.DetectedSubjects)

	assert.Empty(t, rulesOf(res.Findings))
	assert.Equal(t, 100, res.QualityScore.Score)
}

func TestAnalyze_UnparsableCellsSurfaceAsFindings(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("scores.csv",
		"学号,姓名,语文,数学,英语,总分\n001,张三,八十五,90,80,255\n002,李四,85,A,80,255\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Metadata.DroppedCellCount)
	assert.Equal(t, 0, res.Metadata.DroppedRowCount)
	assert.Equal(t, model.FieldTag("math_score"), res.Metadata.FieldMapping["数学"])

	var unparsable []model.Finding
	for _, f := range res.Findings {
		if f.RuleID == "note-unparsable-value" {
			unparsable = append(unparsable, f)
		}
	}
	require.Len(t, unparsable, 2)
	assert.Equal(t, "row:2", unparsable[0].RecordRef)
	assert.Equal(t, "chinese_score", unparsable[0].Field)
	assert.Equal(t, model.SeverityWarning, unparsable[0].Severity)
	assert.Equal(t, "row:3", unparsable[1].RecordRef)
	assert.Equal(t, "math_score", unparsable[1].Field)
	assert.True(t, res.Accepted)
}

func TestAnalyze_DuplicateHeaderTagIsReported(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("scores.csv",
		"学号,考号,姓名,语文\n001,K001,张三,85\n"))
	require.NoError(t, err)

	assert.Equal(t, []model.HeaderConflict{{Header: "考号", Winner: "学号", Tag: model.TagStudentID}},
		res.Metadata.Processing.HeaderConflicts)
	require.Len(t, res.Metadata.UnmappedHeaders, 1)
	assert.Equal(t, "考号", res.Metadata.UnmappedHeaders[0].Name)
	assert.Equal(t, "001", res.Records[0].StudentID)

	assert.Equal(t, []string{validation.RuleDuplicateHeaderTag}, rulesOf(res.Findings))
	assert.Equal(t, "header:考号", res.Findings[0].RecordRef)
	assert.Equal(t, 98, res.QualityScore.Score)

	// 自动修复后重新校验仍保留表头问题
	fixed, err := c.ApplyAutofixes(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, []string{validation.RuleDuplicateHeaderTag}, rulesOf(fixed.Findings))
}

func TestAnalyze_Spreadsheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"考号", "姓名", "班级", "语文", "数学", "英语", "语文班排", "总分", "年级排名"},
		{"2024001", "张三", "高一1班", 120, 130, 140, 1, 390, 5},
		{"2024002", "李四", "高一2班", 110, 100, 90, 3, 300, 40},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), Input{Filename: "高一期末.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)

	assert.Equal(t, model.FileKindSpreadsheet, res.Metadata.FileKind)
	assert.Equal(t, model.StructureWide, res.Metadata.DetectedStructure)
	assert.Equal(t, model.FieldTag("chinese_rank_in_class"), res.Metadata.FieldMapping["语文班排"])
	assert.Equal(t, model.TagRankInGrade, res.Metadata.FieldMapping["年级排名"])
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, *res.Records[0].Subjects[model.SubjectChinese].RankInClass)
	assert.Equal(t, 5, *res.Records[0].RankInGrade)
	assert.Equal(t, ScopeGrade, res.Metadata.ExamInfo.Scope)
	assert.Empty(t, res.Findings)
}

func TestAnalyze_ExternalFailureDegrades(t *testing.T) {
	t.Parallel()

	selector := strategy.NewSelector(&semantic.Stub{Err: errors.New("connection refused")}, nil, time.Second, time.Hour, nil)
	c := NewCoordinator(Deps{Selector: selector})
	res, err := c.Analyze(context.Background(), csvInput("unknown.csv",
		"学号,姓名,备注,联系电话,家长\n001,张三,好,138,李\n"))
	require.NoError(t, err)

	p := res.Metadata.Processing
	assert.Equal(t, model.StrategyDeterministicDominant, res.Metadata.StrategyUsed)
	assert.True(t, p.RequiresUserInput)
	assert.Contains(t, p.ExternalError, "connection refused")
	assert.False(t, p.ExternalUsed)
	assert.Equal(t, 0.4, p.Coverage)

	names := make([]string, 0, len(res.Metadata.UnmappedHeaders))
	for _, u := range res.Metadata.UnmappedHeaders {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"备注", "联系电话", "家长"}, names)
	assert.Equal(t, []string{"138"}, res.Metadata.UnmappedHeaders[1].SampleValues)
	require.Len(t, res.Records, 1)
}

func TestAnalyze_HybridUsesExternalMapping(t *testing.T) {
	t.Parallel()

	stub := &semantic.Stub{Response: &semantic.Response{
		FieldMapping: map[string]string{"学号": "student_id", "X": "math_score", "备注": "none"},
		Confidence:   0.9,
	}}
	selector := strategy.NewSelector(stub, cache.NewMemoryStore(0), time.Second, time.Hour, nil)
	c := NewCoordinator(Deps{Selector: selector})

	res, err := c.Analyze(context.Background(), csvInput("hybrid.csv",
		"学号,姓名,语文,备注,X\n001,张三,80,无,95\n"))
	require.NoError(t, err)

	assert.Equal(t, model.StrategyHybrid, res.Metadata.StrategyUsed)
	assert.True(t, res.Metadata.Processing.ExternalUsed)
	assert.Equal(t, model.FieldTag("math_score"), res.Metadata.FieldMapping["X"])
	require.Len(t, res.Records, 1)
	math, ok := res.Records[0].SubjectScore(model.SubjectMath)
	require.True(t, ok)
	assert.Equal(t, 95.0, math)
	assert.Len(t, stub.Requests(), 1)
}

func TestAnalyze_FatalErrors(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	_, err := c.Analyze(context.Background(), csvInput("empty.csv", ""))
	assert.ErrorIs(t, err, excel.ErrUnreadableFile)

	_, err = c.Analyze(context.Background(), csvInput("header.csv", "学号,姓名\n"))
	assert.ErrorIs(t, err, excel.ErrNoDataRows)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(Deps{})
	_, err := c.Analyze(ctx, csvInput("a.csv", "学号,语文\n001,90\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirm_PersistsAndRemembersMapping(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	memory := st.MappingMemory()
	selector := strategy.NewSelector(nil, memory, time.Second, time.Hour, nil)
	c := NewCoordinator(Deps{Selector: selector, Persister: st})
	ctx := context.Background()

	res, err := c.Analyze(ctx, csvInput("期中.csv",
		"学号,姓名,班级,语文,数学,总分\n001,张三,1班,85,90,175\n002,李四,1班,70,80,150\n"))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	got, err := c.Get(res.ImportID)
	require.NoError(t, err)
	assert.Same(t, res, got)

	confirmed, err := c.Confirm(ctx, res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 2, confirmed.Saved)

	records, err := st.ListRecords(ctx, store.RecordFilter{ExamTitle: "期中"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = c.Get(res.ImportID)
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = c.Confirm(ctx, res.ImportID)
	assert.ErrorIs(t, err, ErrImportNotFound)

	entry, ok, err := memory.Get(ctx, cache.Key(res.Headers))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TagStudentID, entry.FieldMapping["学号"])

	logs, err := st.ListImportLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.ImportStatusCompleted, logs[0].Status)
	assert.Equal(t, 2, logs[0].ImportedRows)
}

func TestConfirm_WithoutPersistence(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{})
	res, err := c.Analyze(context.Background(), csvInput("a.csv", "学号,语文\n001,90\n"))
	require.NoError(t, err)

	_, err = c.Confirm(context.Background(), res.ImportID)
	assert.ErrorIs(t, err, ErrNoPersistence)
}

func TestApplyAutofixes_RevalidatesPendingResult(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Deps{Validator: validation.NewEngine(config.DefaultConfig().Validation, nil)})
	res, err := c.Analyze(context.Background(), csvInput("a.csv",
		"学号,姓名,班级,语文,数学\n001,张三,1班,160,90\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"range-score"}, rulesOf(res.Findings))

	fixed, err := c.ApplyAutofixes(res.ImportID)
	require.NoError(t, err)
	assert.Empty(t, fixed.Findings)
	assert.Equal(t, 100, fixed.QualityScore.Score)
	score, _ := fixed.Records[0].SubjectScore(model.SubjectChinese)
	assert.Equal(t, 150.0, score)

	// 原结果不变
	orig, _ := res.Records[0].SubjectScore(model.SubjectChinese)
	assert.Equal(t, 160.0, orig)

	pendingRes, err := c.Get(res.ImportID)
	require.NoError(t, err)
	assert.Same(t, fixed, pendingRes)
}
