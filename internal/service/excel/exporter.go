package excel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"scoreintake/internal/model"
)

const (
	recordsSheet  = "成绩"
	findingsSheet = "校验问题"
	summarySheet  = "导入概览"
)

// Exporter 导入结果导出器
type Exporter struct{}

// NewExporter 创建导出器
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export 导出分析结果：成绩明细、校验问题与概览三张表
func (e *Exporter) Export(result *model.ImportResult) (*excelize.File, error) {
	if result == nil {
		return nil, errors.New("export: nil result")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, err
	}

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	if err := writeRecords(f, result.Records, headerStyle); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, err
	}
	if err := writeFindings(f, result.Findings, headerStyle); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	if err := writeSummary(f, result, headerStyle); err != nil {
		return nil, err
	}
	return f, nil
}

// ExportRecords 仅导出成绩明细（用于已入库记录的查询结果）
func (e *Exporter) ExportRecords(records []*model.CanonicalRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := writeRecords(f, records, headerStyle); err != nil {
		return nil, err
	}
	return f, nil
}

// presentSubjects 按固定科目顺序返回出现过分数或等级的科目
func presentSubjects(records []*model.CanonicalRecord) (scores, grades []model.Subject) {
	hasScore := map[model.Subject]bool{}
	hasGrade := map[model.Subject]bool{}
	for _, r := range records {
		for s, res := range r.Subjects {
			if res == nil {
				continue
			}
			if res.Score != nil {
				hasScore[s] = true
			}
			if res.Grade != "" {
				hasGrade[s] = true
			}
		}
	}
	for _, s := range model.Subjects {
		if hasScore[s] {
			scores = append(scores, s)
		}
		if hasGrade[s] {
			grades = append(grades, s)
		}
	}
	return scores, grades
}

func writeRecords(f *excelize.File, records []*model.CanonicalRecord, style int) error {
	scores, grades := presentSubjects(records)

	headers := []interface{}{"学号", "姓名", "班级"}
	for _, s := range scores {
		headers = append(headers, s.DisplayName())
	}
	for _, s := range grades {
		headers = append(headers, s.DisplayName()+"等级")
	}
	headers = append(headers, "总分", "总等级", "班级排名", "年级排名", "学校排名", "考试", "来源行")
	if err := writeRow(f, recordsSheet, 1, headers); err != nil {
		return err
	}

	for i, r := range records {
		row := []interface{}{r.StudentID, r.Name, r.ClassName}
		for _, s := range scores {
			row = append(row, optFloat(subjectScore(r, s)))
		}
		for _, s := range grades {
			grade := ""
			if res := r.Subjects[s]; res != nil {
				grade = res.Grade
			}
			row = append(row, grade)
		}
		row = append(row,
			optFloat(r.TotalScore), r.TotalGrade,
			optInt(r.RankInClass), optInt(r.RankInGrade), optInt(r.RankInSchool),
			r.Exam.Title, joinInts(r.SourceRows))
		if err := writeRow(f, recordsSheet, i+2, row); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(recordsSheet, "A1", lastCol+"1", style)
	_ = f.SetColWidth(recordsSheet, "A", "C", 14)
	return nil
}

func writeFindings(f *excelize.File, findings []model.Finding, style int) error {
	headers := []interface{}{"记录", "规则", "字段", "级别", "说明", "建议", "取值", "可自动修复"}
	if err := writeRow(f, findingsSheet, 1, headers); err != nil {
		return err
	}
	for i, fd := range findings {
		autofix := ""
		if fd.Autofix {
			autofix = "是"
		}
		row := []interface{}{fd.RecordRef, fd.RuleID, string(fd.Field), string(fd.Severity), fd.Message, fd.Suggestion, fd.Value, autofix}
		if err := writeRow(f, findingsSheet, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetCellStyle(findingsSheet, "A1", "H1", style)
	_ = f.SetColWidth(findingsSheet, "E", "F", 40)
	return nil
}

func writeSummary(f *excelize.File, result *model.ImportResult, style int) error {
	meta := result.Metadata
	accepted := "否"
	if result.Accepted {
		accepted = "是"
	}
	rows := [][]interface{}{
		{"项目", "内容"},
		{"文件", result.Filename},
		{"考试", meta.ExamInfo.Title},
		{"考试类型", meta.ExamInfo.Type},
		{"考试日期", meta.ExamInfo.Date},
		{"范围", meta.ExamInfo.Scope},
		{"表格结构", string(meta.DetectedStructure)},
		{"识别策略", string(meta.StrategyUsed)},
		{"识别置信度", meta.Confidence},
		{"数据行数", meta.TotalRows},
		{"丢弃行数", meta.DroppedRowCount},
		{"无法解析单元格", meta.DroppedCellCount},
		{"记录数", len(result.Records)},
		{"质量分", result.QualityScore.Score},
		{"质量等级", result.QualityScore.Label},
		{"可导入", accepted},
	}
	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	_ = f.SetCellStyle(summarySheet, "A1", "B1", style)
	_ = f.SetColWidth(summarySheet, "A", "B", 20)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func subjectScore(r *model.CanonicalRecord, s model.Subject) *float64 {
	if res := r.Subjects[s]; res != nil {
		return res.Score
	}
	return nil
}

func optFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}
