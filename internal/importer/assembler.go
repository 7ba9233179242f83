package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"scoreintake/internal/model"
	"scoreintake/internal/parser"
)

// RowBatchSize 每处理多少行检查一次取消
const RowBatchSize = 500

// NoteReclassifiedGrade 分数列改判为等级
const NoteReclassifiedGrade = "reclassified-grade"

// NoteUnknownSubject 长表科目列取值无法识别
const NoteUnknownSubject = "unknown-subject"

// NoteConflictingValue 长表同一学生同一字段出现不同取值
const NoteConflictingValue = "conflicting-value"

// NoteUnparsableValue 分数/排名单元格无法解析为数值
const NoteUnparsableValue = model.NoteUnparsableValue

// 缺考等标记视为空值
var absentMarkers = map[string]bool{
	"缺考": true, "缺": true, "-": true, "/": true, "无": true, "—": true, "--": true, "n/a": true, "na": true,
}

// AssembleInput 组装输入；Tags 与 Grid.Headers 一一对应
type AssembleInput struct {
	Grid      *model.RawGrid
	Tags      []model.FieldTag
	Structure model.StructureDecision
	Exam      model.ExamInfo
}

// AssembleResult 组装结果
type AssembleResult struct {
	Records         []*model.CanonicalRecord
	Tags            []model.FieldTag
	DroppedRowCount int
	// DroppedCellCount 无法解析而未写入记录的单元格数
	DroppedCellCount int
	Reclassified     []model.Reclassification
	Exam             model.ExamInfo
}

// Assembler 记录组装器
type Assembler struct {
	profiler *parser.ColumnProfiler
	logger   *zap.Logger
}

// NewAssembler 创建组装器
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		profiler: parser.NewColumnProfiler(logger),
		logger:   logger,
	}
}

// Assemble 将表格行组装为标准记录
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*AssembleResult, error) {
	if in.Grid == nil {
		return &AssembleResult{Exam: in.Exam}, nil
	}

	tags := make([]model.FieldTag, len(in.Grid.Headers))
	copy(tags, in.Tags)
	res := &AssembleResult{Tags: tags, Exam: in.Exam}
	notes := a.reclassify(in.Grid, tags, res)

	var err error
	if in.Structure.Kind == model.StructureLong {
		err = a.assembleLong(ctx, in, tags, res)
	} else {
		err = a.assembleWide(ctx, in, tags, res)
	}
	if err != nil {
		return nil, err
	}

	// 改判提示挂在第一条含该列取值的记录上
	for col, note := range notes {
		for _, r := range res.Records {
			if recordHasTag(r, tags[col]) {
				r.Notes = append(r.Notes, note)
				break
			}
		}
	}

	res.Exam.Scope = inferScope(res.Records)
	for _, r := range res.Records {
		if r.Exam.Scope == "" {
			r.Exam.Scope = res.Exam.Scope
		}
	}
	return res, nil
}

// reclassify 分数列内容为等级时改判为对应等级字段
func (a *Assembler) reclassify(grid *model.RawGrid, tags []model.FieldTag, res *AssembleResult) map[int]model.AssemblyNote {
	mapped := make(map[model.FieldTag]bool, len(tags))
	for _, t := range tags {
		mapped[t] = true
	}

	notes := make(map[int]model.AssemblyNote)
	for col, tag := range tags {
		if tag.Kind() != model.KindScore || tag == model.TagScore {
			continue
		}
		target := model.TagTotalGrade
		if s, ok := tag.Subject(); ok {
			target = model.SubjectTag(s, model.KindGrade)
		}
		if mapped[target] {
			continue
		}
		header := grid.Headers[col]
		profile := a.profiler.Profile(header, grid.ColumnSamples(col, parser.MaxProfileSamples))
		if profile.ObservedType != model.ObservedGrade {
			continue
		}

		tags[col] = target
		mapped[target] = true
		res.Reclassified = append(res.Reclassified, model.Reclassification{Header: header, From: tag, To: target})
		notes[col] = model.AssemblyNote{
			Code:    NoteReclassifiedGrade,
			Field:   target,
			Message: fmt.Sprintf("列「%s」内容为等级，已由 %s 改判为 %s", header, tag, target),
		}
		a.logger.Info("score column reclassified as grade",
			zap.String("header", header),
			zap.String("from", string(tag)),
			zap.String("to", string(target)))
	}
	return notes
}

func (a *Assembler) assembleWide(ctx context.Context, in AssembleInput, tags []model.FieldTag, res *AssembleResult) error {
	for i, row := range in.Grid.Rows {
		if i%RowBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec := newRecord(in, i)
		var bad []model.AssemblyNote
		for col, tag := range tags {
			if col >= len(row) {
				continue
			}
			if _, err := setField(rec, tag, row[col]); err != nil {
				bad = append(bad, unparsableNote(rec, in.Grid.Headers[col], tag, row[col]))
			}
		}
		if rec.Identity() == "" {
			res.DroppedRowCount++
			continue
		}
		res.DroppedCellCount += len(bad)
		rec.Notes = append(rec.Notes, bad...)
		res.Records = append(res.Records, rec)
	}
	return nil
}

func (a *Assembler) assembleLong(ctx context.Context, in AssembleInput, tags []model.FieldTag, res *AssembleResult) error {
	disc, value := longColumns(in, tags, a.profiler)

	index := make(map[string]*model.CanonicalRecord)
	for i, row := range in.Grid.Rows {
		if i%RowBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rowRec := newRecord(in, i)
		for col, tag := range tags {
			if col >= len(row) || col == disc || col == value {
				continue
			}
			if tag.IsRank() || tag == model.TagTotalGrade || tag.IsSubjectScoped() || tag == model.TagScore {
				continue
			}
			if _, err := setField(rowRec, tag, row[col]); err != nil {
				rowRec.Notes = append(rowRec.Notes, unparsableNote(rowRec, in.Grid.Headers[col], tag, row[col]))
			}
		}
		if rowRec.Identity() == "" {
			res.DroppedRowCount++
			continue
		}

		res.DroppedCellCount += len(rowRec.Notes)

		key := rowRec.Identity() + "\x1f" + examKey(rowRec.Exam)
		rec, ok := index[key]
		if !ok {
			rec = rowRec
			index[key] = rec
			res.Records = append(res.Records, rec)
		} else {
			mergeIdentity(rec, rowRec)
			rec.SourceRows = append(rec.SourceRows, rowRec.SourceRows...)
			rec.Notes = append(rec.Notes, rowRec.Notes...)
		}

		raw := ""
		if disc >= 0 && disc < len(row) {
			raw = row[disc]
		}
		subject, ok := parser.DetectSubjectValue(raw)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				rec.Notes = append(rec.Notes, model.AssemblyNote{
					Code:    NoteUnknownSubject,
					Field:   model.TagSubject,
					Message: fmt.Sprintf("第 %d 行科目「%s」无法识别，该行成绩未导入", rowRec.SourceRows[0], raw),
				})
			}
			continue
		}

		// 长表中的排名/等级列属于当前科目
		for col, tag := range tags {
			if col >= len(row) || col == disc {
				continue
			}
			target := tag
			switch {
			case col == value:
				target = model.SubjectTag(subject, model.KindScore)
				if _, numeric := parser.ParseNumber(row[col]); !numeric && parser.IsGradeValue(row[col]) {
					target = model.SubjectTag(subject, model.KindGrade)
				}
			case tag.IsRank() && !tag.IsSubjectScoped():
				target = model.SubjectTag(subject, tag.Kind())
			case tag == model.TagTotalGrade:
				target = model.SubjectTag(subject, model.KindGrade)
			case tag.IsSubjectScoped():
			default:
				continue
			}
			conflict, err := setField(rec, target, row[col])
			switch {
			case err != nil:
				res.DroppedCellCount++
				rec.Notes = append(rec.Notes, unparsableNote(rowRec, in.Grid.Headers[col], target, row[col]))
			case conflict != "":
				rec.Notes = append(rec.Notes, model.AssemblyNote{
					Code:    NoteConflictingValue,
					Field:   target,
					Message: fmt.Sprintf("第 %d 行 %s 取值「%s」与已有取值冲突，保留先出现的值", rowRec.SourceRows[0], target, conflict),
				})
			}
		}
	}
	return nil
}

// longColumns 返回科目列与取值列下标
// 取值列：标记为 score 的列，否则为唯一一个内容为分数或等级的未识别列
func longColumns(in AssembleInput, tags []model.FieldTag, profiler *parser.ColumnProfiler) (int, int) {
	disc, value := -1, -1
	for col, h := range in.Grid.Headers {
		if tags[col] == model.TagSubject {
			if disc < 0 || (h == in.Structure.Discriminator && in.Grid.Headers[disc] != h) {
				disc = col
			}
		}
		if tags[col] == model.TagScore && value < 0 {
			value = col
		}
	}
	if value >= 0 {
		return disc, value
	}

	candidates := 0
	for col, tag := range tags {
		if tag != model.TagNone {
			continue
		}
		p := profiler.Profile(in.Grid.Headers[col], in.Grid.ColumnSamples(col, parser.MaxProfileSamples))
		if p.ObservedType == model.ObservedScore || p.ObservedType == model.ObservedGrade {
			candidates++
			value = col
		}
	}
	if candidates != 1 {
		value = -1
	}
	return disc, value
}

func newRecord(in AssembleInput, row int) *model.CanonicalRecord {
	source := row + in.Grid.HeaderRows + 1
	if in.Grid.Caption != "" {
		source++
	}
	return &model.CanonicalRecord{
		Ref:        fmt.Sprintf("row:%d", source),
		Subjects:   make(map[model.Subject]*model.SubjectResult),
		Exam:       in.Exam,
		SourceRows: []int{source},
	}
}

func mergeIdentity(dst, src *model.CanonicalRecord) {
	if dst.StudentID == "" {
		dst.StudentID = src.StudentID
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.ClassName == "" {
		dst.ClassName = src.ClassName
	}
	if dst.TotalScore == nil {
		dst.TotalScore = src.TotalScore
	}
}

func examKey(e model.ExamInfo) string {
	return e.Title + "\x1f" + e.Type + "\x1f" + e.Date
}

func isAbsent(v string) bool {
	return v == "" || absentMarkers[strings.ToLower(v)]
}

// errUnparsable 数值字段取值无法解析
var errUnparsable = errors.New("unparsable numeric value")

// setField 写入单个字段；已有不同取值时保留原值并返回被丢弃的取值，
// 数值字段无法解析时返回 errUnparsable
func setField(rec *model.CanonicalRecord, tag model.FieldTag, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if isAbsent(v) {
		return "", nil
	}

	switch tag {
	case model.TagStudentID:
		rec.StudentID = v
		return "", nil
	case model.TagName:
		rec.Name = v
		return "", nil
	case model.TagClassName:
		rec.ClassName = v
		return "", nil
	case model.TagExamTitle:
		rec.Exam.Title = v
		return "", nil
	case model.TagExamType:
		if t, ok := DetectExamType(v); ok {
			rec.Exam.Type = t
		} else {
			rec.Exam.Type = v
		}
		return "", nil
	case model.TagExamDate:
		if d, ok := parser.ExtractExamDate(v); ok {
			rec.Exam.Date = d
		} else {
			rec.Exam.Date = v
		}
		return "", nil
	case model.TagTotalScore:
		return setFloat(&rec.TotalScore, v)
	case model.TagTotalGrade:
		return setString(&rec.TotalGrade, v), nil
	case model.TagRankInClass:
		return setInt(&rec.RankInClass, v)
	case model.TagRankInGrade:
		return setInt(&rec.RankInGrade, v)
	case model.TagRankInSchool:
		return setInt(&rec.RankInSchool, v)
	}

	subject, ok := tag.Subject()
	if !ok {
		return "", nil
	}
	res := rec.Subject(subject)
	var (
		conflict string
		err      error
	)
	switch tag.Kind() {
	case model.KindScore:
		conflict, err = setFloat(&res.Score, v)
	case model.KindGrade:
		conflict = setString(&res.Grade, v)
	case model.KindRankInClass:
		conflict, err = setInt(&res.RankInClass, v)
	case model.KindRankInGrade:
		conflict, err = setInt(&res.RankInGrade, v)
	case model.KindRankInSchool:
		conflict, err = setInt(&res.RankInSchool, v)
	}
	if res.IsEmpty() {
		delete(rec.Subjects, subject)
	}
	return conflict, err
}

func setFloat(dst **float64, v string) (string, error) {
	f, ok := parser.ParseNumber(v)
	if !ok {
		return "", errUnparsable
	}
	if *dst != nil {
		if **dst != f {
			return v, nil
		}
		return "", nil
	}
	*dst = model.Float(f)
	return "", nil
}

func setInt(dst **int, v string) (string, error) {
	f, ok := parser.ParseNumber(v)
	if !ok {
		return "", errUnparsable
	}
	n := int(math.Round(f))
	if *dst != nil {
		if **dst != n {
			return v, nil
		}
		return "", nil
	}
	*dst = model.Int(n)
	return "", nil
}

func unparsableNote(rec *model.CanonicalRecord, header string, tag model.FieldTag, raw string) model.AssemblyNote {
	return model.AssemblyNote{
		Code:    NoteUnparsableValue,
		Field:   tag,
		Message: fmt.Sprintf("第 %d 行「%s」取值「%s」不是有效数字，未导入", rec.SourceRows[0], header, strings.TrimSpace(raw)),
	}
}

func setString(dst *string, v string) string {
	if *dst != "" {
		if *dst != v {
			return v
		}
		return ""
	}
	*dst = v
	return ""
}

func recordHasTag(r *model.CanonicalRecord, tag model.FieldTag) bool {
	if tag == model.TagTotalGrade {
		return r.TotalGrade != ""
	}
	s, ok := tag.Subject()
	if !ok {
		return false
	}
	res, ok := r.Subjects[s]
	return ok && res.Grade != ""
}

// DetectedSubjects 记录中出现的科目（固定顺序）
func DetectedSubjects(records []*model.CanonicalRecord) []string {
	seen := make(map[model.Subject]bool)
	for _, r := range records {
		for s, res := range r.Subjects {
			if !res.IsEmpty() {
				seen[s] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, s := range model.Subjects {
		if seen[s] {
			out = append(out, string(s))
		}
	}
	return out
}
