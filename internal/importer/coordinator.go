package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoreintake/internal/config"
	"scoreintake/internal/model"
	"scoreintake/internal/parser"
	"scoreintake/internal/service/excel"
	pending "scoreintake/internal/service/store"
	"scoreintake/internal/service/strategy"
	"scoreintake/internal/service/validation"
	"scoreintake/internal/store"
)

var (
	// ErrImportRejected 存在 critical 问题，禁止导入
	ErrImportRejected = errors.New("import rejected: critical findings present")
	// ErrImportNotFound 待确认的导入不存在或已过期
	ErrImportNotFound = errors.New("import not found")
	// ErrNoPersistence 未配置持久化
	ErrNoPersistence = errors.New("persistence not configured")
)

// DefaultSampleRows 发送给外部分类器的样本行数
const DefaultSampleRows = 5

// 未识别字段展示的样本数
const unmappedSampleCount = 5

// Persister 持久化协作者
type Persister interface {
	SaveRecords(ctx context.Context, importID string, records []*model.CanonicalRecord) (int, error)
	CreateImportLog(ctx context.Context, log *store.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, importID string, importedRows int, status, errorMessage string) error
}

// Input 单个文件的分析输入
type Input struct {
	Filename string
	Data     []byte
	Kind     model.FileKind
	Options  model.ImportOptions
}

// ConfirmResult 确认导入结果
type ConfirmResult struct {
	ImportID string `json:"importId"`
	Saved    int    `json:"saved"`
}

// Deps 协调器依赖；除 Selector 外均可为空
type Deps struct {
	Classifier *parser.HeaderClassifier
	Selector   *strategy.Selector
	Validator  *validation.Engine
	Pending    *pending.MemoryStore
	Persister  Persister
	SampleRows int
	Logger     *zap.Logger
}

// Coordinator 导入协调器：读取 -> 表头识别 -> 策略融合 -> 结构判定 -> 组装 -> 校验
type Coordinator struct {
	classifier *parser.HeaderClassifier
	selector   *strategy.Selector
	assembler  *Assembler
	validator  *validation.Engine
	pending    *pending.MemoryStore
	persister  Persister
	sampleRows int
	logger     *zap.Logger
}

// NewCoordinator 创建导入协调器
func NewCoordinator(deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		classifier: deps.Classifier,
		selector:   deps.Selector,
		assembler:  NewAssembler(logger),
		validator:  deps.Validator,
		pending:    deps.Pending,
		persister:  deps.Persister,
		sampleRows: deps.SampleRows,
		logger:     logger,
	}
	if c.classifier == nil {
		c.classifier = parser.NewHeaderClassifier(parser.NewMemo(), logger)
	}
	if c.selector == nil {
		c.selector = strategy.NewSelector(nil, nil, 0, 0, logger)
	}
	if c.validator == nil {
		c.validator = validation.NewEngine(config.DefaultConfig().Validation, logger)
	}
	if c.pending == nil {
		c.pending = pending.NewMemoryStore(0)
	}
	if c.sampleRows <= 0 {
		c.sampleRows = DefaultSampleRows
	}
	return c
}

// ClassifierAvailable 外部分类器是否可用
func (c *Coordinator) ClassifierAvailable() bool {
	return c.selector.Available()
}

// PendingCount 待确认的分析结果数
func (c *Coordinator) PendingCount() int {
	return c.pending.Count()
}

// Analyze 同步执行完整流程；仅读取阶段的致命错误会返回 error
func (c *Coordinator) Analyze(ctx context.Context, in Input) (*model.ImportResult, error) {
	start := time.Now()
	importID := uuid.NewString()
	log := c.logger.With(zap.String("import_id", importID), zap.String("filename", in.Filename))

	grid, kind, err := excel.Read(in.Data, excel.ReadOptions{Filename: in.Filename, Kind: in.Kind})
	if err != nil {
		log.Warn("failed to read file", zap.Error(err))
		return nil, fmt.Errorf("read %s: %w", in.Filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := in.Options
	if opts.ClassifierMode == "" {
		opts.ClassifierMode = model.ClassifierAuto
	}

	columns := make([][]string, len(grid.Headers))
	for i := range grid.Headers {
		columns[i] = grid.ColumnSamples(i, parser.MaxProfileSamples)
	}
	classes := c.classifier.ClassifyAll(grid.Headers, columns)

	sel := c.selector.Select(ctx, strategy.Input{
		Classifications: classes,
		SampleRows:      headRows(grid.Rows, c.sampleRows),
		TotalRows:       len(grid.Rows),
		Options:         opts,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tags := make([]model.FieldTag, len(grid.Headers))
	for i, cls := range sel.Final {
		if i < len(tags) {
			tags[i] = cls.FieldTag
		}
	}
	structure := parser.InferStructure(sel.Final)

	asm, err := c.assembler.Assemble(ctx, AssembleInput{
		Grid:      grid,
		Tags:      tags,
		Structure: structure,
		Exam:      InferExamInfo(in.Filename, grid.Caption),
	})
	if err != nil {
		return nil, err
	}

	report := c.validator.ValidateImport(asm.Records, sel.Processing.HeaderConflicts)

	processing := sel.Processing
	processing.Reclassified = asm.Reclassified
	result := &model.ImportResult{
		ImportID: importID,
		Filename: in.Filename,
		Records:  asm.Records,
		Headers:  grid.Headers,
		Metadata: model.ImportMetadata{
			FileKind:          kind,
			TotalRows:         len(grid.Rows),
			DroppedRowCount:   asm.DroppedRowCount,
			DroppedCellCount:  asm.DroppedCellCount,
			DetectedStructure: structure.Kind,
			Discriminator:     structure.Discriminator,
			Confidence:        sel.Confidence,
			FieldMapping:      fieldMapping(grid.Headers, asm.Tags),
			DetectedSubjects:  DetectedSubjects(asm.Records),
			ExamInfo:          asm.Exam,
			UnmappedHeaders:   unmappedHeaders(grid, asm.Tags),
			StrategyUsed:      sel.Strategy,
			Processing:        processing,
		},
		Findings:     report.Findings,
		QualityScore: report.Quality,
		Accepted:     report.Accepted,
	}
	if result.Records == nil {
		result.Records = []*model.CanonicalRecord{}
	}

	c.pending.Put(result)
	log.Info("import analyzed",
		zap.String("structure", string(structure.Kind)),
		zap.String("strategy", string(sel.Strategy)),
		zap.Float64("confidence", sel.Confidence),
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", asm.DroppedRowCount),
		zap.Int("dropped_cells", asm.DroppedCellCount),
		zap.Int("header_conflicts", len(sel.Processing.HeaderConflicts)),
		zap.Int("findings", len(result.Findings)),
		zap.Int("quality", report.Quality.Score),
		zap.Bool("accepted", report.Accepted),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Get 获取待确认的分析结果
func (c *Coordinator) Get(importID string) (*model.ImportResult, error) {
	result, err := c.pending.Get(importID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return result, nil
}

// ApplyAutofixes 对待确认结果执行自动修复并重新校验
func (c *Coordinator) ApplyAutofixes(importID string) (*model.ImportResult, error) {
	result, err := c.Get(importID)
	if err != nil {
		return nil, err
	}

	fixed := *result
	fixed.Records = c.validator.ApplyAutofixes(result.Records, result.Findings)
	report := c.validator.ValidateImport(fixed.Records, result.Metadata.Processing.HeaderConflicts)
	fixed.Findings = report.Findings
	fixed.QualityScore = report.Quality
	fixed.Accepted = report.Accepted

	c.pending.Put(&fixed)
	c.logger.Info("autofixes applied",
		zap.String("import_id", importID),
		zap.Int("findings_before", len(result.Findings)),
		zap.Int("findings_after", len(fixed.Findings)))
	return &fixed, nil
}

// Confirm 将无 critical 问题的记录交给持久化层
func (c *Coordinator) Confirm(ctx context.Context, importID string) (*ConfirmResult, error) {
	result, err := c.Get(importID)
	if err != nil {
		return nil, err
	}
	log := c.logger.With(zap.String("import_id", importID), zap.String("filename", result.Filename))

	if !result.Accepted {
		if c.persister != nil {
			if _, err := c.persister.CreateImportLog(ctx, importLog(result)); err == nil {
				_ = c.persister.UpdateImportLog(ctx, importID, 0, store.ImportStatusRejected, ErrImportRejected.Error())
			}
		}
		log.Warn("import rejected", zap.Int("critical", result.QualityScore.Critical))
		return nil, fmt.Errorf("%w (%d critical)", ErrImportRejected, result.QualityScore.Critical)
	}
	if c.persister == nil {
		return nil, ErrNoPersistence
	}

	result, err = c.pending.Take(importID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}

	if _, err := c.persister.CreateImportLog(ctx, importLog(result)); err != nil {
		c.pending.Restore(result)
		return nil, err
	}
	saved, err := c.persister.SaveRecords(ctx, importID, result.Records)
	if err != nil {
		c.pending.Restore(result)
		_ = c.persister.UpdateImportLog(ctx, importID, 0, store.ImportStatusFailed, err.Error())
		log.Error("failed to save records", zap.Error(err))
		return nil, fmt.Errorf("save records: %w", err)
	}
	if err := c.persister.UpdateImportLog(ctx, importID, saved, store.ImportStatusCompleted, ""); err != nil {
		log.Warn("failed to update import log", zap.Error(err))
	}

	if err := c.selector.Remember(ctx, result.Headers, result.Metadata.FieldMapping, result.Metadata.Confidence); err != nil {
		log.Warn("failed to remember mapping", zap.Error(err))
	}

	log.Info("import confirmed", zap.Int("saved", saved))
	return &ConfirmResult{ImportID: importID, Saved: saved}, nil
}

func importLog(r *model.ImportResult) *store.ImportLog {
	return &store.ImportLog{
		ImportID:     r.ImportID,
		Filename:     r.Filename,
		FileKind:     string(r.Metadata.FileKind),
		Structure:    string(r.Metadata.DetectedStructure),
		Strategy:     string(r.Metadata.StrategyUsed),
		Confidence:   r.Metadata.Confidence,
		TotalRows:    r.Metadata.TotalRows,
		DroppedRows:  r.Metadata.DroppedRowCount,
		QualityScore: r.QualityScore.Score,
	}
}

func headRows(rows [][]string, n int) [][]string {
	if len(rows) < n {
		n = len(rows)
	}
	return rows[:n]
}

func fieldMapping(headers []string, tags []model.FieldTag) map[string]model.FieldTag {
	out := make(map[string]model.FieldTag, len(headers))
	for i, h := range headers {
		if i < len(tags) && tags[i] != model.TagNone && h != "" {
			if _, dup := out[h]; !dup {
				out[h] = tags[i]
			}
		}
	}
	return out
}

func unmappedHeaders(grid *model.RawGrid, tags []model.FieldTag) []model.UnmappedHeader {
	out := make([]model.UnmappedHeader, 0)
	for i, h := range grid.Headers {
		if h == "" || (i < len(tags) && tags[i] != model.TagNone) {
			continue
		}
		out = append(out, model.UnmappedHeader{
			Name:         h,
			SampleValues: grid.ColumnSamples(i, unmappedSampleCount),
		})
	}
	return out
}
