package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scoreintake/internal/importer"
	"scoreintake/internal/model"
	"scoreintake/internal/server"
	"scoreintake/internal/store"
)

var (
	analyzeMode     string
	analyzeMinConf  float64
	analyzeExtFloor float64
	analyzeConfirm  bool
	analyzeAutofix  bool
	analyzeParallel int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "分析成绩文件并输出 JSON 结果",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeMode, "classifier", "", "外部分类器模式 disabled/auto/force（默认取配置）")
	f.Float64Var(&analyzeMinConf, "min-confidence", -1, "规则置信度低于该值才调用外部分类器（默认取配置）")
	f.Float64Var(&analyzeExtFloor, "min-external-confidence", -1, "外部结果最低置信度（默认取配置）")
	f.BoolVar(&analyzeConfirm, "confirm", false, "分析通过后写入数据库")
	f.BoolVar(&analyzeAutofix, "autofix", false, "确认前应用自动修复")
	f.IntVar(&analyzeParallel, "parallel", runtime.NumCPU(), "并发处理的文件数")
}

// fileOutcome 单个文件的处理结果
type fileOutcome struct {
	File    string                  `json:"file"`
	Result  *model.ImportResult     `json:"result,omitempty"`
	Confirm *importer.ConfirmResult `json:"confirm,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, files []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	var st *store.Store
	if analyzeConfirm {
		if st, err = server.OpenStore(cfg); err != nil {
			return err
		}
	}
	comp, err := server.Build(cfg, st, logger)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return err
	}
	defer func() { _ = comp.Close() }()

	opts := model.ImportOptions{
		ClassifierMode:           model.ParseClassifierMode(cfg.Classifier.Mode),
		MinConfidenceForExternal: cfg.Classifier.MinConfidence,
		MinExternalConfidence:    cfg.Classifier.MinExternalConfidence,
	}
	if analyzeMode != "" {
		opts.ClassifierMode = model.ParseClassifierMode(analyzeMode)
	}
	if analyzeMinConf >= 0 {
		opts.MinConfidenceForExternal = analyzeMinConf
	}
	if analyzeExtFloor >= 0 {
		opts.MinExternalConfidence = analyzeExtFloor
	}

	outcomes := make([]fileOutcome, len(files))
	var (
		mu     sync.Mutex
		failed int
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	if analyzeParallel > 0 {
		g.SetLimit(analyzeParallel)
	}
	for i, path := range files {
		g.Go(func() error {
			out := analyzeFile(ctx, comp.Coordinator, path, opts)
			if out.Error != "" {
				logger.Warn("file failed", zap.String("file", path), zap.String("error", out.Error))
				mu.Lock()
				failed++
				mu.Unlock()
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcomes); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func analyzeFile(ctx context.Context, c *importer.Coordinator, path string, opts model.ImportOptions) fileOutcome {
	out := fileOutcome{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	result, err := c.Analyze(ctx, importer.Input{
		Filename: filepath.Base(path),
		Data:     data,
		Options:  opts,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if analyzeAutofix {
		if result, err = c.ApplyAutofixes(result.ImportID); err != nil {
			out.Error = err.Error()
			return out
		}
	}
	out.Result = result

	if analyzeConfirm {
		confirm, err := c.Confirm(ctx, result.ImportID)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Confirm = confirm
	}
	return out
}
