package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"scoreintake/internal/model"
)

const (
	// MaxProfileSamples 每列最多检查的样本数
	MaxProfileSamples = 10
	// ProfileAgreement 判定类型所需的最低一致比例
	ProfileAgreement = 0.8

	maxGenericScore = 150.0
	maxRankValue    = 5000
)

var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}$`),
	regexp.MustCompile(`^\d{4}年\d{1,2}月\d{1,2}日?$`),
}

// 等级取值（内容识别时放宽，F 与小写也视为等级）
var gradeValues = map[string]bool{
	"A+": true, "A": true, "A-": true,
	"B+": true, "B": true, "B-": true,
	"C+": true, "C": true, "C-": true,
	"D+": true, "D": true, "D-": true,
	"E": true, "F": true,
	"优秀": true, "良好": true, "中等": true, "及格": true, "不及格": true, "合格": true, "不合格": true,
	"优": true, "良": true, "中": true, "差": true,
}

// IsGradeValue 是否为等级取值
func IsGradeValue(v string) bool {
	return gradeValues[strings.ToUpper(strings.TrimSpace(v))]
}

// IsDateValue 是否为日期取值
func IsDateValue(v string) bool {
	v = strings.TrimSpace(v)
	for _, re := range dateRes {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// ColumnProfiler 列内容画像
type ColumnProfiler struct {
	logger *zap.Logger
}

// NewColumnProfiler 创建列画像器
func NewColumnProfiler(logger *zap.Logger) *ColumnProfiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ColumnProfiler{logger: logger}
}

// Profile 根据样本值判断列类型；header 仅用于日志
func (p *ColumnProfiler) Profile(header string, samples []string) model.ColumnTypeProfile {
	values := make([]string, 0, MaxProfileSamples)
	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		values = append(values, s)
		if len(values) == MaxProfileSamples {
			break
		}
	}

	profile := model.ColumnTypeProfile{Header: header, ObservedType: model.ObservedText}
	if len(values) == 0 {
		return profile
	}

	var dates, grades, scores, ranks int
	for _, v := range values {
		switch {
		case IsDateValue(v):
			dates++
		case IsGradeValue(v):
			grades++
		default:
			if f, ok := ParseNumber(v); ok {
				if f >= 0 && f <= maxGenericScore {
					scores++
				} else if isRankNumber(f) {
					ranks++
				}
			}
		}
	}

	n := float64(len(values))
	best := 0.0
	for _, c := range []struct {
		t     model.ObservedType
		count int
	}{
		{model.ObservedDate, dates},
		{model.ObservedGrade, grades},
		{model.ObservedScore, scores},
		{model.ObservedRank, ranks},
	} {
		frac := float64(c.count) / n
		if frac >= ProfileAgreement {
			profile.ObservedType = c.t
			profile.SampleConfidence = round2(frac)
			p.logger.Debug("column profiled",
				zap.String("header", header),
				zap.String("type", string(c.t)),
				zap.Float64("confidence", profile.SampleConfidence))
			return profile
		}
		best = math.Max(best, frac)
	}

	// 无一致类型：文本，置信度为不匹配任何类型的比例
	matched := float64(dates+grades+scores+ranks) / n
	profile.SampleConfidence = round2(1 - matched)
	if best > 0 {
		p.logger.Debug("column profile ambiguous",
			zap.String("header", header),
			zap.Float64("best_fraction", best))
	}
	return profile
}

func isRankNumber(f float64) bool {
	return f >= 1 && f <= maxRankValue && f == math.Trunc(f)
}

var fullWidthDigits = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	"．", ".", "－", "-",
)

// ParseNumber 解析数值：容忍千分位、全角数字与 "分" 后缀
func ParseNumber(v string) (float64, bool) {
	v = strings.TrimSpace(fullWidthDigits.Replace(v))
	v = strings.TrimSuffix(v, "分")
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
