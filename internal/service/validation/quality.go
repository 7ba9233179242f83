package validation

import "scoreintake/internal/model"

// 各级别问题扣分
const (
	penaltyCritical = 10
	penaltyError    = 5
	penaltyWarning  = 2
	penaltyInfo     = 1
)

var qualityLabels = map[model.QualityLevel]string{
	model.QualityExcellent: "优秀",
	model.QualityGood:      "良好",
	model.QualityFair:      "一般",
	model.QualityPoor:      "较差",
	model.QualityCritical:  "严重",
}

// Score 计算数据质量评分
func Score(findings []model.Finding) model.QualityScore {
	var q model.QualityScore
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical:
			q.Critical++
		case model.SeverityError:
			q.Errors++
		case model.SeverityWarning:
			q.Warnings++
		case model.SeverityInfo:
			q.Info++
		}
	}

	score := 100 - q.Critical*penaltyCritical - q.Errors*penaltyError - q.Warnings*penaltyWarning - q.Info*penaltyInfo
	if score < 0 {
		score = 0
	}
	q.Score = score
	q.Level = Level(score)
	q.Label = qualityLabels[q.Level]
	return q
}

// Level 分数对应的质量等级
func Level(score int) model.QualityLevel {
	switch {
	case score >= 95:
		return model.QualityExcellent
	case score >= 85:
		return model.QualityGood
	case score >= 70:
		return model.QualityFair
	case score >= 50:
		return model.QualityPoor
	default:
		return model.QualityCritical
	}
}
