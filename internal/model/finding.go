package model

// Severity 问题严重程度
type Severity string

const (
	SeverityCritical Severity = "critical" // 阻止导入
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Finding 校验问题（不落库，仅随本次导入返回）
type Finding struct {
	RecordRef  string   `json:"recordRef"`
	RuleID     string   `json:"ruleId"`
	Field      string   `json:"field"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Value      string   `json:"value,omitempty"`
	Autofix    bool     `json:"autofix,omitempty"`
}

// QualityLevel 数据质量等级
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityCritical  QualityLevel = "critical"
)

// QualityScore 数据质量评分
type QualityScore struct {
	Score    int          `json:"score"`
	Level    QualityLevel `json:"level"`
	Label    string       `json:"label"`
	Critical int          `json:"critical"`
	Errors   int          `json:"errors"`
	Warnings int          `json:"warnings"`
	Info     int          `json:"info"`
}
