package model

// ClassifierMode 外部语义分类器调用模式
type ClassifierMode string

const (
	ClassifierDisabled ClassifierMode = "disabled"
	ClassifierAuto     ClassifierMode = "auto"
	ClassifierForce    ClassifierMode = "force"
)

// ParseClassifierMode 解析模式，非法值按 auto 处理
func ParseClassifierMode(s string) ClassifierMode {
	switch ClassifierMode(s) {
	case ClassifierDisabled, ClassifierForce:
		return ClassifierMode(s)
	default:
		return ClassifierAuto
	}
}

// ImportOptions 导入选项
//
// MinConfidenceForExternal：auto 模式下规则识别置信度低于该值才调用外部分类器；
// MinExternalConfidence：外部结果置信度下限，低于该值按调用失败处理（0 表示不限制）。
type ImportOptions struct {
	ClassifierMode           ClassifierMode `json:"classifierMode"`
	MinConfidenceForExternal float64        `json:"minConfidenceForExternal"`
	MinExternalConfidence    float64        `json:"minExternalConfidence"`
}

// DefaultImportOptions 默认导入选项
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ClassifierMode:           ClassifierAuto,
		MinConfidenceForExternal: 0.8,
	}
}
