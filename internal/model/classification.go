package model

// HeaderClassification 表头识别结果（每列一条）
type HeaderClassification struct {
	Header     string   `json:"header"`
	FieldTag   FieldTag `json:"fieldTag"`
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence"`
}

// Mapped 是否识别出标签
func (c HeaderClassification) Mapped() bool {
	return c.FieldTag != TagNone
}

// ObservedType 列内容类型
type ObservedType string

const (
	ObservedScore ObservedType = "score"
	ObservedGrade ObservedType = "grade"
	ObservedRank  ObservedType = "rank"
	ObservedDate  ObservedType = "date"
	ObservedText  ObservedType = "text"
)

// ColumnTypeProfile 列内容画像（仅作为表头识别的佐证，不落库）
type ColumnTypeProfile struct {
	Header           string       `json:"header"`
	ObservedType     ObservedType `json:"observedType"`
	SampleConfidence float64      `json:"sampleConfidence"`
}

// StructureKind 数据结构
type StructureKind string

const (
	StructureWide  StructureKind = "wide"
	StructureLong  StructureKind = "long"
	StructureMixed StructureKind = "mixed"
)

// StructureDecision 结构判定；long 时 Discriminator 为科目列表头
type StructureDecision struct {
	Kind          StructureKind `json:"kind"`
	Discriminator string        `json:"discriminator,omitempty"`
}

// Strategy 识别协同策略
type Strategy string

const (
	StrategyDeterministicDominant Strategy = "deterministic-dominant"
	StrategyHybrid                Strategy = "hybrid"
	StrategySemanticDominant      Strategy = "semantic-dominant"
)
