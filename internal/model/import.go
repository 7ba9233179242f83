package model

// UnmappedHeader 未识别字段及样本值
type UnmappedHeader struct {
	Name         string   `json:"name"`
	SampleValues []string `json:"sampleValues"`
}

// Disagreement 混合模式下规则与外部分类器的分歧
type Disagreement struct {
	Header        string   `json:"header"`
	Deterministic FieldTag `json:"deterministic"`
	External      FieldTag `json:"external"`
}

// HeaderConflict 多个表头识别为同一字段时落选的表头
type HeaderConflict struct {
	Header string   `json:"header"`
	Winner string   `json:"winner"`
	Tag    FieldTag `json:"tag"`
}

// Reclassification 组装阶段的字段改判（如分数列实为等级）
type Reclassification struct {
	Header string   `json:"header"`
	From   FieldTag `json:"from"`
	To     FieldTag `json:"to"`
}

// ProcessingInfo 处理过程信息
type ProcessingInfo struct {
	RequiresUserInput bool               `json:"requiresUserInput"`
	Coverage          float64            `json:"coverage"`
	ExternalUsed      bool               `json:"externalUsed"`
	ExternalCached    bool               `json:"externalCached"`
	ExternalError     string             `json:"externalError,omitempty"`
	Disagreements     []Disagreement     `json:"disagreements,omitempty"`
	HeaderConflicts   []HeaderConflict   `json:"headerConflicts,omitempty"`
	Reclassified      []Reclassification `json:"reclassified,omitempty"`
}

// ImportMetadata 导入元信息
type ImportMetadata struct {
	FileKind          FileKind            `json:"fileKind"`
	TotalRows         int                 `json:"totalRows"`
	DroppedRowCount   int                 `json:"droppedRowCount"`
	DroppedCellCount  int                 `json:"droppedCellCount"`
	DetectedStructure StructureKind       `json:"detectedStructure"`
	Discriminator     string              `json:"discriminator,omitempty"`
	Confidence        float64             `json:"confidence"`
	FieldMapping      map[string]FieldTag `json:"fieldMapping"`
	DetectedSubjects  []string            `json:"detectedSubjects"`
	ExamInfo          ExamInfo            `json:"examInfo"`
	UnmappedHeaders   []UnmappedHeader    `json:"unmappedHeaders"`
	StrategyUsed      Strategy            `json:"strategyUsed"`
	Processing        ProcessingInfo      `json:"processing"`
}

// ImportResult 单个文件的导入分析结果
type ImportResult struct {
	ImportID     string             `json:"importId"`
	Filename     string             `json:"filename"`
	Records      []*CanonicalRecord `json:"records"`
	Headers      []string           `json:"headers"`
	Metadata     ImportMetadata     `json:"metadata"`
	Findings     []Finding          `json:"findings"`
	QualityScore QualityScore       `json:"qualityScore"`
	Accepted     bool               `json:"accepted"`
}
