package parser

import "scoreintake/internal/model"

// WideSubjectThreshold 判定为宽表所需的科目字段数
const WideSubjectThreshold = 3

// InferStructure 根据表头识别结果判定宽表/长表/混合
//
// 科目字段 >= 3 为宽表；否则存在科目列为长表；
// 再否则把总分/总等级计入后仍 >= 3 也视为宽表；其余为混合。
func InferStructure(classes []model.HeaderClassification) model.StructureDecision {
	scoped := make(map[model.FieldTag]bool)
	aggregate := make(map[model.FieldTag]bool)
	discriminator := ""

	for _, c := range classes {
		switch {
		case c.FieldTag.IsSubjectScoped():
			scoped[c.FieldTag] = true
		case c.FieldTag == model.TagTotalScore || c.FieldTag == model.TagTotalGrade:
			aggregate[c.FieldTag] = true
		case c.FieldTag == model.TagSubject && discriminator == "":
			discriminator = c.Header
		}
	}

	if len(scoped) >= WideSubjectThreshold {
		return model.StructureDecision{Kind: model.StructureWide}
	}
	if discriminator != "" {
		return model.StructureDecision{Kind: model.StructureLong, Discriminator: discriminator}
	}
	if len(scoped) > 0 && len(scoped)+len(aggregate) >= WideSubjectThreshold {
		return model.StructureDecision{Kind: model.StructureWide}
	}
	return model.StructureDecision{Kind: model.StructureMixed}
}
