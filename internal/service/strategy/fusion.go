package strategy

import (
	"math"

	"scoreintake/internal/model"
)

const agreementBoost = 0.05

// fillUnmapped 规则为主：外部结果只补充未识别字段
func fillUnmapped(det []model.HeaderClassification, ext *externalResult) []model.HeaderClassification {
	out := cloneClasses(det)
	for i, c := range out {
		if c.Mapped() {
			continue
		}
		if tag, ok := ext.Tags[c.Header]; ok {
			out[i].FieldTag = tag
			out[i].Confidence = round2(ext.Confidences[c.Header])
			out[i].Evidence = "external"
		}
	}
	return out
}

// fuseHybrid 混合：一致则提升置信度；仅一方有结果取该方；冲突以外部为准并记录分歧
func fuseHybrid(det []model.HeaderClassification, ext *externalResult) ([]model.HeaderClassification, []model.Disagreement) {
	out := cloneClasses(det)
	var disagreements []model.Disagreement
	for i, c := range out {
		tag, ok := ext.Tags[c.Header]
		if !ok {
			continue
		}
		extConf := ext.Confidences[c.Header]
		switch {
		case !c.Mapped():
			out[i].FieldTag = tag
			out[i].Confidence = round2(extConf)
			out[i].Evidence = "external"
		case c.FieldTag == tag:
			out[i].Confidence = round2(math.Min(0.99, math.Max(c.Confidence, extConf)+agreementBoost))
			out[i].Evidence = c.Evidence + "+external"
		default:
			disagreements = append(disagreements, model.Disagreement{
				Header:        c.Header,
				Deterministic: c.FieldTag,
				External:      tag,
			})
			out[i].FieldTag = tag
			out[i].Confidence = round2(extConf)
			out[i].Evidence = "external(override " + string(c.FieldTag) + ")"
		}
	}
	return out, disagreements
}

// fuseSemantic 语义为主：以外部结果为准，规则结果一致时略微提升置信度
func fuseSemantic(det []model.HeaderClassification, ext *externalResult) ([]model.HeaderClassification, []model.Disagreement) {
	out := make([]model.HeaderClassification, len(det))
	var disagreements []model.Disagreement
	for i, c := range det {
		out[i] = model.HeaderClassification{Header: c.Header}
		tag, ok := ext.Tags[c.Header]
		if !ok {
			continue
		}
		extConf := ext.Confidences[c.Header]
		out[i].FieldTag = tag
		out[i].Confidence = round2(extConf)
		out[i].Evidence = "external"
		switch {
		case c.FieldTag == tag:
			out[i].Confidence = round2(math.Min(0.99, extConf+c.Confidence*0.1))
			out[i].Evidence = "external+" + c.Evidence
		case c.Mapped():
			disagreements = append(disagreements, model.Disagreement{
				Header:        c.Header,
				Deterministic: c.FieldTag,
				External:      tag,
			})
		}
	}
	return out, disagreements
}

// resolveConflicts 每个标签只保留一个表头：置信度高者胜，同分取靠前列；
// 落选表头置为未识别并逐一返回
func resolveConflicts(classes []model.HeaderClassification) ([]model.HeaderClassification, []model.HeaderConflict) {
	winner := make(map[model.FieldTag]int)
	for i, c := range classes {
		if !c.Mapped() {
			continue
		}
		j, ok := winner[c.FieldTag]
		if !ok || c.Confidence > classes[j].Confidence {
			winner[c.FieldTag] = i
		}
	}
	out := cloneClasses(classes)
	var conflicts []model.HeaderConflict
	for i, c := range out {
		if !c.Mapped() || winner[c.FieldTag] == i {
			continue
		}
		w := classes[winner[c.FieldTag]].Header
		out[i] = model.HeaderClassification{
			Header:   c.Header,
			Evidence: "conflict:" + w,
		}
		conflicts = append(conflicts, model.HeaderConflict{Header: c.Header, Winner: w, Tag: c.FieldTag})
	}
	return out, conflicts
}
