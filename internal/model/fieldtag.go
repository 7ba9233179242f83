package model

import "strings"

// Subject 科目
type Subject string

const (
	SubjectChinese   Subject = "chinese"
	SubjectMath      Subject = "math"
	SubjectEnglish   Subject = "english"
	SubjectPhysics   Subject = "physics"
	SubjectChemistry Subject = "chemistry"
	SubjectBiology   Subject = "biology"
	SubjectPolitics  Subject = "politics"
	SubjectHistory   Subject = "history"
	SubjectGeography Subject = "geography"

	// 综合科目
	SubjectLiberalArts Subject = "liberal_arts"
	SubjectSciences    Subject = "sciences"

	SubjectIT    Subject = "it"
	SubjectPE    Subject = "pe"
	SubjectMusic Subject = "music"
	SubjectArt   Subject = "art"
)

// Subjects 全部科目（固定顺序，用于确定性输出）
var Subjects = []Subject{
	SubjectChinese,
	SubjectMath,
	SubjectEnglish,
	SubjectPhysics,
	SubjectChemistry,
	SubjectBiology,
	SubjectPolitics,
	SubjectHistory,
	SubjectGeography,
	SubjectLiberalArts,
	SubjectSciences,
	SubjectIT,
	SubjectPE,
	SubjectMusic,
	SubjectArt,
}

var subjectNames = map[Subject]string{
	SubjectChinese:   "语文",
	SubjectMath:      "数学",
	SubjectEnglish:   "英语",
	SubjectPhysics:   "物理",
	SubjectChemistry: "化学",
	SubjectBiology:   "生物",
	SubjectPolitics:  "政治",
	SubjectHistory:   "历史",
	SubjectGeography: "地理",

	SubjectLiberalArts: "文综",
	SubjectSciences:    "理综",
	SubjectIT:          "信息技术",
	SubjectPE:          "体育",
	SubjectMusic:       "音乐",
	SubjectArt:         "美术",
}

var subjectMaxScores = map[Subject]float64{
	SubjectChinese: 150,
	SubjectMath:    150,
	SubjectEnglish: 150,

	SubjectLiberalArts: 300,
	SubjectSciences:    300,
}

// TotalMaxScore 总分满分
const TotalMaxScore = 900.0

// DisplayName 科目中文名
func (s Subject) DisplayName() string {
	if n, ok := subjectNames[s]; ok {
		return n
	}
	return string(s)
}

// MaxScore 科目满分（语数英 150，文综理综 300，其余 100）
func (s Subject) MaxScore() float64 {
	if v, ok := subjectMaxScores[s]; ok {
		return v
	}
	return 100
}

// IsKnown 是否属于固定科目集合
func (s Subject) IsKnown() bool {
	_, ok := subjectNames[s]
	return ok
}

// FieldKind 字段类别
type FieldKind string

const (
	KindNone          FieldKind = ""
	KindIdentity      FieldKind = "identity"
	KindExam          FieldKind = "exam"
	KindDiscriminator FieldKind = "discriminator"
	KindScore         FieldKind = "score"
	KindGrade         FieldKind = "grade"
	KindRankInClass   FieldKind = "rank_in_class"
	KindRankInGrade   FieldKind = "rank_in_grade"
	KindRankInSchool  FieldKind = "rank_in_school"
)

// FieldTag 标准字段标签（封闭词表）
type FieldTag string

const (
	TagNone FieldTag = ""

	TagStudentID FieldTag = "student_id"
	TagName      FieldTag = "name"
	TagClassName FieldTag = "class_name"

	TagExamTitle FieldTag = "exam_title"
	TagExamType  FieldTag = "exam_type"
	TagExamDate  FieldTag = "exam_date"

	// 长表：科目列 + 分数值列
	TagSubject FieldTag = "subject"
	TagScore   FieldTag = "score"

	TagTotalScore FieldTag = "total_score"
	TagTotalGrade FieldTag = "total_grade"

	TagRankInClass  FieldTag = "rank_in_class"
	TagRankInGrade  FieldTag = "rank_in_grade"
	TagRankInSchool FieldTag = "rank_in_school"
)

var scalarTagKinds = map[FieldTag]FieldKind{
	TagStudentID:    KindIdentity,
	TagName:         KindIdentity,
	TagClassName:    KindIdentity,
	TagExamTitle:    KindExam,
	TagExamType:     KindExam,
	TagExamDate:     KindExam,
	TagSubject:      KindDiscriminator,
	TagScore:        KindScore,
	TagTotalScore:   KindScore,
	TagTotalGrade:   KindGrade,
	TagRankInClass:  KindRankInClass,
	TagRankInGrade:  KindRankInGrade,
	TagRankInSchool: KindRankInSchool,
}

// 科目字段后缀，按长度降序匹配
var subjectKindSuffixes = []FieldKind{
	KindRankInSchool,
	KindRankInClass,
	KindRankInGrade,
	KindScore,
	KindGrade,
}

// SubjectTag 构造科目字段标签，如 chinese_score / math_rank_in_class
func SubjectTag(s Subject, k FieldKind) FieldTag {
	return FieldTag(string(s) + "_" + string(k))
}

// Subject 返回科目字段所属科目
func (t FieldTag) Subject() (Subject, bool) {
	s, _, ok := t.splitSubject()
	return s, ok
}

// Kind 返回字段类别
func (t FieldTag) Kind() FieldKind {
	if k, ok := scalarTagKinds[t]; ok {
		return k
	}
	if _, k, ok := t.splitSubject(); ok {
		return k
	}
	return KindNone
}

// IsKnown 是否属于封闭词表
func (t FieldTag) IsKnown() bool {
	return t.Kind() != KindNone
}

// IsSubjectScoped 是否为科目字段
func (t FieldTag) IsSubjectScoped() bool {
	_, _, ok := t.splitSubject()
	return ok
}

// IsRank 是否为排名字段
func (t FieldTag) IsRank() bool {
	switch t.Kind() {
	case KindRankInClass, KindRankInGrade, KindRankInSchool:
		return true
	}
	return false
}

func (t FieldTag) splitSubject() (Subject, FieldKind, bool) {
	s := string(t)
	for _, k := range subjectKindSuffixes {
		suffix := "_" + string(k)
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		subj := Subject(strings.TrimSuffix(s, suffix))
		if subj.IsKnown() {
			return subj, k, true
		}
	}
	return "", KindNone, false
}

// ParseFieldTag 解析外部返回的标签，未知标签返回 TagNone
func ParseFieldTag(s string) FieldTag {
	t := FieldTag(strings.ToLower(strings.TrimSpace(s)))
	if t.IsKnown() {
		return t
	}
	return TagNone
}

// AllFieldTags 全部合法标签（用于外部分类器的枚举约束）
func AllFieldTags() []FieldTag {
	tags := []FieldTag{
		TagStudentID, TagName, TagClassName,
		TagExamTitle, TagExamType, TagExamDate,
		TagSubject, TagScore,
		TagTotalScore, TagTotalGrade,
		TagRankInClass, TagRankInGrade, TagRankInSchool,
	}
	for _, s := range Subjects {
		for _, k := range []FieldKind{KindScore, KindGrade, KindRankInClass, KindRankInGrade, KindRankInSchool} {
			tags = append(tags, SubjectTag(s, k))
		}
	}
	return tags
}
