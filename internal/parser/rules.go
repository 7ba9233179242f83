package parser

import (
	"regexp"
	"strings"

	"scoreintake/internal/model"
)

// FieldRule 字段识别规则
//
// Compound 规则需同时命中 Patterns 与 Qualifier，按表顺序命中即返回；
// 其余规则按 Weight 累计得分，得分最高的标签胜出。
type FieldRule struct {
	Tag       model.FieldTag
	Patterns  []string
	Qualifier string
	Weight    int
	Compound  bool

	re  *regexp.Regexp
	qre *regexp.Regexp
}

// Match 返回是否命中，以及是否整串命中
func (r *FieldRule) Match(header string) (matched, exact bool) {
	loc := r.re.FindStringIndex(header)
	if loc == nil {
		return false, false
	}
	if r.qre != nil && !r.qre.MatchString(header) {
		return false, false
	}
	return true, !r.Compound && loc[0] == 0 && loc[1] == len(header)
}

func compileRule(r FieldRule) FieldRule {
	r.re = regexp.MustCompile(strings.Join(r.Patterns, "|"))
	if r.Qualifier != "" {
		r.qre = regexp.MustCompile(r.Qualifier)
	}
	return r
}

// 科目关键词（仅多字词；单字简称只用于内容兜底）
var subjectKeywords = map[model.Subject][]string{
	model.SubjectChinese:   {"语文", "chinese", "yuwen"},
	model.SubjectMath:      {"数学", "math", "shuxue"},
	model.SubjectEnglish:   {"英语", "english", "yingyu"},
	model.SubjectPhysics:   {"物理", "physics", "wuli"},
	model.SubjectChemistry: {"化学", "chemistry", "huaxue"},
	model.SubjectBiology:   {"生物", "biology", "shengwu"},
	model.SubjectPolitics:  {"政治", "道法", "道德与法治", "道德法治", "思政", "思想政治", "德育", "politics", "zhengzhi"},
	model.SubjectHistory:   {"历史", "history", "lishi"},
	model.SubjectGeography: {"地理", "geography", "dili"},

	model.SubjectLiberalArts: {"文综", "文科综合", "liberalarts", "liberal_arts", "wenzong"},
	model.SubjectSciences:    {"理综", "理科综合", "sciences", "lizong"},
	model.SubjectIT:          {"信息技术", "信息科技", "计算机", "computer", "xinxi"},
	model.SubjectPE:          {"体育", "physicaleducation", "physical_education", "tiyu"},
	model.SubjectMusic:       {"音乐", "music", "yinyue"},
	model.SubjectArt:         {"美术", "fineart", "fine_art", "meishu"},
}

// 单字简称：语 数 英 ...（其余科目无简称）
var subjectAbbreviations = map[model.Subject]string{
	model.SubjectChinese:   "语",
	model.SubjectMath:      "数",
	model.SubjectEnglish:   "英",
	model.SubjectPhysics:   "物",
	model.SubjectChemistry: "化",
	model.SubjectBiology:   "生",
	model.SubjectPolitics:  "政",
	model.SubjectHistory:   "史",
	model.SubjectGeography: "地",
}

// 限定词（科目/总分 + 限定词 => 排名或等级）
// 班级排名须先于年级排名判断："班级排名" 中包含 "级排"
var qualifierPatterns = []struct {
	Kind    model.FieldKind
	Pattern string
}{
	{model.KindRankInClass, `班级排名|班排名|班内排名|班级名次|班名次|班内名次|班排|班名$|class_?rank|rank_?in_?class`},
	{model.KindRankInGrade, `年级排名|年级名次|级内排名|级排名|级名次|年排|级排|级名$|grade_?rank|rank_?in_?grade`},
	{model.KindRankInSchool, `学校排名|全校排名|全校名次|校名次|校排|校名$|school_?rank|rank_?in_?school`},
	// 未注明范围的排名按班级排名处理
	{model.KindRankInClass, `排名|名次|^rank|rank$`},
	{model.KindGrade, `等级|等第|级别|档次|评级|grade`},
}

var totalKeywords = []string{"总分", "总成绩", "total"}

var aggregateTags = map[model.FieldKind]model.FieldTag{
	model.KindRankInClass:  model.TagRankInClass,
	model.KindRankInGrade:  model.TagRankInGrade,
	model.KindRankInSchool: model.TagRankInSchool,
	model.KindGrade:        model.TagTotalGrade,
}

// DefaultRules 默认规则表（按评估顺序）
func DefaultRules() []FieldRule {
	var rules []FieldRule

	// 1. 科目 + 限定词
	for _, s := range model.Subjects {
		for _, q := range qualifierPatterns {
			rules = append(rules, FieldRule{
				Tag:       model.SubjectTag(s, q.Kind),
				Patterns:  subjectKeywords[s],
				Qualifier: q.Pattern,
				Compound:  true,
			})
		}
	}

	// 2. 总分 + 限定词
	for _, q := range qualifierPatterns {
		rules = append(rules, FieldRule{
			Tag:       aggregateTags[q.Kind],
			Patterns:  totalKeywords,
			Qualifier: q.Pattern,
			Compound:  true,
		})
	}

	// 3. 单独的排名短语
	for _, q := range qualifierPatterns {
		if q.Kind == model.KindGrade {
			continue
		}
		rules = append(rules, FieldRule{
			Tag:       aggregateTags[q.Kind],
			Patterns:  []string{q.Pattern},
			Qualifier: q.Pattern,
			Compound:  true,
		})
	}
	rules = append(rules, FieldRule{
		Tag:       model.TagTotalGrade,
		Patterns:  []string{`总等级|总评等级|综合等级|^总评$`},
		Qualifier: `.`,
		Compound:  true,
	})

	// 4. 计分规则
	rules = append(rules,
		FieldRule{Tag: model.TagStudentID, Weight: 90, Patterns: []string{
			`学号`, `考号`, `准考证号`, `考生号`, `学籍号`, `学生编号`, `报名号`, `student_?id`, `^id$`, `^编号$`,
		}},
		FieldRule{Tag: model.TagName, Weight: 90, Patterns: []string{
			`姓名`, `名字`, `^name$`, `student_?name`, `fullname`, `^学生$`, `^考生$`,
		}},
		FieldRule{Tag: model.TagClassName, Weight: 85, Patterns: []string{
			`班级`, `^班$`, `行政班`, `教学班`, `class_?name`, `^class$`, `class_?id`,
		}},
		FieldRule{Tag: model.TagExamTitle, Weight: 80, Patterns: []string{
			`考试名称`, `考试标题`, `exam_?title`, `exam_?name`,
		}},
		FieldRule{Tag: model.TagExamType, Weight: 80, Patterns: []string{
			`考试类型`, `考试类别`, `exam_?type`,
		}},
		FieldRule{Tag: model.TagExamDate, Weight: 80, Patterns: []string{
			`考试日期`, `考试时间`, `^日期$`, `exam_?date`, `^date$`,
		}},
		FieldRule{Tag: model.TagSubject, Weight: 85, Patterns: []string{
			`^科目$`, `^学科$`, `科目名称`, `^subject$`, `^课程$`, `课程名称`,
		}},
		FieldRule{Tag: model.TagScore, Weight: 50, Patterns: []string{
			`^分数$`, `^成绩$`, `^得分$`, `^分值$`, `^score$`,
		}},
	)
	for _, s := range model.Subjects {
		rules = append(rules, FieldRule{
			Tag:      model.SubjectTag(s, model.KindScore),
			Weight:   60,
			Patterns: subjectKeywords[s],
		})
	}
	rules = append(rules,
		// 总分权重低于单科，"数学总分" 归为数学分数
		FieldRule{Tag: model.TagTotalScore, Weight: 40, Patterns: []string{
			`总分`, `总成绩`, `合计`, `总计`, `^total`, `^sum$`,
		}},
	)

	for i := range rules {
		rules[i] = compileRule(rules[i])
	}
	return rules
}

// DetectSubject 从表头中识别科目；allowAbbrev 时允许单字简称
func DetectSubject(header string, allowAbbrev bool) (model.Subject, bool) {
	for _, s := range model.Subjects {
		if ContainsAny(header, subjectKeywords[s]) {
			return s, true
		}
	}
	if !allowAbbrev {
		return "", false
	}
	for _, s := range model.Subjects {
		if abbr := subjectAbbreviations[s]; abbr != "" && strings.Contains(header, abbr) {
			return s, true
		}
	}
	return "", false
}

// DetectSubjectValue 识别长表科目列中的取值（如 "语文"、"数"、"Math"、"PE"）
func DetectSubjectValue(value string) (model.Subject, bool) {
	v := NormalizeHeader(value)
	if v == "" {
		return "", false
	}
	if s, ok := DetectSubject(v, false); ok {
		return s, true
	}
	for _, s := range model.Subjects {
		if v == subjectAbbreviations[s] || v == string(s) {
			return s, true
		}
	}
	return "", false
}
