package model

// SubjectResult 单科成绩
type SubjectResult struct {
	Score        *float64 `json:"score,omitempty"`
	Grade        string   `json:"grade,omitempty"`
	RankInClass  *int     `json:"rankInClass,omitempty"`
	RankInGrade  *int     `json:"rankInGrade,omitempty"`
	RankInSchool *int     `json:"rankInSchool,omitempty"`
}

// IsEmpty 是否没有任何取值
func (r *SubjectResult) IsEmpty() bool {
	return r == nil || (r.Score == nil && r.Grade == "" && r.RankInClass == nil && r.RankInGrade == nil && r.RankInSchool == nil)
}

// ExamInfo 考试信息
type ExamInfo struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Date       string `json:"date"`
	Scope      string `json:"scope"`
	GradeLevel string `json:"gradeLevel,omitempty"`
}

// NoteUnparsableValue 数值单元格无法解析的提示代码
const NoteUnparsableValue = "unparsable-value"

// AssemblyNote 组装阶段产生的非致命提示，由校验引擎转为 info 级问题
type AssemblyNote struct {
	Code    string   `json:"code"`
	Field   FieldTag `json:"field"`
	Message string   `json:"message"`
}

// CanonicalRecord 标准化学生成绩记录（每个学生每场考试一条）
type CanonicalRecord struct {
	Ref string `json:"ref"`

	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	ClassName string `json:"className"`

	Subjects map[Subject]*SubjectResult `json:"subjects"`

	TotalScore   *float64 `json:"totalScore,omitempty"`
	TotalGrade   string   `json:"totalGrade,omitempty"`
	RankInClass  *int     `json:"rankInClass,omitempty"`
	RankInGrade  *int     `json:"rankInGrade,omitempty"`
	RankInSchool *int     `json:"rankInSchool,omitempty"`

	Exam ExamInfo `json:"exam"`

	SourceRows []int          `json:"sourceRows"`
	Notes      []AssemblyNote `json:"notes,omitempty"`
}

// Subject 获取（必要时创建）单科成绩
func (r *CanonicalRecord) Subject(s Subject) *SubjectResult {
	if r.Subjects == nil {
		r.Subjects = make(map[Subject]*SubjectResult)
	}
	res, ok := r.Subjects[s]
	if !ok {
		res = &SubjectResult{}
		r.Subjects[s] = res
	}
	return res
}

// SubjectScore 读取单科分数
func (r *CanonicalRecord) SubjectScore(s Subject) (float64, bool) {
	res, ok := r.Subjects[s]
	if !ok || res.Score == nil {
		return 0, false
	}
	return *res.Score, true
}

// Identity 学生身份键：优先学号，其次姓名
func (r *CanonicalRecord) Identity() string {
	if r.StudentID != "" {
		return "id:" + r.StudentID
	}
	if r.Name != "" {
		return "name:" + r.Name
	}
	return ""
}

// Clone 深拷贝（用于自动修复，不修改原记录）
func (r *CanonicalRecord) Clone() *CanonicalRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.TotalScore = cloneFloat(r.TotalScore)
	out.RankInClass = cloneInt(r.RankInClass)
	out.RankInGrade = cloneInt(r.RankInGrade)
	out.RankInSchool = cloneInt(r.RankInSchool)
	out.SourceRows = append([]int(nil), r.SourceRows...)
	out.Notes = append([]AssemblyNote(nil), r.Notes...)
	if r.Subjects != nil {
		out.Subjects = make(map[Subject]*SubjectResult, len(r.Subjects))
		for s, res := range r.Subjects {
			out.Subjects[s] = &SubjectResult{
				Score:        cloneFloat(res.Score),
				Grade:        res.Grade,
				RankInClass:  cloneInt(res.RankInClass),
				RankInGrade:  cloneInt(res.RankInGrade),
				RankInSchool: cloneInt(res.RankInSchool),
			}
		}
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float 返回指针，便于构造记录
func Float(v float64) *float64 { return &v }

// Int 返回指针，便于构造记录
func Int(v int) *int { return &v }
