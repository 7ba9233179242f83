package model

// FileKind 文件类型
type FileKind string

const (
	FileKindUnknown     FileKind = ""
	FileKindDelimited   FileKind = "delimited"
	FileKindSpreadsheet FileKind = "spreadsheet"
)

// RawGrid 原始表格：表头 + 数据行，读取后不再修改
type RawGrid struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"-"`
	HeaderRows int        `json:"headerRows"` // 表头占用行数（多级表头合并时为 2）
	SheetName  string     `json:"sheetName,omitempty"`
	Caption    string     `json:"caption,omitempty"` // 表头上方的标题行
}

// Cell 安全读取单元格
func (g *RawGrid) Cell(row, col int) string {
	if g == nil || row < 0 || row >= len(g.Rows) {
		return ""
	}
	r := g.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// ColumnSamples 取某列前 limit 个非空值
func (g *RawGrid) ColumnSamples(col, limit int) []string {
	out := make([]string, 0, limit)
	if g == nil {
		return out
	}
	for i := range g.Rows {
		if len(out) >= limit {
			break
		}
		v := g.Cell(i, col)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
