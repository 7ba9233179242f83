package excel

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"scoreintake/internal/model"
)

var (
	// ErrUnreadableFile 文件无法解析
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrNoHeader 找不到表头行
	ErrNoHeader = errors.New("no header row")
	// ErrNoDataRows 表头之后没有数据行
	ErrNoDataRows = errors.New("no data rows")
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReadOptions 读取选项
type ReadOptions struct {
	Filename string
	// Kind 调用方声明的类型；为空时自动识别
	Kind model.FileKind
}

// Read 将文件内容读取为原始表格
func Read(data []byte, opts ReadOptions) (*model.RawGrid, model.FileKind, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, model.FileKindUnknown, fmt.Errorf("%w: empty file", ErrUnreadableFile)
	}

	kind := opts.Kind
	if kind == model.FileKindUnknown {
		kind = DetectKind(data, opts.Filename)
	}

	var (
		rows      [][]string
		sheetName string
		err       error
	)
	switch kind {
	case model.FileKindSpreadsheet:
		rows, sheetName, err = readSpreadsheet(data)
	case model.FileKindDelimited:
		rows, err = readDelimited(data)
	default:
		return nil, kind, fmt.Errorf("%w: unsupported file type", ErrUnreadableFile)
	}
	if err != nil {
		return nil, kind, err
	}

	grid, err := buildGrid(rows)
	if err != nil {
		return nil, kind, err
	}
	grid.SheetName = sheetName
	return grid, kind, nil
}

// DetectKind 根据内容识别文件类型，识别不出时参考扩展名
func DetectKind(data []byte, filename string) model.FileKind {
	mt := mimetype.Detect(data)
	if mt.Is(xlsxMIME) {
		return model.FileKindSpreadsheet
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if mt.Is("application/zip") && ext == ".xlsx" {
		return model.FileKindSpreadsheet
	}

	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return model.FileKindDelimited
		}
	}

	switch ext {
	case ".csv", ".tsv", ".txt":
		return model.FileKindDelimited
	case ".xlsx", ".xlsm":
		return model.FileKindSpreadsheet
	}
	return model.FileKindUnknown
}

func readSpreadsheet(data []byte) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to open excel: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	// 取第一个非空工作表
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		if !allBlank(rows) {
			return rows, name, nil
		}
	}
	return nil, "", ErrNoHeader
}

func readDelimited(data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// decodeText 去除 BOM；非 UTF-8 内容按 GB18030 解码（兼容 GBK 导出）
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// detectDelimiter 按首行出现次数选择分隔符
func detectDelimiter(text string) rune {
	first := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		first = text[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func allBlank(rows [][]string) bool {
	for _, r := range rows {
		if !isBlankRow(r) {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func nonEmptyCount(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// buildGrid 定位表头、合并多级表头、对齐数据行
func buildGrid(rows [][]string) (*model.RawGrid, error) {
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}

	start := 0
	for start < len(rows) && isBlankRow(rows[start]) {
		start++
	}
	if start >= len(rows) {
		return nil, ErrNoHeader
	}

	// 标题行：仅一个非空单元格，下一行才是表头
	caption := ""
	if nonEmptyCount(rows[start]) == 1 && start+1 < len(rows) && nonEmptyCount(rows[start+1]) >= 2 {
		for _, c := range rows[start] {
			if c != "" {
				caption = c
			}
		}
		start++
	}

	headers := rows[start]
	if nonEmptyCount(headers) == 0 {
		return nil, ErrNoHeader
	}
	headerRows := 1
	dataStart := start + 1

	if dataStart < len(rows) && isMultiRowHeader(headers, rows[dataStart]) {
		headers = mergeHeaderRows(headers, rows[dataStart])
		headerRows = 2
		dataStart++
	}

	width := len(headers)
	for width > 0 && headers[width-1] == "" {
		width--
	}
	headers = append([]string(nil), headers[:width]...)

	data := make([][]string, 0, len(rows)-dataStart)
	for _, r := range rows[dataStart:] {
		if isBlankRow(r) {
			continue
		}
		row := make([]string, width)
		copy(row, r)
		data = append(data, row)
	}
	if len(data) == 0 {
		return nil, ErrNoDataRows
	}

	return &model.RawGrid{
		Headers:    headers,
		Rows:       data,
		HeaderRows: headerRows,
		Caption:    caption,
	}, nil
}
