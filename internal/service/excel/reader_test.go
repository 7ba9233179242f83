package excel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"scoreintake/internal/model"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRead_Spreadsheet(t *testing.T) {
	t.Parallel()

	data := buildWorkbook(t, [][]interface{}{
		{"学号", "姓名", "语文", "数学"},
		{"001", "张三", 120, 130},
		{"002", "李四", 98, 110},
	})

	grid, kind, err := Read(data, ReadOptions{Filename: "期中考试.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, model.FileKindSpreadsheet, kind)
	assert.Equal(t, []string{"学号", "姓名", "语文", "数学"}, grid.Headers)
	require.Len(t, grid.Rows, 2)
	assert.Equal(t, "120", grid.Cell(0, 2))
	assert.Equal(t, 1, grid.HeaderRows)
	assert.Equal(t, "Sheet1", grid.SheetName)
}

func TestRead_DelimitedSkipsBlankRowsAndPads(t *testing.T) {
	t.Parallel()

	csvData := "\xef\xbb\xbf\n\n姓名,科目,分数\n张三,语文,120\n,,\n李四,数学\n\n"
	grid, kind, err := Read([]byte(csvData), ReadOptions{Filename: "scores.csv"})
	require.NoError(t, err)
	assert.Equal(t, model.FileKindDelimited, kind)
	assert.Equal(t, []string{"姓名", "科目", "分数"}, grid.Headers)
	require.Len(t, grid.Rows, 2)
	assert.Equal(t, []string{"李四", "数学", ""}, grid.Rows[1])
}

func TestRead_GBKAndSemicolon(t *testing.T) {
	t.Parallel()

	utf := "姓名;语文;数学\n张三;100;90\n"
	gbk, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(utf))
	require.NoError(t, err)

	grid, _, err := Read(gbk, ReadOptions{Filename: "gbk.csv", Kind: model.FileKindDelimited})
	require.NoError(t, err)
	assert.Equal(t, []string{"姓名", "语文", "数学"}, grid.Headers)
	assert.Equal(t, "张三", grid.Cell(0, 0))
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := Read([]byte("   "), ReadOptions{Filename: "empty.csv"})
	assert.True(t, errors.Is(err, ErrUnreadableFile))

	_, _, err = Read([]byte("姓名,语文\n"), ReadOptions{Filename: "a.csv"})
	assert.True(t, errors.Is(err, ErrNoDataRows))

	_, _, err = Read([]byte("\n,,\n"), ReadOptions{Filename: "a.csv", Kind: model.FileKindDelimited})
	assert.True(t, errors.Is(err, ErrNoHeader))

	_, _, err = Read([]byte{0x00, 0x01, 0x02, 0x03}, ReadOptions{Filename: "a.bin"})
	assert.True(t, errors.Is(err, ErrUnreadableFile))
}

func TestRead_CaptionRow(t *testing.T) {
	t.Parallel()

	data := buildWorkbook(t, [][]interface{}{
		{"2024年高一期中考试成绩单"},
		{"姓名", "语文", "数学"},
		{"张三", 100, 90},
	})
	grid, _, err := Read(data, ReadOptions{Filename: "a.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "2024年高一期中考试成绩单", grid.Caption)
	assert.Equal(t, []string{"姓名", "语文", "数学"}, grid.Headers)
}

func TestRead_MultiRowHeader(t *testing.T) {
	t.Parallel()

	data := buildWorkbook(t, [][]interface{}{
		{"姓名", "班级", "语文", "", "", "数学", ""},
		{"", "", "分数", "等级", "班排", "分数", "等级"},
		{"张三", "高一1班", 120, "A", 3, 130, "A+"},
	})
	grid, _, err := Read(data, ReadOptions{Filename: "a.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, 2, grid.HeaderRows)
	assert.Equal(t, []string{"姓名", "班级", "语文分数", "语文等级", "语文班排", "数学分数", "数学等级"}, grid.Headers)
	require.Len(t, grid.Rows, 1)
}

func TestIsMultiRowHeader_DataRowIsNotHeader(t *testing.T) {
	t.Parallel()

	top := []string{"姓名", "语文", "数学"}
	assert.False(t, isMultiRowHeader(top, []string{"张三", "120", "130"}))
	assert.True(t, isMultiRowHeader(top, []string{"", "分数", "等级"}))
}

func TestMergeHeaderRows_BasicSubHeadersNotPrefixed(t *testing.T) {
	t.Parallel()

	merged := mergeHeaderRows(
		[]string{"基本信息", "", "语文", ""},
		[]string{"学号", "姓名", "成绩", "排名"},
	)
	assert.Equal(t, []string{"学号", "姓名", "语文成绩", "语文排名"}, merged)
}

func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, '\t', detectDelimiter("a\tb\tc\n1\t2\t3"))
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, ',', detectDelimiter("abc"))
}
