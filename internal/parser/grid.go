package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type mergeKey struct {
	row, col int
}

// Grid Sheet 单元格网格。一次性读入内存，合并单元格预先解析为
// (行,列)→主值映射，解析器不再接触 Excel 文件本身。
type Grid struct {
	SheetName string

	rows   [][]string
	merged map[mergeKey]string
	maxCol int
}

// NewGrid 从行数据创建网格
func NewGrid(sheetName string, rows [][]string) *Grid {
	maxCol := 0
	for _, r := range rows {
		if len(r) > maxCol {
			maxCol = len(r)
		}
	}
	return &Grid{
		SheetName: sheetName,
		rows:      rows,
		merged:    make(map[mergeKey]string),
		maxCol:    maxCol,
	}
}

// NewGridFromFile 从已打开的 Excel 文件读取单个 sheet，
// 包含合并单元格范围的主值展开。
func NewGridFromFile(f *excelize.File, sheetName string) (*Grid, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("读取 sheet %q 失败: %w", sheetName, err)
	}
	g := NewGrid(sheetName, rows)

	merges, err := f.GetMergeCells(sheetName)
	if err != nil {
		return nil, fmt.Errorf("读取 sheet %q 合并单元格失败: %w", sheetName, err)
	}
	for _, m := range merges {
		c1, r1, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			continue
		}
		g.SetMerged(r1, c1, r2, c2, m.GetCellValue())
	}
	return g, nil
}

// SetMerged 登记合并区域（1-based，含端点），区域内所有单元格取主值
func (g *Grid) SetMerged(r1, c1, r2, c2 int, value string) {
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			g.merged[mergeKey{r, c}] = value
		}
	}
}

// Cell 取单元格值（1-based），合并区域返回主值，越界返回空串，首尾空白去除
func (g *Grid) Cell(row, col int) string {
	if v, ok := g.merged[mergeKey{row, col}]; ok {
		return strings.TrimSpace(v)
	}
	if row < 1 || row > len(g.rows) {
		return ""
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

// Rows 行数
func (g *Grid) Rows() int {
	return len(g.rows)
}

// Cols 最大列数
func (g *Grid) Cols() int {
	return g.maxCol
}

// Row 取一行（1-based），补齐到最大列宽并去除空白
func (g *Grid) Row(row int) []string {
	out := make([]string, g.maxCol)
	for c := 1; c <= g.maxCol; c++ {
		out[c-1] = g.Cell(row, c)
	}
	return out
}

// FindColumn 在指定行查找列名的第 N 次出现（1-based 列号，0 表示未找到）
func (g *Grid) FindColumn(headerRow int, name string, occurrence int) int {
	if occurrence <= 0 {
		occurrence = 1
	}
	seen := 0
	for c := 1; c <= g.maxCol; c++ {
		if g.Cell(headerRow, c) == name {
			seen++
			if seen == occurrence {
				return c
			}
		}
	}
	return 0
}

// FindColumnAny 支持 "开始日期|起始日期" 形式的多候选列名
func (g *Grid) FindColumnAny(headerRow int, names string) int {
	for _, name := range strings.Split(names, "|") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if c := g.FindColumn(headerRow, name, 1); c > 0 {
			return c
		}
	}
	return 0
}

// HeaderColumns 提取表头列名。优先返回前 5 行中包含常见日期列名的那一行，
// 否则返回第 1 行。用于分派器的结构化匹配。
func (g *Grid) HeaderColumns() []string {
	dateNames := []string{"开始日期", "结束日期", "日期", "起始日期"}
	limit := 5
	if g.Rows() < limit {
		limit = g.Rows()
	}
	for r := 1; r <= limit; r++ {
		row := g.Row(r)
		for _, cell := range row {
			for _, dn := range dateNames {
				if cell == dn {
					return row
				}
			}
		}
	}
	if g.Rows() >= 1 {
		return g.Row(1)
	}
	return nil
}

// HeaderSignature 表头签名：首个非空行的列名拼接，用于 raw 层快照
func (g *Grid) HeaderSignature() string {
	for r := 1; r <= g.Rows() && r <= 5; r++ {
		row := g.Row(r)
		nonEmpty := 0
		for _, c := range row {
			if c != "" {
				nonEmpty++
			}
		}
		if nonEmpty > 0 {
			return strings.Join(row, "|")
		}
	}
	return ""
}
