package parser

import (
	"errors"
	"strings"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// ParseMarketQuoteText 解析自由文本报价表：日期列 + 报价列，
// 单元格常见 "13.0 - 15.2"、"~12.3"、"(涨200)" 等写法，走增强数值清洗。
// 指标按 column_pattern 子串匹配列头绑定，支持双行表头（子表头非空时优先）。
func ParseMarketQuoteText(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	headerRow := cfg.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}

	// 每列生效的表头文本
	headers := make([]string, g.Cols()+1)
	for c := 1; c <= g.Cols(); c++ {
		headers[c] = g.Cell(headerRow, c)
		if cfg.SubHeaderRow > 0 {
			if sub := g.Cell(cfg.SubHeaderRow, c); sub != "" {
				headers[c] = sub
			}
		}
	}

	dateCol := 0
	for c := 1; c <= g.Cols(); c++ {
		if strings.Contains(g.Cell(headerRow, c), "日期") {
			dateCol = c
			break
		}
	}
	if dateCol == 0 {
		errs = append(errs, rowErrf(headerRow, "日期", model.ErrMissingRequired, "未找到日期列"))
		return obs, errs
	}

	// 列 → 指标绑定，一列最多绑定一个指标
	type binding struct {
		col int
		mc  *profileMetricColumn
	}
	var bindings []binding
	bound := make(map[int]bool)
	for i := range cfg.Metrics {
		m := &cfg.Metrics[i]
		pattern := m.ColumnPattern
		if pattern == "" {
			pattern = m.Col
		}
		for c := 1; c <= g.Cols(); c++ {
			if bound[c] || headers[c] == "" {
				continue
			}
			if strings.Contains(headers[c], pattern) {
				bound[c] = true
				name := m.MetricName
				if name == "" {
					name = m.MetricKey
				}
				bindings = append(bindings, binding{col: c, mc: &profileMetricColumn{
					key: m.MetricKey, name: name, unit: m.Unit, tags: m.Tags,
				}})
				break
			}
		}
	}
	if len(bindings) == 0 {
		errs = append(errs, rowErrf(headerRow, "", model.ErrMissingRequired, "没有任何指标匹配到列"))
		return obs, errs
	}

	dataStart := headerRow + 1
	if cfg.SubHeaderRow > dataStart-1 {
		dataStart = cfg.SubHeaderRow + 1
	}
	for r := dataStart; r <= g.Rows(); r++ {
		dateCell := g.Cell(r, dateCol)
		if dateCell == "" {
			continue
		}
		d, err := ParseObsDate(dateCell)
		if err != nil {
			typ := model.ErrDateUnparseable
			if errors.Is(err, ErrYearOutOfRange) {
				typ = model.ErrOutOfRange
			}
			errs = append(errs, rowErrf(r, "日期", typ, "%v", err))
			continue
		}
		for _, b := range bindings {
			value, raw := CleanNumeric(g.Cell(r, b.col))
			if value == nil && raw == "" {
				continue
			}
			day := d
			o := model.Observation{
				MetricKey:  b.mc.key,
				MetricName: b.mc.name,
				PeriodType: model.PeriodDay,
				ObsDate:    &day,
				Value:      value,
				RawValue:   raw,
				Unit:       b.mc.unit,
				Tags:       cloneTags(b.mc.tags),
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}

type profileMetricColumn struct {
	key  string
	name string
	unit string
	tags map[string]string
}
