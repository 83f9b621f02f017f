package parser

import (
	"errors"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// ParseNarrowDateRows 解析窄表：一个日期列 + 若干指标列。
// 同名列通过 use_col_occurrence 指定取第 N 次出现。
func ParseNarrowDateRows(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	headerRow := cfg.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	dateColName := cfg.DateCol
	if dateColName == "" {
		dateColName = "日期"
	}
	dateCol := g.FindColumnAny(headerRow, dateColName)
	if dateCol == 0 {
		errs = append(errs, rowErrf(headerRow, dateColName, model.ErrMissingRequired,
			"未找到日期列 %q", dateColName))
		return obs, errs
	}

	type boundMetric struct {
		col int
		m   *model.Observation // 模板
	}
	var bound []boundMetric
	for i := range cfg.Metrics {
		mc := &cfg.Metrics[i]
		col := g.FindColumn(headerRow, mc.Col, mc.UseColOccurrence)
		if col == 0 {
			occ := mc.UseColOccurrence
			if occ <= 0 {
				occ = 1
			}
			errs = append(errs, rowErrf(headerRow, mc.Col, model.ErrMissingRequired,
				"未找到指标列 %q (第%d次出现)", mc.Col, occ))
			continue
		}
		name := mc.MetricName
		if name == "" {
			name = mc.MetricKey
		}
		bound = append(bound, boundMetric{col: col, m: &model.Observation{
			MetricKey:  mc.MetricKey,
			MetricName: name,
			Unit:       mc.Unit,
			Tags:       mc.Tags,
		}})
	}

	for r := headerRow + 1; r <= g.Rows(); r++ {
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
			errs = append(errs, rowErrf(r, dateColName, typ, "%v", err))
			continue
		}

		for _, b := range bound {
			value, raw := CleanNumeric(g.Cell(r, b.col))
			if value == nil && raw == "" {
				continue
			}
			o := model.Observation{
				MetricKey:  b.m.MetricKey,
				MetricName: b.m.MetricName,
				PeriodType: model.PeriodDay,
				ObsDate:    &d,
				Value:      value,
				RawValue:   raw,
				GeoCode:    "NATION",
				Unit:       b.m.Unit,
				Tags:       cloneTags(b.m.Tags),
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}

func cloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
