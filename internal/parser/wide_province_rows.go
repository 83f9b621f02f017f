package parser

import (
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// ParseWideProvinceRows 解析宽表：省份行 × 日期列，unpivot 成逐条观测。
// 日期列通过对表头逐列尝试日期解析自动识别。
func ParseWideProvinceRows(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	headerRow := cfg.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	provColName := cfg.ProvinceCol
	if provColName == "" {
		provColName = "省份"
	}
	provCol := g.FindColumnAny(headerRow, provColName)
	if provCol == 0 {
		errs = append(errs, rowErrf(headerRow, provColName, model.ErrMissingRequired,
			"未找到省份列 %q", provColName))
		return obs, errs
	}

	tpl := cfg.MetricTemplate
	name := tpl.MetricName
	if name == "" {
		name = tpl.MetricKey
	}

	// 省份列右侧的表头逐列尝试日期解析
	type dateCol struct {
		col  int
		date time.Time
	}
	var dateCols []dateCol
	for c := provCol + 1; c <= g.Cols(); c++ {
		head := g.Cell(headerRow, c)
		if head == "" {
			continue
		}
		// 非日期表头（备注列等）不属于数据区，直接略过
		d, err := ParseObsDate(head)
		if err != nil {
			continue
		}
		dateCols = append(dateCols, dateCol{col: c, date: d})
	}
	if len(dateCols) == 0 {
		errs = append(errs, rowErrf(headerRow, "", model.ErrMissingRequired, "省份列右侧未识别到日期列"))
		return obs, errs
	}

	for r := headerRow + 1; r <= g.Rows(); r++ {
		province := g.Cell(r, provCol)
		if province == "" {
			continue
		}
		for _, dc := range dateCols {
			value, raw := CleanNumeric(g.Cell(r, dc.col))
			if value == nil && raw == "" {
				continue
			}
			d := dc.date
			tags := cloneTags(tpl.Tags)
			tags["province"] = province
			o := model.Observation{
				MetricKey:  tpl.MetricKey,
				MetricName: name,
				PeriodType: model.PeriodDay,
				ObsDate:    &d,
				Value:      value,
				RawValue:   raw,
				GeoCode:    province,
				Unit:       tpl.Unit,
				Tags:       tags,
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}
