package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// ParseDeliveryCityMatrix 解析交割地市矩阵：
// 第 1 列为省份分组标记（合并单元格），第 2 列为城市，
// 城市与日期列之间为逐城市的元数据列（升贴水、交易均重等），
// 日期表头位于省份分组行，数据区为 城市 × 日期。
func ParseDeliveryCityMatrix(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	dateHeaderRow := cfg.ProvinceGroupRow
	if dateHeaderRow <= 0 {
		dateHeaderRow = 1
	}

	// 日期列
	type dateCol struct {
		col  int
		date time.Time
	}
	var dateCols []dateCol
	for c := cfg.DateStartCol; c <= g.Cols(); c++ {
		head := g.Cell(dateHeaderRow, c)
		if head == "" {
			continue
		}
		d, err := ParseObsDate(head)
		if err != nil {
			typ := model.ErrDateUnparseable
			if errors.Is(err, ErrYearOutOfRange) {
				typ = model.ErrOutOfRange
			}
			errs = append(errs, rowErrf(dateHeaderRow, head, typ, "%v", err))
			continue
		}
		dateCols = append(dateCols, dateCol{col: c, date: d})
	}
	if len(dateCols) == 0 {
		errs = append(errs, rowErrf(dateHeaderRow, "", model.ErrMissingRequired, "未识别到日期列"))
		return obs, errs
	}

	// 元数据列：城市列与日期区之间，标签取自元数据标签行的首个非空值
	type metaCol struct {
		col   int
		label string
	}
	var metaCols []metaCol
	for c := 3; c < cfg.DateStartCol; c++ {
		label := ""
		for r := cfg.MetaStartRow; r <= cfg.MetaEndRow && label == ""; r++ {
			label = g.Cell(r, c)
		}
		if label != "" {
			metaCols = append(metaCols, metaCol{col: c, label: strings.ToLower(label)})
		}
	}

	tpl := cfg.MetricTemplate
	currentProvince := ""
	for r := cfg.CityStartRow; r <= g.Rows(); r++ {
		if p := g.Cell(r, 1); p != "" {
			currentProvince = p
		}
		city := g.Cell(r, 2)
		if city == "" || currentProvince == "" {
			continue
		}

		meta := map[string]string{}
		for _, mc := range metaCols {
			if v := g.Cell(r, mc.col); v != "" {
				meta[mc.label] = v
			}
		}

		for _, dc := range dateCols {
			value, raw := CleanNumeric(g.Cell(r, dc.col))
			if value == nil && raw == "" {
				continue
			}

			tags := map[string]string{}
			if tpl != nil {
				for k, v := range tpl.Tags {
					tags[k] = v
				}
			}
			tags["province"] = currentProvince
			tags["city"] = city
			for k, v := range meta {
				tags[k] = v
			}

			metricKey, metricName, unit := "", city+"出栏价", ""
			if tpl != nil {
				metricKey, unit = tpl.MetricKey, tpl.Unit
				if tpl.MetricName != "" {
					metricName = tpl.MetricName
				}
			}
			if metricKey == "" {
				metricKey = deriveMetricKey(g.SheetName, city)
			}

			d := dc.date
			o := model.Observation{
				MetricKey:  metricKey,
				MetricName: metricName,
				PeriodType: model.PeriodDay,
				ObsDate:    &d,
				Value:      value,
				RawValue:   raw,
				GeoCode:    city,
				Unit:       unit,
				Tags:       tags,
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}
