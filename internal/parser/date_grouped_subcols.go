package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

type dateGroup struct {
	date     time.Time
	colStart int
	colEnd   int
	subcols  []string
}

// ParseDateGroupedSubcols 解析日期跨列 + 子列的宽表：
// 日期行经合并单元格展开后按连续相同值切分成组，组内子列来自子表头行。
// 行维度列（省份等）随每条观测进入 tags。
func ParseDateGroupedSubcols(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	dataStart := cfg.DataStartRow
	if dataStart <= 0 {
		dataStart = cfg.SubHeaderRow + 1
	}

	groups, groupErrs := extractDateGroups(g, cfg.DateRow, cfg.SubHeaderRow)
	errs = append(errs, groupErrs...)
	if len(groups) == 0 {
		errs = append(errs, rowErrf(cfg.DateRow, "", model.ErrMissingRequired, "日期行未识别到任何日期组"))
		return obs, errs
	}

	tpl := cfg.MetricTemplate

	for r := dataStart; r <= g.Rows(); r++ {
		// 行维度（合并单元格已展开为主值）
		rowDims := map[string]string{}
		for _, dim := range cfg.RowDims {
			if v := g.Cell(r, dim.Col); v != "" {
				rowDims[dim.Key] = v
			}
		}

		for _, grp := range groups {
			for i, subName := range grp.subcols {
				c := grp.colStart + i
				if c > grp.colEnd {
					break
				}
				value, raw := CleanNumeric(g.Cell(r, c))
				if value == nil && raw == "" {
					continue
				}

				tags := map[string]string{}
				if tpl != nil {
					for k, v := range tpl.Tags {
						tags[k] = v
					}
				}
				for k, v := range rowDims {
					tags[k] = v
				}
				for k, v := range ExtractTags(subName) {
					tags[k] = v
				}
				if subName != "" {
					tags["subheader"] = subName
				}

				metricKey, metricName, unit := "", subName, ""
				if tpl != nil {
					metricKey, metricName, unit = tpl.MetricKey, tpl.MetricName, tpl.Unit
					if metricName == "" {
						metricName = subName
					}
				}
				if metricKey == "" {
					metricKey = deriveMetricKey(g.SheetName, subName)
				}

				geo := rowDims["province"]
				if geo == "" {
					geo = "NATION"
				}
				d := grp.date
				o := model.Observation{
					MetricKey:  metricKey,
					MetricName: metricName,
					PeriodType: model.PeriodDay,
					ObsDate:    &d,
					Value:      value,
					RawValue:   raw,
					GeoCode:    geo,
					Unit:       unit,
					Tags:       tags,
				}
				obs = append(obs, in.finish(o))
			}
		}
	}
	return obs, errs
}

// extractDateGroups 切分日期分组列结构。日期行相邻的相同取值（来自合并单元格展开）
// 属于同一组；年份越界的日期整组丢弃并记录。
func extractDateGroups(g *Grid, dateRow, subHeaderRow int) ([]dateGroup, []RowError) {
	var groups []dateGroup
	var errs []RowError
	currentRaw := ""
	var current *dateGroup

	flush := func() {
		if current != nil {
			groups = append(groups, *current)
			current = nil
		}
	}

	for c := 1; c <= g.Cols(); c++ {
		raw := g.Cell(dateRow, c)
		sub := g.Cell(subHeaderRow, c)

		if raw != "" && raw != currentRaw {
			flush()
			currentRaw = raw
			d, err := ParseObsDate(raw)
			if err != nil {
				typ := model.ErrDateUnparseable
				if errors.Is(err, ErrYearOutOfRange) {
					typ = model.ErrOutOfRange
				}
				errs = append(errs, rowErrf(dateRow, raw, typ, "%v", err))
				continue
			}
			current = &dateGroup{date: d, colStart: c, colEnd: c}
		}
		if current != nil && raw == currentRaw {
			current.colEnd = c
			current.subcols = append(current.subcols, sub)
		}
	}
	flush()
	return groups, errs
}

func deriveMetricKey(sheetName, subName string) string {
	key := sheetName
	if subName != "" {
		key += "_" + subName
	}
	return strings.ToUpper(strings.ReplaceAll(key, " ", "_"))
}
