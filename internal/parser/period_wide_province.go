package parser

import (
	"strings"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// 非省份的保留列名
var periodExcludedCols = map[string]bool{
	"指标": true, "指标类型": true, "项目": true, "日期": true, "时间": true, "周期": true,
}

// 全国汇总伪省份列
var nationCols = map[string]bool{
	"全国": true, "全国1": true, "全国2": true, "中国": true, "NATION": true,
}

func isNationCol(name string) bool {
	if nationCols[name] {
		return true
	}
	return strings.HasPrefix(name, "全国") && len([]rune(name)) <= 10
}

// 像省份名的列：短名称且不含重量段词汇
func looksLikeProvinceCol(name string) bool {
	if name == "" || len([]rune(name)) > 10 {
		return false
	}
	if strings.Contains(name, "以下") || strings.Contains(name, "以上") {
		return false
	}
	return !strings.Contains(strings.ToLower(name), "kg")
}

// ParsePeriodWideProvince 解析周期起止 + 省份列的宽表（周度/月度）。
// 全国/全国1/全国2 等汇总列单独识别为 NATION，不混入省份。
// 省份列靠启发式名称判断识别，产出观测带低置信地理标记。
func ParsePeriodWideProvince(in Input) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	headerRow := cfg.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	startCol := g.FindColumnAny(headerRow, cfg.StartCol)
	endCol := g.FindColumnAny(headerRow, cfg.EndCol)
	if startCol == 0 || endCol == 0 {
		errs = append(errs, rowErrf(headerRow, cfg.StartCol+"/"+cfg.EndCol, model.ErrMissingRequired,
			"未找到周期起止列 (%q, %q)", cfg.StartCol, cfg.EndCol))
		return obs, errs
	}

	rowDimCol := 0
	if cfg.RowDimCol != "" {
		rowDimCol = g.FindColumnAny(headerRow, cfg.RowDimCol)
	}

	type geoCol struct {
		col    int
		name   string
		nation bool
	}
	var geoCols []geoCol
	for c := endCol + 1; c <= g.Cols(); c++ {
		name := g.Cell(headerRow, c)
		if name == "" || periodExcludedCols[name] || (rowDimCol != 0 && c == rowDimCol) {
			continue
		}
		if isNationCol(name) {
			geoCols = append(geoCols, geoCol{col: c, name: name, nation: true})
			continue
		}
		if looksLikeProvinceCol(name) {
			geoCols = append(geoCols, geoCol{col: c, name: name})
		}
	}
	if len(geoCols) == 0 {
		errs = append(errs, rowErrf(headerRow, "", model.ErrMissingRequired, "周期列右侧未识别到省份或全国列"))
		return obs, errs
	}

	tpl := cfg.MetricTemplate
	metricName := tpl.MetricName
	if metricName == "" {
		metricName = tpl.MetricKey
	}
	pt := in.DefaultPeriod
	if pt == "" {
		pt = model.PeriodWeek
	}

	for r := headerRow + 1; r <= g.Rows(); r++ {
		endCell := g.Cell(r, endCol)
		if endCell == "" {
			continue
		}
		start, end, err := ParsePeriod(g.Cell(r, startCol), endCell)
		if err != nil {
			errs = append(errs, rowErrf(r, cfg.EndCol, model.ErrDateUnparseable, "%v", err))
			continue
		}

		// 行维度（指标名等）经映射表归一化，并可决定单位
		indicator := ""
		if rowDimCol != 0 {
			indicator = g.Cell(r, rowDimCol)
			if mapped, ok := cfg.IndicatorMapping[indicator]; ok {
				mapped = strings.TrimSpace(mapped)
				if mapped != "" {
					indicator = mapped
				}
			}
		}
		unit := tpl.Unit
		if indicator != "" {
			if u, ok := cfg.IndicatorUnits[indicator]; ok {
				unit = u
			}
		}

		for _, gc := range geoCols {
			value, raw := CleanNumeric(g.Cell(r, gc.col))
			if value == nil && raw == "" {
				continue
			}
			tags := cloneTags(tpl.Tags)
			if indicator != "" {
				tags["indicator"] = indicator
			}
			geo := gc.name
			if gc.nation {
				geo = "NATION"
				tags["province"] = "NATION"
				tags["nation_col"] = gc.name
			} else {
				tags["province"] = gc.name
			}
			o := model.Observation{
				MetricKey:   tpl.MetricKey,
				MetricName:  metricName,
				PeriodType:  pt,
				PeriodStart: start,
				PeriodEnd:   end,
				Value:       value,
				RawValue:    raw,
				GeoCode:     geo,
				GeoGuessed:  !gc.nation && !IsKnownProvince(gc.name),
				Unit:        unit,
				Tags:        tags,
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}
