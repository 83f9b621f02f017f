package parser

import (
	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// 分组表头中不是省份名的占位列
var nonProvinceSubcols = map[string]bool{
	"较上周": true, "较上期": true, "值": true,
}

// ParsePeriodGroupedCols 解析周期起止 + 分组指标列的宽表。
// 两种形态：
//   - 分组模式（group_size + subheaders）：省份组等宽排列，
//     每个子列按 subheader_index 绑定独立指标模板；
//   - 简单模式：周期列右侧逐列一条观测，维度标签从列名提取。
func ParsePeriodGroupedCols(in Input) ([]model.Observation, []RowError) {
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

	pt := in.DefaultPeriod
	if pt == "" {
		pt = model.PeriodWeek
	}

	if cfg.GroupSize > 0 && len(cfg.Subheaders) > 0 {
		return parseProvinceGroups(in, headerRow, startCol, endCol, pt)
	}

	// 简单模式：逐列即指标分组
	tpl := cfg.MetricTemplate
	metricName := tpl.MetricName
	if metricName == "" {
		metricName = tpl.MetricKey
	}
	type groupCol struct {
		col  int
		name string
		tags map[string]string
	}
	var cols []groupCol
	for c := endCol + 1; c <= g.Cols(); c++ {
		name := g.Cell(headerRow, c)
		if name == "" {
			continue
		}
		cols = append(cols, groupCol{col: c, name: name, tags: ExtractTags(name)})
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
		for _, gc := range cols {
			value, raw := CleanNumeric(g.Cell(r, gc.col))
			if value == nil && raw == "" {
				continue
			}
			tags := cloneTags(tpl.Tags)
			for k, v := range gc.tags {
				tags[k] = v
			}
			tags["column"] = gc.name
			o := model.Observation{
				MetricKey:   tpl.MetricKey,
				MetricName:  metricName,
				PeriodType:  pt,
				PeriodStart: start,
				PeriodEnd:   end,
				Value:       value,
				RawValue:    raw,
				Unit:        tpl.Unit,
				Tags:        tags,
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}

// parseProvinceGroups 分组模式：列结构形如
// 开始日期 | 结束日期 | 指标 | 河南 | 较上周 | 湖南 | 较上周 | ...
func parseProvinceGroups(in Input, headerRow, startCol, endCol int, pt model.PeriodType) ([]model.Observation, []RowError) {
	cfg := in.Config
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	rowDimCol := 0
	if cfg.RowDimCol != "" {
		rowDimCol = g.FindColumnAny(headerRow, cfg.RowDimCol)
	}
	groupStart := endCol + 1
	if rowDimCol > groupStart-1 {
		groupStart = rowDimCol + 1
	}

	type provinceGroup struct {
		province string
		colStart int
	}
	var groups []provinceGroup
	for c := groupStart; c+cfg.GroupSize-1 <= g.Cols(); c += cfg.GroupSize {
		name := g.Cell(headerRow, c)
		if name == "" || nonProvinceSubcols[name] || len([]rune(name)) > 10 {
			continue
		}
		groups = append(groups, provinceGroup{province: name, colStart: c})
	}
	if len(groups) == 0 {
		errs = append(errs, rowErrf(headerRow, "", model.ErrMissingRequired, "未识别到省份分组列"))
		return obs, errs
	}

	// subheader_index → 指标模板
	templates := make(map[int]*profileTemplate, len(cfg.MetricTemplates))
	for i := range cfg.MetricTemplates {
		t := &cfg.MetricTemplates[i]
		templates[t.SubheaderIndex] = &profileTemplate{
			key: t.Template.MetricKey, name: t.Template.MetricName,
			unit: t.Template.Unit, tags: t.Template.Tags,
		}
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
		indicator := ""
		if rowDimCol != 0 {
			indicator = g.Cell(r, rowDimCol)
		}

		for _, grp := range groups {
			for i := 0; i < cfg.GroupSize && i < len(cfg.Subheaders); i++ {
				tpl, ok := templates[i]
				if !ok {
					continue
				}
				value, raw := CleanNumeric(g.Cell(r, grp.colStart+i))
				if value == nil && raw == "" {
					continue
				}
				tags := cloneTags(tpl.tags)
				tags["province"] = grp.province
				if indicator != "" {
					tags["indicator"] = indicator
				}
				name := tpl.name
				if name == "" {
					name = tpl.key
				}
				o := model.Observation{
					MetricKey:   tpl.key,
					MetricName:  name,
					PeriodType:  pt,
					PeriodStart: start,
					PeriodEnd:   end,
					Value:       value,
					RawValue:    raw,
					GeoCode:     grp.province,
					GeoGuessed:  !IsKnownProvince(grp.province),
					Unit:        tpl.unit,
					Tags:        tags,
				}
				obs = append(obs, in.finish(o))
			}
		}
	}
	return obs, errs
}

type profileTemplate struct {
	key  string
	name string
	unit string
	tags map[string]string
}
