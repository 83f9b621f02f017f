package parser

import (
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

type enterpriseMetric struct {
	key     string
	name    string
	unit    string
	company string
}

var cr5Companies = map[string]bool{
	"牧原": true, "温氏": true, "双胞胎": true, "新希望": true, "德康": true,
}

var southwestRegions = map[string]bool{
	"四川": true, "广西": true, "贵州": true, "西南样本企业": true,
}

var summaryRegions = map[string]bool{
	"广东": true, "四川": true, "贵州": true, "全国CR20": true, "全国CR5": true,
}

// ParseEnterpriseDaily 解析企业集团日度出栏数据。四种子变体按 variant 分支，
// 共用日期/地区提取逻辑。
func ParseEnterpriseDaily(in Input) ([]model.Observation, []RowError) {
	switch in.Config.Variant {
	case "cr5":
		return parseCR5Daily(in)
	case "southwest":
		return parseSouthwestSummary(in)
	case "summary":
		return parseDecadeSummary(in)
	case "province_summary":
		return parseProvinceSummary(in)
	}
	return parseCR5Daily(in)
}

// cr5Metric 按表头关键词识别 CR5 指标列
func cr5Metric(header string) *enterpriseMetric {
	switch {
	case strings.Contains(header, "实际出栏") || strings.Contains(header, "实际成交"):
		return &enterpriseMetric{key: "CR5_DAILY_OUTPUT", name: "日度出栏", unit: "头"}
	case strings.Contains(header, "月度计划") || strings.Contains(header, "计划日均") || strings.Contains(header, "计划量"):
		return &enterpriseMetric{key: "CR5_MONTHLY_PLAN", name: "计划量", unit: "头"}
	case strings.Contains(header, "全国均价") || strings.Contains(header, "价格"):
		return &enterpriseMetric{key: "CR5_PRICE", name: "价格", unit: "元/公斤"}
	case cr5Companies[header]:
		return &enterpriseMetric{key: "CR5_COMPANY_" + header, name: "日度出栏", unit: "头", company: header}
	case strings.Contains(header, "均重"):
		return &enterpriseMetric{key: "CR5_AVG_WEIGHT", name: "均重", unit: "公斤"}
	}
	return nil
}

// parseCR5Daily 第 1 行表头，第 2 行起数据，第 1 列为日期（常见 Excel 序列号）
func parseCR5Daily(in Input) ([]model.Observation, []RowError) {
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	if g.Rows() < 2 {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired, "行数不足"))
		return obs, errs
	}

	metricCols := map[int]*enterpriseMetric{}
	for c := 1; c <= g.Cols(); c++ {
		if m := cr5Metric(g.Cell(1, c)); m != nil {
			metricCols[c] = m
		}
	}
	if len(metricCols) == 0 {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired, "表头未识别到任何指标列"))
		return obs, errs
	}

	for r := 2; r <= g.Rows(); r++ {
		dateCell := g.Cell(r, 1)
		if dateCell == "" {
			continue
		}
		d, err := ParseObsDate(dateCell)
		if err != nil {
			errs = append(errs, rowErrf(r, "日期", model.ErrDateUnparseable, "%v", err))
			continue
		}
		for c := 1; c <= g.Cols(); c++ {
			if m, ok := metricCols[c]; ok {
				obs = appendEnterpriseObs(in, obs, r, c, d, m, nil)
			}
		}
	}
	return obs, errs
}

// parseSouthwestSummary 第 1 行地区分组、第 2 行指标名、第 3 行起数据
func parseSouthwestSummary(in Input) ([]model.Observation, []RowError) {
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	if g.Rows() < 3 {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired, "行数不足"))
		return obs, errs
	}

	// 地区标记列：向右生效直到下一个标记
	regionAt := map[int]string{}
	for c := 1; c <= g.Cols(); c++ {
		if name := g.Cell(1, c); southwestRegions[name] {
			regionAt[c] = name
		}
	}
	regionFor := func(col int) string {
		for c := col; c >= 1; c-- {
			if r, ok := regionAt[c]; ok {
				return r
			}
		}
		return ""
	}

	metricCols := map[int]*enterpriseMetric{}
	for c := 1; c <= g.Cols(); c++ {
		header := g.Cell(2, c)
		if header == "" {
			continue
		}
		switch {
		case strings.Contains(header, "实际成交"):
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_ACTUAL_OUTPUT", name: "日度出栏", unit: "头"}
		case strings.Contains(header, "计划日均"):
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_PLAN_OUTPUT", name: "计划出栏", unit: "头"}
		case strings.Contains(header, "成交率") || strings.Contains(header, "完成率"):
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_COMPLETION_RATE", name: "完成率", unit: "%"}
		case strings.Contains(header, "价格") || strings.Contains(header, "MS") || header == "价":
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_PRICE", name: "价格", unit: "元/公斤"}
		case header == "量" || strings.Contains(header, "出栏"):
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_OUTPUT", name: "出栏量", unit: "头"}
		case header == "重":
			metricCols[c] = &enterpriseMetric{key: "SOUTHWEST_AVG_WEIGHT", name: "均重", unit: "公斤"}
		}
	}

	for r := 3; r <= g.Rows(); r++ {
		d, ok := firstDate(g, r, 2)
		if !ok {
			continue
		}
		for c := 1; c <= g.Cols(); c++ {
			m, ok := metricCols[c]
			if !ok {
				continue
			}
			region := regionFor(c)
			var tags map[string]string
			if region != "" {
				tags = map[string]string{"region": region}
			}
			obs = appendEnterpriseObsGeo(in, obs, r, c, d, m, region, tags)
		}
	}
	return obs, errs
}

// parseDecadeSummary 旬度汇总：第 1 行地区分组、第 2 行指标名、
// 第 3 行起数据（第 1 列时间类型 上旬/中旬/月度，第 2 列日期）
func parseDecadeSummary(in Input) ([]model.Observation, []RowError) {
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	if g.Rows() < 3 {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired, "行数不足"))
		return obs, errs
	}

	// 地区分组 → 列区间
	type span struct {
		region   string
		from, to int
	}
	var spans []span
	for c := 1; c <= g.Cols(); c++ {
		if name := g.Cell(1, c); summaryRegions[name] {
			if n := len(spans); n > 0 {
				spans[n-1].to = c - 1
			}
			spans = append(spans, span{region: name, from: c, to: g.Cols()})
		}
	}

	type colBinding struct {
		region string
		m      *enterpriseMetric
	}
	bindings := map[int]colBinding{}
	for _, sp := range spans {
		for c := sp.from; c <= sp.to; c++ {
			header := g.Cell(2, c)
			if header == "" {
				continue
			}
			var m *enterpriseMetric
			switch {
			case strings.Contains(header, "出栏计划") || strings.Contains(header, "计划出栏量"):
				m = &enterpriseMetric{key: "PROVINCE_PLAN", name: "计划出栏量", unit: "头"}
			case strings.Contains(header, "实际出栏量"):
				m = &enterpriseMetric{key: "PROVINCE_ACTUAL", name: "实际出栏量", unit: "头"}
			case strings.Contains(header, "计划完成率") || strings.Contains(header, "计划达成率"):
				m = &enterpriseMetric{key: "PROVINCE_COMPLETION_RATE", name: "计划完成率", unit: "%"}
			case strings.Contains(header, "计划均重"):
				m = &enterpriseMetric{key: "PROVINCE_PLAN_WEIGHT", name: "计划均重", unit: "公斤"}
			case strings.Contains(header, "均重"):
				m = &enterpriseMetric{key: "PROVINCE_AVG_WEIGHT", name: "均重", unit: "公斤"}
			case strings.Contains(header, "销售均价"):
				m = &enterpriseMetric{key: "PROVINCE_PRICE", name: "销售均价", unit: "元/公斤"}
			}
			if m != nil {
				bindings[c] = colBinding{region: sp.region, m: m}
			}
		}
	}

	for r := 3; r <= g.Rows(); r++ {
		decade := g.Cell(r, 1)
		if decade == "" {
			continue
		}
		dateCell := g.Cell(r, 2)
		if dateCell == "" {
			continue
		}
		d, err := ParseObsDate(dateCell)
		if err != nil {
			errs = append(errs, rowErrf(r, "日期", model.ErrDateUnparseable, "%v", err))
			continue
		}
		for c := 1; c <= g.Cols(); c++ {
			b, ok := bindings[c]
			if !ok {
				continue
			}
			tags := map[string]string{"region": b.region, "time_type": decade}
			obs = appendEnterpriseObsGeo(in, obs, r, c, d, b.m, b.region, tags)
		}
	}
	return obs, errs
}

// parseProvinceSummary 重点省区汇总：第 2 行省份名，第 3 行起数据
func parseProvinceSummary(in Input) ([]model.Observation, []RowError) {
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	if g.Rows() < 3 {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired, "行数不足"))
		return obs, errs
	}

	provinceCols := map[int]string{}
	for c := 1; c <= g.Cols(); c++ {
		name := g.Cell(2, c)
		if name != "" && name != "合计" {
			provinceCols[c] = name
		}
	}

	m := &enterpriseMetric{key: "PROVINCE_PLAN", name: "计划量", unit: "头"}
	for r := 3; r <= g.Rows(); r++ {
		d, ok := firstDate(g, r, 2)
		if !ok {
			continue
		}
		for c := 1; c <= g.Cols(); c++ {
			province, ok := provinceCols[c]
			if !ok {
				continue
			}
			tags := map[string]string{"region": province}
			obs = appendEnterpriseObsGeo(in, obs, r, c, d, m, province, tags)
		}
	}
	return obs, errs
}

// firstDate 在行首 n 列内找第一个可解析日期
func firstDate(g *Grid, row, n int) (time.Time, bool) {
	for c := 1; c <= n; c++ {
		cell := g.Cell(row, c)
		if cell == "" {
			continue
		}
		if d, err := ParseObsDate(cell); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func appendEnterpriseObs(in Input, obs []model.Observation, row, col int, d time.Time, m *enterpriseMetric, tags map[string]string) []model.Observation {
	return appendEnterpriseObsGeo(in, obs, row, col, d, m, "", tags)
}

func appendEnterpriseObsGeo(in Input, obs []model.Observation, row, col int, d time.Time, m *enterpriseMetric, geo string, tags map[string]string) []model.Observation {
	value, raw := CleanNumeric(in.Grid.Cell(row, col))
	if value == nil && raw == "" {
		return obs
	}
	if tags == nil {
		tags = map[string]string{}
	}
	if m.company != "" {
		tags["company"] = m.company
	}
	day := d
	o := model.Observation{
		MetricKey:  m.key,
		MetricName: m.name,
		PeriodType: model.PeriodDay,
		ObsDate:    &day,
		Value:      value,
		RawValue:   raw,
		GeoCode:    geo,
		Unit:       m.unit,
		Tags:       tags,
	}
	return append(obs, in.finish(o))
}
