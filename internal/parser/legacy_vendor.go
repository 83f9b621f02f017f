package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// 表头形如 "商品猪：出栏均价：黑龙江（日）" 时提取省区段
var legacyGeoRe = regexp.MustCompile(`：([^：（）]+)（`)

// extractLegacyGeo 从指标全名中提取地理名。返回 guessed=true 表示
// 走了启发式回退路径或提取结果不在省份表内。
func extractLegacyGeo(header string) (geo string, guessed bool) {
	if !strings.ContainsAny(header, "：:") {
		return "", false
	}
	if m := legacyGeoRe.FindStringSubmatch(header); m != nil {
		geo = strings.TrimSpace(m[1])
		return geo, !IsKnownProvince(geo) && geo != "中国"
	}
	parts := strings.Split(strings.ReplaceAll(header, "：", ":"), ":")
	if len(parts) >= 3 {
		region := strings.TrimSpace(parts[2])
		if i := strings.Index(region, "（"); i >= 0 {
			region = strings.TrimSpace(region[:i])
		}
		return region, true
	}
	return "", false
}

// legacyMetric 按 sheet 名与列名推断指标键。闭合的已知数据集表，
// 未命中时由来源码 + sheet 名派生。
func legacyMetric(sourceCode, sheetName, header string) (key, name string) {
	switch {
	case strings.Contains(sheetName, "毛白价差"):
		if strings.Contains(header, "/") || strings.Contains(header, "比率") || strings.Contains(header, "比例") {
			return "GL_D_LIVE_WHITE_SPREAD_RATIO", "毛白价差比率"
		}
		return "GL_D_LIVE_WHITE_SPREAD", "毛白价差"
	case strings.Contains(sheetName, "肥标价差") || strings.Contains(sheetName, "标肥价差"):
		return "GL_D_FAT_STD_SPREAD", "标肥价差"
	case strings.Contains(sheetName, "区域价差"):
		return "GL_D_REGION_SPREAD", "区域价差"
	case strings.Contains(sheetName, "分省区猪价"):
		return "GL_D_PRICE_PROVINCE", "出栏均价"
	}
	key = strings.ToUpper(sourceCode + "_D_" + sheetName)
	key = strings.NewReplacer(" ", "_", "（", "_", "）", "").Replace(key)
	return key, header
}

// ParseLegacyVendorFixed 解析旧版厂商固定格式：
// 第 1 行标题、第 2 行指标全名、第 3 行单位、第 4 行更新时间、
// 第 5 行起数据，第 1 列为日期。
func ParseLegacyVendorFixed(in Input) ([]model.Observation, []RowError) {
	cfg := *in.Config
	if cfg.IndicatorRow == 0 {
		cfg.IndicatorRow = 2
	}
	if cfg.UnitRow == 0 {
		cfg.UnitRow = 3
	}
	if cfg.UpdateTimeRow == 0 {
		cfg.UpdateTimeRow = 4
	}
	if cfg.DataStartRow == 0 {
		cfg.DataStartRow = 5
	}
	g := in.Grid
	var obs []model.Observation
	var errs []RowError

	if g.Rows() < cfg.DataStartRow {
		errs = append(errs, rowErrf(1, "", model.ErrMissingRequired,
			"行数 %d 不足，数据应从第 %d 行开始", g.Rows(), cfg.DataStartRow))
		return obs, errs
	}

	// sheet 名含"周"视为周度：观测日期即周期结束，周期开始回退 6 天
	weekly := strings.Contains(g.SheetName, "周")

	tplKey, tplName, tplUnit := "", "", ""
	if cfg.MetricTemplate != nil {
		tplKey, tplName, tplUnit = cfg.MetricTemplate.MetricKey, cfg.MetricTemplate.MetricName, cfg.MetricTemplate.Unit
	}

	for c := 2; c <= g.Cols(); c++ {
		header := g.Cell(cfg.IndicatorRow, c)
		if header == "" {
			continue
		}
		unit := tplUnit
		if cfg.UnitRow > 0 {
			if u := g.Cell(cfg.UnitRow, c); u != "" {
				unit = u
			}
		}
		updateTime := ""
		if cfg.UpdateTimeRow > 0 {
			updateTime = g.Cell(cfg.UpdateTimeRow, c)
		}

		metricKey, metricName := tplKey, tplName
		if metricKey == "" {
			metricKey, metricName = legacyMetric(in.SourceCode, g.SheetName, header)
		}
		if metricName == "" {
			metricName = header
		}
		geo, guessed := extractLegacyGeo(header)

		for r := cfg.DataStartRow; r <= g.Rows(); r++ {
			dateCell := g.Cell(r, 1)
			if dateCell == "" {
				continue
			}
			d, err := ParseObsDate(dateCell)
			if err != nil {
				// 同一行的日期错误只在首个指标列记录一次
				if c == 2 {
					typ := model.ErrDateUnparseable
					if errors.Is(err, ErrYearOutOfRange) {
						typ = model.ErrOutOfRange
					}
					errs = append(errs, rowErrf(r, "日期", typ, "%v", err))
				}
				continue
			}
			value, raw := CleanNumeric(g.Cell(r, c))
			if value == nil && raw == "" {
				continue
			}

			tags := map[string]string{
				"raw_header":  header,
				"column_name": header,
			}
			if geo != "" {
				tags["province"] = geo
			}
			if updateTime != "" {
				tags["update_time"] = updateTime
			}

			o := model.Observation{
				MetricKey:  metricKey,
				MetricName: metricName,
				Value:      value,
				RawValue:   raw,
				GeoCode:    geo,
				GeoGuessed: guessed,
				Unit:       unit,
				Tags:       tags,
			}
			if weekly {
				end := d
				start := d.AddDate(0, 0, -6)
				o.PeriodType = model.PeriodWeek
				o.PeriodStart = &start
				o.PeriodEnd = &end
			} else {
				day := d
				o.PeriodType = model.PeriodDay
				o.ObsDate = &day
			}
			obs = append(obs, in.finish(o))
		}
	}
	return obs, errs
}
