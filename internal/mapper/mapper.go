// Package mapper 将规范化观测值投影/合并为独立表记录。
// 仅用于 profile 中声明了 table 映射的 sheet。
package mapper

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/parser"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
)

// Record 一条目标表记录
type Record map[string]any

// Mapper 预编译后的列映射
type Mapper struct {
	table   string
	columns []boundColumn
	// 多个 value 列时按身份列合并为一条记录
	merge bool
}

type boundColumn struct {
	name string
	rule profile.ColumnRule
	re   *regexp.Regexp
	cond *condition
}

// condition 受支持的过滤条件：
//   - metric_key == X
//   - subheader == X
//   - subheader in [a, b, c]
type condition struct {
	field  string
	equals string
	oneOf  []string
}

var condInRe = regexp.MustCompile(`^(\w+)\s+in\s+\[(.*)\]$`)
var condEqRe = regexp.MustCompile(`^(\w+)\s*==?\s*(.+)$`)

func parseCondition(s string) (*condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if m := condInRe.FindStringSubmatch(s); m != nil {
		var vals []string
		for _, p := range strings.Split(m[2], ",") {
			p = strings.Trim(strings.TrimSpace(p), `"'`)
			if p != "" {
				vals = append(vals, p)
			}
		}
		return &condition{field: m[1], oneOf: vals}, nil
	}
	if m := condEqRe.FindStringSubmatch(s); m != nil {
		return &condition{field: m[1], equals: strings.Trim(strings.TrimSpace(m[2]), `"'`)}, nil
	}
	return nil, fmt.Errorf("无法解析的条件表达式: %q", s)
}

func (c *condition) match(o *model.Observation) bool {
	var got string
	switch c.field {
	case "metric_key":
		got = o.MetricKey
	case "subheader":
		got = o.Tags["subheader"]
		if got == "" {
			got = o.Tags["scale"]
		}
	default:
		got = o.Tags[c.field]
	}
	if len(c.oneOf) > 0 {
		for _, v := range c.oneOf {
			if got == v {
				return true
			}
		}
		return false
	}
	return got == c.equals
}

// New 编译 table 映射。正则与条件在此处一次性校验。
func New(tm *profile.TableMapping) (*Mapper, error) {
	m := &Mapper{table: tm.TableName}
	valueCols := 0
	names := make([]string, 0, len(tm.Columns))
	for name := range tm.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := tm.Columns[name]
		bc := boundColumn{name: name, rule: rule}
		if rule.ExtractPattern != "" {
			re, err := regexp.Compile(rule.ExtractPattern)
			if err != nil {
				return nil, fmt.Errorf("列 %s: extract_pattern: %w", name, err)
			}
			bc.re = re
		}
		cond, err := parseCondition(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("列 %s: %w", name, err)
		}
		bc.cond = cond
		if rule.Source == "value" {
			valueCols++
		}
		m.columns = append(m.columns, bc)
	}
	m.merge = valueCols > 1
	return m, nil
}

// Table 目标表名
func (m *Mapper) Table() string { return m.table }

// Map 执行映射。单 value 列时一条观测产出一条记录；
// 多 value 列时按身份列分组，把各观测的 value 折叠进同一条记录。
func (m *Mapper) Map(obs []model.Observation, batchID int64) []Record {
	if !m.merge {
		records := make([]Record, 0, len(obs))
		for i := range obs {
			rec := Record{"batch_id": batchID}
			for _, bc := range m.columns {
				rec[bc.name] = m.extract(&obs[i], &bc)
			}
			records = append(records, rec)
		}
		return records
	}

	grouped := map[string]Record{}
	var order []string
	for i := range obs {
		o := &obs[i]
		var keyParts []string
		for _, bc := range m.columns {
			if bc.rule.Source == "value" {
				continue
			}
			if v := m.extract(o, &bc); v != nil {
				keyParts = append(keyParts, fmt.Sprint(v))
			}
		}
		key := strings.Join(keyParts, "|")
		rec, ok := grouped[key]
		if !ok {
			rec = Record{"batch_id": batchID}
			for _, bc := range m.columns {
				if bc.rule.Source == "value" {
					continue
				}
				if v := m.extract(o, &bc); v != nil {
					rec[bc.name] = v
				}
			}
			grouped[key] = rec
			order = append(order, key)
		}
		for _, bc := range m.columns {
			if bc.rule.Source != "value" {
				continue
			}
			if v := m.extract(o, &bc); v != nil {
				rec[bc.name] = v
			}
		}
	}

	records := make([]Record, 0, len(order))
	for _, key := range order {
		records = append(records, grouped[key])
	}
	return records
}

func (m *Mapper) extract(o *model.Observation, bc *boundColumn) any {
	if bc.cond != nil && !bc.cond.match(o) {
		return nil
	}

	var v any
	switch src := bc.rule.Source; {
	case src == "date":
		v = formatDate(o.ObsDate)
		if v == nil {
			v = formatDate(o.PeriodEnd)
		}
	case src == "period_start":
		v = formatDate(o.PeriodStart)
	case src == "period_end":
		v = formatDate(o.PeriodEnd)
	case src == "geo":
		if o.GeoCode != "" {
			v = o.GeoCode
		}
	case src == "value":
		if o.Value != nil {
			v = *o.Value
		} else if o.RawValue != "" {
			v = o.RawValue
		}
	case src == "unit":
		if o.Unit != "" {
			v = o.Unit
		}
	case src == "column_name":
		header := o.Tags["column_name"]
		if header == "" {
			header = o.Tags["raw_header"]
		}
		if header == "" {
			header = o.MetricName
		}
		if bc.re != nil {
			match := bc.re.FindStringSubmatch(header)
			if match == nil {
				return nil
			}
			if len(match) > 1 {
				v = match[1]
			} else {
				v = match[0]
			}
		} else if header != "" {
			v = header
		}
	case src == "subheader":
		s := o.Tags["subheader"]
		if s == "" {
			s = o.Tags["scale"]
		}
		if s != "" {
			v = s
		}
	case strings.HasPrefix(src, "tags."):
		if t := o.Tags[strings.TrimPrefix(src, "tags.")]; t != "" {
			v = t
		}
	case strings.HasPrefix(src, "meta."):
		v = extractMeta(o, strings.TrimPrefix(src, "meta."))
	}

	if v == nil {
		return nil
	}
	return m.transform(v, bc)
}

// extractMeta 旧版厂商元数据行的取值约定
func extractMeta(o *model.Observation, key string) any {
	switch key {
	case "unit_row":
		if o.Unit != "" {
			return o.Unit
		}
		return nil
	case "update_time_row":
		if t := o.Tags["update_time"]; t != "" {
			return t
		}
		return nil
	case "province_row":
		if o.GeoCode != "" {
			return o.GeoCode
		}
		return nil
	case "weight_row":
		if t := o.Tags["weight_band"]; t != "" {
			return t
		}
		return nil
	}
	if t := o.Tags[key]; t != "" {
		return t
	}
	return nil
}

func (m *Mapper) transform(v any, bc *boundColumn) any {
	if len(bc.rule.ValueMap) > 0 {
		if s, ok := v.(string); ok {
			if mapped, ok := bc.rule.ValueMap[s]; ok {
				v = mapped
			}
		}
	}
	switch bc.rule.Cleaner {
	case "clean_numeric":
		if s, ok := v.(string); ok {
			if f, _ := parser.CleanNumeric(s); f != nil {
				v = *f
			}
		}
	}
	switch bc.rule.Normalizer {
	case "normalize_province":
		if s, ok := v.(string); ok {
			v = parser.NormalizeProvince(s)
		}
	}
	return v
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
