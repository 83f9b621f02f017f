package profile

import (
	"fmt"
	"regexp"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// Action Sheet 分派动作
type Action string

const (
	ActionSkipMeta Action = "SKIP_META"            // 元数据/图例 sheet，跳过
	ActionRawOnly  Action = "RAW_TABLE_STORE_ONLY" // 仅存储原始快照，不解析
	ActionParse    Action = "PARSE"
)

// Parser 解析器类型。封闭枚举，加载时校验，解析时穷举分派。
type Parser string

const (
	ParserNarrowDateRows     Parser = "NARROW_DATE_ROWS"      // 日期列 + 指标列（窄表）
	ParserWideProvinceRows   Parser = "WIDE_PROVINCE_ROWS"    // 省份行 × 日期列（unpivot）
	ParserDateGroupedSubcols Parser = "DATE_GROUPED_SUBCOLS"  // 日期跨列 + 子列
	ParserPeriodWideProvince Parser = "PERIOD_WIDE_PROVINCE"  // 周起止 + 省份列
	ParserPeriodGroupedCols  Parser = "PERIOD_GROUPED_COLS"   // 周起止 + 分组子列
	ParserDeliveryCityMatrix Parser = "DELIVERY_CITY_MATRIX"  // 交割地市矩阵
	ParserLegacyVendorFixed  Parser = "LEGACY_VENDOR_FIXED"   // 固定四行表头的旧版厂商格式
	ParserEnterpriseDaily    Parser = "ENTERPRISE_DAILY"      // 企业集团日度出栏
	ParserMarketQuoteText    Parser = "MARKET_QUOTE_TEXT"     // 自由文本报价
)

// AllParsers 全部已知解析器类型
func AllParsers() []Parser {
	return []Parser{
		ParserNarrowDateRows, ParserWideProvinceRows, ParserDateGroupedSubcols,
		ParserPeriodWideProvince, ParserPeriodGroupedCols, ParserDeliveryCityMatrix,
		ParserLegacyVendorFixed, ParserEnterpriseDaily, ParserMarketQuoteText,
	}
}

func (p Parser) known() bool {
	for _, k := range AllParsers() {
		if p == k {
			return true
		}
	}
	return false
}

// Profile 数据集导入配置：如何识别并解析该数据集的每个 sheet
type Profile struct {
	ProfileCode string   `yaml:"profile_code"`
	SourceCode  string   `yaml:"source_code"`
	DatasetType string   `yaml:"dataset_type"`
	FilePattern string   `yaml:"file_pattern,omitempty"` // 文件名正则，用于自动识别数据集类型
	Defaults    Defaults `yaml:"defaults"`
	// Sheets 按 sheet 名称精确匹配的配置（最高优先级）
	Sheets []SheetEntry `yaml:"sheets"`
	// Rules 结构化分派规则，按 priority 降序匹配
	Rules []DispatchRule `yaml:"rules,omitempty"`

	filePatternRe *regexp.Regexp
}

// Defaults profile 级默认值
type Defaults struct {
	PeriodType model.PeriodType `yaml:"period_type"`
}

// SheetEntry 单个 sheet 的配置
type SheetEntry struct {
	SheetName string      `yaml:"sheet_name"`
	Action    Action      `yaml:"action"`
	Parser    Parser      `yaml:"parser,omitempty"`
	Config    SheetConfig `yaml:"config,omitempty"`
}

// DispatchRule 结构化分派规则：按名称正则或必需列匹配
type DispatchRule struct {
	Priority       int      `yaml:"priority"`
	SheetNameRegex string   `yaml:"sheet_name_regex,omitempty"`
	HasColumns     []string `yaml:"has_columns,omitempty"`
	Action         Action   `yaml:"action"`
	Parser         Parser   `yaml:"parser,omitempty"`

	nameRe *regexp.Regexp
}

// MetricTemplate 指标模板
type MetricTemplate struct {
	MetricKey  string            `yaml:"metric_key"`
	MetricName string            `yaml:"metric_name,omitempty"`
	Unit       string            `yaml:"unit,omitempty"`
	Tags       map[string]string `yaml:"tags,omitempty"`
}

// MetricColumn 按列名绑定的指标（窄表/自由文本报价）
type MetricColumn struct {
	// Col 精确列名；ColumnPattern 子串匹配，两者二选一
	Col              string            `yaml:"col,omitempty"`
	ColumnPattern    string            `yaml:"column_pattern,omitempty"`
	UseColOccurrence int               `yaml:"use_col_occurrence,omitempty"` // 同名列取第 N 次出现，默认 1
	MetricKey        string            `yaml:"metric_key"`
	MetricName       string            `yaml:"metric_name,omitempty"`
	Unit             string            `yaml:"unit,omitempty"`
	Tags             map[string]string `yaml:"tags,omitempty"`
}

// IndexedTemplate 分组子列模板：按子列序号绑定指标
type IndexedTemplate struct {
	SubheaderIndex int            `yaml:"subheader_index"`
	Template       MetricTemplate `yaml:",inline"`
}

// RowDim 行维度列（省份、区域等）
type RowDim struct {
	Col int    `yaml:"col"` // 1-based
	Key string `yaml:"key"`
}

// SheetConfig 解析器参数。字段按解析器类型取用，Validate 校验所选解析器的必填项。
type SheetConfig struct {
	HeaderRow    int    `yaml:"header_row,omitempty"` // 1-based
	SubHeaderRow int    `yaml:"sub_header_row,omitempty"`
	DateRow      int    `yaml:"date_row,omitempty"`
	DataStartRow int    `yaml:"data_start_row,omitempty"`
	DateCol      string `yaml:"date_col,omitempty"`
	StartCol     string `yaml:"start_col,omitempty"` // 支持 "开始日期|起始日期" 多候选
	EndCol       string `yaml:"end_col,omitempty"`
	ProvinceCol  string `yaml:"province_col,omitempty"`
	RowDimCol    string `yaml:"row_dim_col,omitempty"`

	GroupSize  int      `yaml:"group_size,omitempty"`
	Subheaders []string `yaml:"subheaders,omitempty"`

	Metrics         []MetricColumn    `yaml:"metrics,omitempty"`
	MetricTemplate  *MetricTemplate   `yaml:"metric_template,omitempty"`
	MetricTemplates []IndexedTemplate `yaml:"metric_templates,omitempty"`
	RowDims         []RowDim          `yaml:"row_dims,omitempty"`

	IndicatorMapping map[string]string `yaml:"indicator_mapping,omitempty"`
	IndicatorUnits   map[string]string `yaml:"indicator_units,omitempty"`

	// 交割地市矩阵几何
	ProvinceGroupRow int `yaml:"province_group_row,omitempty"`
	MetaStartRow     int `yaml:"meta_start_row,omitempty"`
	MetaEndRow       int `yaml:"meta_end_row,omitempty"`
	CityStartRow     int `yaml:"city_start_row,omitempty"`
	DateStartCol     int `yaml:"date_start_col,omitempty"`

	// 旧版厂商固定格式几何
	TitleRow      int `yaml:"title_row,omitempty"`
	IndicatorRow  int `yaml:"indicator_row,omitempty"`
	UnitRow       int `yaml:"unit_row,omitempty"`
	UpdateTimeRow int `yaml:"update_time_row,omitempty"`

	// 企业日度子变体：cr5 / southwest / summary / province_summary
	Variant string `yaml:"variant,omitempty"`

	// Table 配置后该 sheet 同时物化到独立表，校验时跳过 metric_key 检查
	Table *TableMapping `yaml:"table,omitempty"`
}

// TableMapping 观测值到独立表记录的映射
type TableMapping struct {
	TableName string                `yaml:"table_name"`
	UniqueKey []string              `yaml:"unique_key,omitempty"`
	Columns   map[string]ColumnRule `yaml:"columns"`
}

// ColumnRule 单列取值规则
// Source 取值：date / period_start / period_end / geo / value / column_name /
// subheader / unit / tags.<key> / meta.<key>
type ColumnRule struct {
	Source         string            `yaml:"source"`
	ExtractPattern string            `yaml:"extract_pattern,omitempty"` // column_name 源的正则提取
	Condition      string            `yaml:"condition,omitempty"`       // value 源的过滤条件
	ValueMap       map[string]string `yaml:"value_map,omitempty"`
	Cleaner        string            `yaml:"cleaner,omitempty"`
	Normalizer     string            `yaml:"normalizer,omitempty"`
}

// Validate 校验整个 profile，拒绝格式错误的配置而不是在解析深处失败
func (p *Profile) Validate() error {
	if p.ProfileCode == "" {
		return fmt.Errorf("profile_code 不能为空")
	}
	if p.SourceCode == "" {
		return fmt.Errorf("profile %s: source_code 不能为空", p.ProfileCode)
	}
	if p.DatasetType == "" {
		return fmt.Errorf("profile %s: dataset_type 不能为空", p.ProfileCode)
	}
	if p.Defaults.PeriodType != "" && !p.Defaults.PeriodType.Valid() {
		return fmt.Errorf("profile %s: 无效的 period_type: %s", p.ProfileCode, p.Defaults.PeriodType)
	}
	if p.FilePattern != "" {
		re, err := regexp.Compile(p.FilePattern)
		if err != nil {
			return fmt.Errorf("profile %s: file_pattern 编译失败: %w", p.ProfileCode, err)
		}
		p.filePatternRe = re
	}
	seen := make(map[string]bool, len(p.Sheets))
	for i := range p.Sheets {
		s := &p.Sheets[i]
		if s.SheetName == "" {
			return fmt.Errorf("profile %s: sheets[%d] 缺少 sheet_name", p.ProfileCode, i)
		}
		if seen[s.SheetName] {
			return fmt.Errorf("profile %s: sheet %q 重复配置", p.ProfileCode, s.SheetName)
		}
		seen[s.SheetName] = true
		if err := validateActionParser(s.Action, s.Parser); err != nil {
			return fmt.Errorf("profile %s: sheet %q: %w", p.ProfileCode, s.SheetName, err)
		}
		if s.Action == ActionParse {
			if err := s.Config.validateFor(s.Parser); err != nil {
				return fmt.Errorf("profile %s: sheet %q: %w", p.ProfileCode, s.SheetName, err)
			}
		}
	}
	for i := range p.Rules {
		r := &p.Rules[i]
		if r.SheetNameRegex == "" && len(r.HasColumns) == 0 {
			return fmt.Errorf("profile %s: rules[%d] 需要 sheet_name_regex 或 has_columns", p.ProfileCode, i)
		}
		if r.SheetNameRegex != "" {
			re, err := regexp.Compile(r.SheetNameRegex)
			if err != nil {
				return fmt.Errorf("profile %s: rules[%d] 正则编译失败: %w", p.ProfileCode, i, err)
			}
			r.nameRe = re
		}
		if err := validateActionParser(r.Action, r.Parser); err != nil {
			return fmt.Errorf("profile %s: rules[%d]: %w", p.ProfileCode, i, err)
		}
	}
	return nil
}

func validateActionParser(a Action, parser Parser) error {
	switch a {
	case ActionSkipMeta, ActionRawOnly:
		return nil
	case ActionParse:
		if parser == "" {
			return fmt.Errorf("action=PARSE 需要指定 parser")
		}
		if !parser.known() {
			return fmt.Errorf("未知的解析器类型: %s", parser)
		}
		return nil
	default:
		return fmt.Errorf("未知的 action: %s", a)
	}
}

// validateFor 检查所选解析器的必填参数
func (c *SheetConfig) validateFor(p Parser) error {
	switch p {
	case ParserNarrowDateRows:
		if len(c.Metrics) == 0 {
			return fmt.Errorf("%s 需要 metrics", p)
		}
		for i, m := range c.Metrics {
			if m.Col == "" {
				return fmt.Errorf("%s metrics[%d] 缺少 col", p, i)
			}
			// 仅物化到独立表的 sheet 允许没有 metric_key
			if m.MetricKey == "" && c.Table == nil {
				return fmt.Errorf("%s metrics[%d] 缺少 metric_key", p, i)
			}
		}
	case ParserWideProvinceRows:
		if c.MetricTemplate == nil || c.MetricTemplate.MetricKey == "" {
			return fmt.Errorf("%s 需要 metric_template.metric_key", p)
		}
	case ParserDateGroupedSubcols:
		if c.DateRow <= 0 || c.SubHeaderRow <= 0 {
			return fmt.Errorf("%s 需要 date_row 与 sub_header_row", p)
		}
		if len(c.Subheaders) == 0 {
			return fmt.Errorf("%s 需要 subheaders", p)
		}
	case ParserPeriodWideProvince:
		if c.StartCol == "" || c.EndCol == "" {
			return fmt.Errorf("%s 需要 start_col 与 end_col", p)
		}
		if c.MetricTemplate == nil || c.MetricTemplate.MetricKey == "" {
			return fmt.Errorf("%s 需要 metric_template.metric_key", p)
		}
	case ParserPeriodGroupedCols:
		if c.StartCol == "" || c.EndCol == "" {
			return fmt.Errorf("%s 需要 start_col 与 end_col", p)
		}
		if c.GroupSize > 0 && len(c.Subheaders) > 0 {
			if len(c.MetricTemplates) == 0 {
				return fmt.Errorf("%s 分组模式需要 metric_templates", p)
			}
			for _, t := range c.MetricTemplates {
				if t.SubheaderIndex < 0 || t.SubheaderIndex >= c.GroupSize {
					return fmt.Errorf("%s subheader_index %d 超出 group_size %d", p, t.SubheaderIndex, c.GroupSize)
				}
			}
		} else if c.MetricTemplate == nil || c.MetricTemplate.MetricKey == "" {
			return fmt.Errorf("%s 非分组模式需要 metric_template.metric_key", p)
		}
	case ParserDeliveryCityMatrix:
		if c.CityStartRow <= 0 || c.DateStartCol <= 0 {
			return fmt.Errorf("%s 需要 city_start_row 与 date_start_col", p)
		}
	case ParserLegacyVendorFixed:
		if c.IndicatorRow <= 0 || c.DataStartRow <= 0 {
			return fmt.Errorf("%s 需要 indicator_row 与 data_start_row", p)
		}
	case ParserEnterpriseDaily:
		switch c.Variant {
		case "cr5", "southwest", "summary", "province_summary":
		default:
			return fmt.Errorf("%s 未知的 variant: %q", p, c.Variant)
		}
	case ParserMarketQuoteText:
		if len(c.Metrics) == 0 {
			return fmt.Errorf("%s 需要 metrics", p)
		}
		for i, m := range c.Metrics {
			if m.ColumnPattern == "" && m.Col == "" {
				return fmt.Errorf("%s metrics[%d] 缺少 column_pattern", p, i)
			}
		}
	}
	if c.Table != nil {
		if c.Table.TableName == "" {
			return fmt.Errorf("table 映射缺少 table_name")
		}
		if len(c.Table.Columns) == 0 {
			return fmt.Errorf("table %s 映射缺少 columns", c.Table.TableName)
		}
		for col, rule := range c.Table.Columns {
			if rule.Source == "" {
				return fmt.Errorf("table %s 列 %s 缺少 source", c.Table.TableName, col)
			}
			if rule.ExtractPattern != "" {
				if _, err := regexp.Compile(rule.ExtractPattern); err != nil {
					return fmt.Errorf("table %s 列 %s extract_pattern 编译失败: %w", c.Table.TableName, col, err)
				}
			}
		}
	}
	return nil
}

// FindSheet 按 sheet 名称精确查找配置
func (p *Profile) FindSheet(sheetName string) *SheetEntry {
	for i := range p.Sheets {
		if p.Sheets[i].SheetName == sheetName {
			return &p.Sheets[i]
		}
	}
	return nil
}

// MatchFilename 判断文件名是否匹配本 profile 的 file_pattern
func (p *Profile) MatchFilename(filename string) bool {
	if p.filePatternRe == nil {
		return false
	}
	return p.filePatternRe.MatchString(filename)
}

// MatchRule 按 priority 降序匹配分派规则
func (p *Profile) MatchRule(sheetName string, columns []string) *DispatchRule {
	var best *DispatchRule
	for i := range p.Rules {
		r := &p.Rules[i]
		if best != nil && r.Priority <= best.Priority {
			continue
		}
		if r.matches(sheetName, columns) {
			best = r
		}
	}
	return best
}

func (r *DispatchRule) matches(sheetName string, columns []string) bool {
	if r.nameRe != nil && !r.nameRe.MatchString(sheetName) {
		return false
	}
	for _, want := range r.HasColumns {
		found := false
		for _, col := range columns {
			if col == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
