package parser

import (
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
)

// Decision 分派结果
type Decision struct {
	Action profile.Action
	Parser profile.Parser
	Config *profile.SheetConfig
	Reason string
	// Matched 为 false 表示既无 sheet 配置也无规则命中，降级为只存快照
	Matched bool
}

// Classify 按 profile 对单个 sheet 做形状分派。
// 先按 sheet 名精确匹配，再按结构化规则（名称正则/必需列）按优先级匹配；
// 都未命中时降级为仅存原始快照并给出可读原因，绝不视为错误。
func Classify(sheetName string, g *Grid, p *profile.Profile) Decision {
	if entry := p.FindSheet(sheetName); entry != nil {
		return Decision{
			Action:  entry.Action,
			Parser:  entry.Parser,
			Config:  &entry.Config,
			Reason:  fmt.Sprintf("sheet 名精确匹配 %q", sheetName),
			Matched: true,
		}
	}

	columns := g.HeaderColumns()
	if rule := p.MatchRule(sheetName, columns); rule != nil {
		return Decision{
			Action:  rule.Action,
			Parser:  rule.Parser,
			Config:  &profile.SheetConfig{},
			Reason:  fmt.Sprintf("规则匹配 (priority=%d)", rule.Priority),
			Matched: true,
		}
	}

	return Decision{
		Action: profile.ActionRawOnly,
		Reason: fmt.Sprintf("profile %s 中没有匹配 %q 的配置或规则，表头: %v",
			p.ProfileCode, sheetName, columns),
	}
}

// Parse 按解析器类型穷举分派。未知类型说明 profile 校验被绕过，按配置错误返回。
func Parse(parserType profile.Parser, in Input) ([]model.Observation, []RowError, error) {
	switch parserType {
	case profile.ParserNarrowDateRows:
		obs, errs := ParseNarrowDateRows(in)
		return obs, errs, nil
	case profile.ParserWideProvinceRows:
		obs, errs := ParseWideProvinceRows(in)
		return obs, errs, nil
	case profile.ParserDateGroupedSubcols:
		obs, errs := ParseDateGroupedSubcols(in)
		return obs, errs, nil
	case profile.ParserPeriodWideProvince:
		obs, errs := ParsePeriodWideProvince(in)
		return obs, errs, nil
	case profile.ParserPeriodGroupedCols:
		obs, errs := ParsePeriodGroupedCols(in)
		return obs, errs, nil
	case profile.ParserDeliveryCityMatrix:
		obs, errs := ParseDeliveryCityMatrix(in)
		return obs, errs, nil
	case profile.ParserLegacyVendorFixed:
		obs, errs := ParseLegacyVendorFixed(in)
		return obs, errs, nil
	case profile.ParserEnterpriseDaily:
		obs, errs := ParseEnterpriseDaily(in)
		return obs, errs, nil
	case profile.ParserMarketQuoteText:
		obs, errs := ParseMarketQuoteText(in)
		return obs, errs, nil
	}
	return nil, nil, fmt.Errorf("未知的解析器类型: %s", parserType)
}
