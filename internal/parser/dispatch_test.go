package parser

import (
	"testing"

	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
)

func dispatchProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		ProfileCode: "TEST_V1",
		SourceCode:  "TEST",
		DatasetType: "test_daily",
		Sheets: []profile.SheetEntry{
			{SheetName: "说明", Action: profile.ActionSkipMeta},
			{SheetName: "全国均价", Action: profile.ActionParse, Parser: profile.ParserNarrowDateRows,
				Config: profile.SheetConfig{
					HeaderRow: 1, DataStartRow: 2,
					Metrics: []profile.MetricColumn{{Col: "出栏均价", MetricKey: "M_PRICE"}},
				}},
			{SheetName: "分省均价", Action: profile.ActionParse, Parser: profile.ParserWideProvinceRows,
				Config: profile.SheetConfig{
					HeaderRow: 1, DataStartRow: 2, ProvinceCol: "省份",
					MetricTemplate: &profile.MetricTemplate{MetricKey: "M_PROV"},
				}},
			{SheetName: "出栏体重", Action: profile.ActionParse, Parser: profile.ParserDateGroupedSubcols,
				Config: profile.SheetConfig{
					DateRow: 1, SubHeaderRow: 2, DataStartRow: 3,
					Subheaders: []string{"规模场", "小散"},
				}},
			{SheetName: "周度均价", Action: profile.ActionParse, Parser: profile.ParserPeriodWideProvince,
				Config: profile.SheetConfig{
					StartCol: "开始日期", EndCol: "结束日期",
					MetricTemplate: &profile.MetricTemplate{MetricKey: "M_WEEK"},
				}},
			{SheetName: "仔猪价格", Action: profile.ActionParse, Parser: profile.ParserPeriodGroupedCols,
				Config: profile.SheetConfig{
					StartCol: "开始日期", EndCol: "结束日期",
					MetricTemplate: &profile.MetricTemplate{MetricKey: "M_PIGLET"},
				}},
			{SheetName: "交割地", Action: profile.ActionParse, Parser: profile.ParserDeliveryCityMatrix,
				Config: profile.SheetConfig{CityStartRow: 5, DateStartCol: 6},
			},
			{SheetName: "肥标价差", Action: profile.ActionParse, Parser: profile.ParserLegacyVendorFixed,
				Config: profile.SheetConfig{IndicatorRow: 2, DataStartRow: 5},
			},
			{SheetName: "CR5日度", Action: profile.ActionParse, Parser: profile.ParserEnterpriseDaily,
				Config: profile.SheetConfig{Variant: "cr5"},
			},
			{SheetName: "主力合约", Action: profile.ActionParse, Parser: profile.ParserMarketQuoteText,
				Config: profile.SheetConfig{
					Metrics: []profile.MetricColumn{{ColumnPattern: "收盘价", MetricKey: "M_CLOSE"}},
				}},
		},
		Rules: []profile.DispatchRule{
			{Priority: 10, SheetNameRegex: "备份", Action: profile.ActionRawOnly},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("profile 校验失败: %v", err)
	}
	return p
}

func TestClassify_ExactSheetMatch(t *testing.T) {
	t.Parallel()
	p := dispatchProfile(t)

	cases := map[string]profile.Parser{
		"全国均价": profile.ParserNarrowDateRows,
		"分省均价": profile.ParserWideProvinceRows,
		"出栏体重": profile.ParserDateGroupedSubcols,
		"周度均价": profile.ParserPeriodWideProvince,
		"仔猪价格": profile.ParserPeriodGroupedCols,
		"交割地":  profile.ParserDeliveryCityMatrix,
		"肥标价差": profile.ParserLegacyVendorFixed,
		"CR5日度": profile.ParserEnterpriseDaily,
		"主力合约": profile.ParserMarketQuoteText,
	}
	for sheet, wantParser := range cases {
		g := NewGrid(sheet, [][]string{{"x"}})
		d := Classify(sheet, g, p)
		if d.Action != profile.ActionParse {
			t.Fatalf("Classify(%s).Action = %s", sheet, d.Action)
		}
		if d.Parser != wantParser {
			t.Fatalf("Classify(%s).Parser = %s, want %s", sheet, d.Parser, wantParser)
		}
		if !d.Matched {
			t.Fatalf("Classify(%s).Matched = false", sheet)
		}
	}
}

func TestClassify_SkipMetaAndRule(t *testing.T) {
	t.Parallel()
	p := dispatchProfile(t)

	d := Classify("说明", NewGrid("说明", [][]string{{"关于本表"}}), p)
	if d.Action != profile.ActionSkipMeta {
		t.Fatalf("说明 sheet Action = %s", d.Action)
	}

	d = Classify("数据备份2023", NewGrid("数据备份2023", [][]string{{"a", "b"}}), p)
	if d.Action != profile.ActionRawOnly || !d.Matched {
		t.Fatalf("规则匹配失败: %+v", d)
	}
}

func TestClassify_UnknownShapeFallsBackToRawOnly(t *testing.T) {
	t.Parallel()
	p := dispatchProfile(t)

	g := NewGrid("某个新表", [][]string{{"神秘列1", "神秘列2"}, {"1", "2"}})
	d := Classify("某个新表", g, p)
	if d.Action != profile.ActionRawOnly {
		t.Fatalf("未知形状应降级为 raw-only，实际 %s", d.Action)
	}
	if d.Matched {
		t.Fatal("未知形状不应标记为命中")
	}
	if d.Reason == "" {
		t.Fatal("降级必须给出原因")
	}
}

func TestParse_UnknownParserType(t *testing.T) {
	t.Parallel()

	in := Input{Grid: NewGrid("s", nil), Config: &profile.SheetConfig{}}
	if _, _, err := Parse(profile.Parser("NOPE"), in); err == nil {
		t.Fatal("未知解析器类型应返回错误")
	}
}
