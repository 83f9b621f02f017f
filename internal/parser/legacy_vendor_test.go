package parser

import (
	"testing"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
)

func legacyInput(sheet string, rows [][]string) Input {
	return Input{
		Grid: NewGrid(sheet, rows),
		Config: &profile.SheetConfig{
			TitleRow: 1, IndicatorRow: 2, UnitRow: 3, UpdateTimeRow: 4, DataStartRow: 5,
		},
		SourceCode:    "GANGLIAN",
		DefaultPeriod: model.PeriodDay,
	}
}

func TestParseLegacyVendorFixed_FatStdSpread(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{"", "元/公斤"},
		{"", "2024-01-06 09:00"},
		{"2024/1/5", "1.23"},
	}
	obs, errs := ParseLegacyVendorFixed(legacyInput("肥标价差", rows))
	if len(errs) != 0 {
		t.Fatalf("不应有错误: %v", errs)
	}
	if len(obs) != 1 {
		t.Fatalf("观测数 = %d, want 1", len(obs))
	}

	o := obs[0]
	if o.MetricKey != "GL_D_FAT_STD_SPREAD" {
		t.Fatalf("metric_key = %s", o.MetricKey)
	}
	if o.GeoCode != "四川" {
		t.Fatalf("geo_code = %s", o.GeoCode)
	}
	if o.GeoGuessed {
		t.Fatal("已知省份不应标记为猜测")
	}
	if o.PeriodType != model.PeriodDay {
		t.Fatalf("period_type = %s", o.PeriodType)
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if o.ObsDate == nil || !o.ObsDate.Equal(want) {
		t.Fatalf("obs_date = %v", o.ObsDate)
	}
	if o.Value == nil || *o.Value != 1.23 {
		t.Fatalf("value = %v", o.Value)
	}
	if o.Unit != "元/公斤" {
		t.Fatalf("unit = %s", o.Unit)
	}
	if o.Tags["update_time"] != "2024-01-06 09:00" {
		t.Fatalf("update_time = %s", o.Tags["update_time"])
	}
	if o.DedupKey == "" {
		t.Fatal("dedup_key 为空")
	}

	// 同一输入再次解析，dedup_key 必须稳定
	obs2, _ := ParseLegacyVendorFixed(legacyInput("肥标价差", rows))
	if obs2[0].DedupKey != o.DedupKey {
		t.Fatal("重复解析的 dedup_key 不一致")
	}
}

func TestParseLegacyVendorFixed_WeeklySheet(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"周度价差"},
		{"日期", "商品猪：出栏均价：河南（周）"},
		{"", "元/公斤"},
		{"", ""},
		{"2024/1/7", "14.8"},
	}
	in := legacyInput("分省区猪价（周）", rows)
	obs, errs := ParseLegacyVendorFixed(in)
	if len(errs) != 0 || len(obs) != 1 {
		t.Fatalf("obs=%d errs=%v", len(obs), errs)
	}
	o := obs[0]
	if o.PeriodType != model.PeriodWeek {
		t.Fatalf("period_type = %s", o.PeriodType)
	}
	if o.ObsDate != nil {
		t.Fatal("周度观测不应设置 obs_date")
	}
	end := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -6)
	if o.PeriodEnd == nil || !o.PeriodEnd.Equal(end) {
		t.Fatalf("period_end = %v", o.PeriodEnd)
	}
	if o.PeriodStart == nil || !o.PeriodStart.Equal(start) {
		t.Fatalf("period_start = %v", o.PeriodStart)
	}
}

func TestParseLegacyVendorFixed_BadDateRecorded(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）", "生猪标肥：价差：贵州（日）"},
		{"", "元/公斤", "元/公斤"},
		{"", "", ""},
		{"不是日期", "1.0", "2.0"},
		{"2024/1/5", "1.1", "2.1"},
	}
	obs, errs := ParseLegacyVendorFixed(legacyInput("肥标价差", rows))
	if len(obs) != 2 {
		t.Fatalf("观测数 = %d, want 2", len(obs))
	}
	// 同一行的坏日期只记一次
	if len(errs) != 1 {
		t.Fatalf("错误数 = %d, want 1: %v", len(errs), errs)
	}
	if errs[0].Type != model.ErrDateUnparseable {
		t.Fatalf("错误类型 = %s", errs[0].Type)
	}
	if errs[0].Row != 5 {
		t.Fatalf("错误行号 = %d", errs[0].Row)
	}
}

func TestExtractLegacyGeo(t *testing.T) {
	t.Parallel()

	geo, guessed := extractLegacyGeo("生猪标肥：价差：四川（日）")
	if geo != "四川" || guessed {
		t.Fatalf("got %q guessed=%v", geo, guessed)
	}

	// 不在省份表里的地区名按低置信度处理
	geo, guessed = extractLegacyGeo("生猪标肥：价差：川南片区（日）")
	if geo != "川南片区" || !guessed {
		t.Fatalf("got %q guessed=%v", geo, guessed)
	}

	geo, guessed = extractLegacyGeo("没有冒号的表头")
	if geo != "" || guessed {
		t.Fatalf("got %q guessed=%v", geo, guessed)
	}
}
