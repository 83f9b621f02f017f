package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

func testProfile(t *testing.T) *profile.Registry {
	t.Helper()
	p := &profile.Profile{
		ProfileCode: "TEST_V1",
		SourceCode:  "GANGLIAN",
		DatasetType: "test_daily",
		Defaults:    profile.Defaults{PeriodType: model.PeriodDay},
		Sheets: []profile.SheetEntry{
			{
				SheetName: "肥标价差",
				Action:    profile.ActionParse,
				Parser:    profile.ParserLegacyVendorFixed,
				Config: profile.SheetConfig{
					TitleRow: 1, IndicatorRow: 2, UnitRow: 3, UpdateTimeRow: 4, DataStartRow: 5,
				},
			},
			{
				SheetName: "全国均价",
				Action:    profile.ActionParse,
				Parser:    profile.ParserNarrowDateRows,
				Config: profile.SheetConfig{
					HeaderRow: 1, DataStartRow: 2,
					Metrics: []profile.MetricColumn{
						{Col: "出栏均价", MetricKey: "GL_D_PRICE_NATION", Unit: "元/公斤"},
					},
				},
			},
			{
				SheetName: "均价宽表",
				Action:    profile.ActionParse,
				Parser:    profile.ParserNarrowDateRows,
				Config: profile.SheetConfig{
					// 仅物化到独立表，指标列不配置 metric_key
					Metrics: []profile.MetricColumn{{Col: "出栏均价"}},
					Table: &profile.TableMapping{
						TableName: "daily_nation_price",
						UniqueKey: []string{"date"},
						Columns: map[string]profile.ColumnRule{
							"date":  {Source: "date"},
							"price": {Source: "value"},
						},
					},
				},
			},
			{SheetName: "说明", Action: profile.ActionSkipMeta},
		},
		Rules: []profile.DispatchRule{
			{Priority: 10, SheetNameRegex: "备份", Action: profile.ActionRawOnly},
		},
	}
	reg, err := profile.NewRegistry(p)
	if err != nil {
		t.Fatalf("注册 profile 失败: %v", err)
	}
	return reg
}

func testCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewCoordinator(s, testProfile(t), zap.NewNop()), s
}

func setRow(t *testing.T, f *excelize.File, sheet string, row int, values []any) {
	t.Helper()
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			t.Fatalf("坐标转换失败: %v", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			t.Fatalf("写单元格失败: %v", err)
		}
	}
}

func writeJunk(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("这不是一个 xlsx 文件"), 0644); err != nil {
		t.Fatalf("写文件失败: %v", err)
	}
}

// writeSpreadWorkbook 构造含肥标价差 sheet 的最小工作簿
func writeSpreadWorkbook(t *testing.T, path string, spreadRows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "肥标价差")
	for i, row := range spreadRows {
		setRow(t, f, "肥标价差", i+1, row)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}
}

func TestImportFile_EndToEnd(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	path := filepath.Join(t.TempDir(), "spread.xlsx")
	writeSpreadWorkbook(t, path, [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, "2024-01-06 09:00"},
		{"2024/1/5", 1.23},
	})

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if report.Status != model.BatchSuccess {
		t.Fatalf("状态 = %s, sheets = %+v", report.Status, report.Sheets)
	}
	if report.Inserted != 1 || report.ErrorRows != 0 {
		t.Fatalf("inserted=%d error_rows=%d", report.Inserted, report.ErrorRows)
	}

	batch, err := s.GetBatch(report.BatchID)
	if err != nil {
		t.Fatalf("查询批次失败: %v", err)
	}
	if batch.Status != model.BatchSuccess || batch.Inserted != 1 {
		t.Fatalf("批次: %+v", batch)
	}
	if batch.MetricCount != 1 {
		t.Fatalf("metric_count = %d", batch.MetricCount)
	}

	// 幂等重放：相同文件第二次导入 0 新增
	report2 := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if report2.Status != model.BatchSuccess {
		t.Fatalf("二次状态 = %s", report2.Status)
	}
	if report2.Inserted != 0 || report2.Updated != 1 {
		t.Fatalf("二次 inserted=%d updated=%d", report2.Inserted, report2.Updated)
	}

	n, err := s.CountObservations()
	if err != nil || n != 1 {
		t.Fatalf("总行数 = %d, %v", n, err)
	}
}

func TestImportFile_PartialFailureIsolation(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	// sheet A 含坏日期行，sheet B 完全正常
	path := filepath.Join(t.TempDir(), "mixed.xlsx")
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "肥标价差")
	rows := [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, nil},
		{"不是日期", 1.0},
		{"2024/1/5", 1.1},
	}
	for i, row := range rows {
		setRow(t, f, "肥标价差", i+1, row)
	}
	f.NewSheet("全国均价")
	setRow(t, f, "全国均价", 1, []any{"日期", "出栏均价"})
	setRow(t, f, "全国均价", 2, []any{"2024/1/5", 15.5})
	setRow(t, f, "全国均价", 3, []any{"2024/1/6", 15.7})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if report.Status != model.BatchPartial {
		t.Fatalf("状态 = %s, want partial", report.Status)
	}
	// 坏行不拖垮好行：1 行价差 + 2 行均价
	if report.Inserted != 3 {
		t.Fatalf("inserted = %d, want 3", report.Inserted)
	}
	if report.ErrorRows == 0 {
		t.Fatal("坏日期应计入 error_rows")
	}

	errs, err := s.ListErrors(report.BatchID)
	if err != nil {
		t.Fatalf("查询错误失败: %v", err)
	}
	found := false
	for _, e := range errs {
		if e.ErrorType == model.ErrDateUnparseable && e.SheetName == "肥标价差" {
			found = true
		}
	}
	if !found {
		t.Fatalf("缺少 date_unparseable 记录: %+v", errs)
	}
}

func TestImportFile_UnknownSheetDowngradesBatch(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	// 一个干净 sheet + 一个无法识别的 sheet
	path := filepath.Join(t.TempDir(), "meta.xlsx")
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "全国均价")
	setRow(t, f, "全国均价", 1, []any{"日期", "出栏均价"})
	setRow(t, f, "全国均价", 2, []any{"2024/1/5", 15.5})
	f.NewSheet("说明")
	setRow(t, f, "说明", 1, []any{"关于本工作簿"})
	f.NewSheet("神秘报表")
	setRow(t, f, "神秘报表", 1, []any{"未知列A", "未知列B"})
	setRow(t, f, "神秘报表", 2, []any{"x", "y"})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	// 收集到 unresolvable_parser 错误的批次不能是 success
	if report.Status != model.BatchPartial {
		t.Fatalf("状态 = %s, want partial", report.Status)
	}
	if report.Inserted != 1 {
		t.Fatalf("干净 sheet 应正常入库, inserted = %d", report.Inserted)
	}
	if report.SkippedSheets != 2 || report.ParsedSheets != 1 {
		t.Fatalf("skipped=%d parsed=%d", report.SkippedSheets, report.ParsedSheets)
	}

	// 三个 sheet 都应有 raw 层快照
	raw, err := s.GetRawFileByBatch(report.BatchID)
	if err != nil {
		t.Fatalf("查询 raw 文件失败: %v", err)
	}
	sheets, err := s.ListRawSheets(raw.ID)
	if err != nil || len(sheets) != 3 {
		t.Fatalf("raw sheets = %d, %v", len(sheets), err)
	}

	// 未识别 sheet 记录 unresolvable_parser
	errs, _ := s.ListErrors(report.BatchID)
	found := false
	for _, e := range errs {
		if e.ErrorType == model.ErrUnresolvableParser {
			found = true
		}
	}
	if !found {
		t.Fatal("缺少 unresolvable_parser 记录")
	}
}

func TestImportFile_DeclaredRawOnlyStaysSuccess(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	// 规则显式声明只存快照的 sheet 不算错误
	path := filepath.Join(t.TempDir(), "backup.xlsx")
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "数据备份2023")
	setRow(t, f, "数据备份2023", 1, []any{"a", "b"})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if report.Status != model.BatchSuccess {
		t.Fatalf("状态 = %s, want success", report.Status)
	}
	if n, _ := s.CountErrors(report.BatchID); n != 0 {
		t.Fatalf("声明为 raw-only 的 sheet 不应产生错误记录, got %d", n)
	}
}

func TestImportFile_TableMappedSheetWithoutMetricKeys(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	path := filepath.Join(t.TempDir(), "table.xlsx")
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "均价宽表")
	setRow(t, f, "均价宽表", 1, []any{"日期", "出栏均价"})
	setRow(t, f, "均价宽表", 2, []any{"2024/1/5", 15.5})
	setRow(t, f, "均价宽表", 3, []any{"2024/1/6", 15.7})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	// 没有 metric_key 的观测不应被校验拦下
	if report.Status != model.BatchSuccess {
		t.Fatalf("状态 = %s, sheets = %+v", report.Status, report.Sheets)
	}
	if report.ErrorRows != 0 {
		t.Fatalf("error_rows = %d", report.ErrorRows)
	}
	n, err := s.CountTableRecords("daily_nation_price")
	if err != nil || n != 2 {
		t.Fatalf("宽表记录 = %d, %v", n, err)
	}
}

func TestImportFile_FatalOpenError(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	// 不是合法 xlsx 的文件
	path := filepath.Join(t.TempDir(), "junk.xlsx")
	writeJunk(t, path)

	report := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if report.Status != model.BatchFailed {
		t.Fatalf("状态 = %s, want failed", report.Status)
	}

	batch, err := s.GetBatch(report.BatchID)
	if err != nil {
		t.Fatalf("查询批次失败: %v", err)
	}
	if batch.Status != model.BatchFailed {
		t.Fatalf("批次状态 = %s", batch.Status)
	}
	errs, _ := s.ListErrors(report.BatchID)
	found := false
	for _, e := range errs {
		if e.ErrorType == model.ErrFatalIO {
			found = true
		}
	}
	if !found {
		t.Fatal("缺少 fatal_io 记录")
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()
	c, s := testCoordinator(t)

	path := filepath.Join(t.TempDir(), "spread.xlsx")
	writeSpreadWorkbook(t, path, [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, nil},
		{"2024/1/5", 1.23},
	})

	first := c.ImportFile(ImportOptions{FilePath: path, DatasetType: "test_daily"}, nil)
	if first.Status != model.BatchSuccess {
		t.Fatalf("首次状态 = %s", first.Status)
	}

	events, err := c.Replay(first.BatchID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	var report *model.ImportReport
	for ev := range events {
		if ev.Type == "done" {
			report, _ = ev.Report.(*model.ImportReport)
		}
	}
	if report == nil {
		t.Fatal("重放未产生报告")
	}
	if report.BatchID == first.BatchID {
		t.Fatal("重放应创建新批次")
	}
	if report.Inserted != 0 || report.Updated != 1 {
		t.Fatalf("重放 inserted=%d updated=%d", report.Inserted, report.Updated)
	}

	n, _ := s.CountObservations()
	if n != 1 {
		t.Fatalf("总行数 = %d", n)
	}
}

func TestImport_ProgressEvents(t *testing.T) {
	t.Parallel()
	c, _ := testCoordinator(t)

	path := filepath.Join(t.TempDir(), "spread.xlsx")
	writeSpreadWorkbook(t, path, [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, nil},
		{"2024/1/5", 1.23},
	})

	seen := map[string]bool{}
	for ev := range c.Import(ImportOptions{FilePath: path, DatasetType: "test_daily"}) {
		seen[ev.Type] = true
	}
	for _, typ := range []string{"start", "sheet_start", "sheet_done", "done"} {
		if !seen[typ] {
			t.Fatalf("缺少 %s 事件, 实际: %v", typ, seen)
		}
	}
}
