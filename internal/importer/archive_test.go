package importer

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

// writeZip 把一组已有文件按给定成员名打进 zip 包
func writeZip(t *testing.T, zipPath string, members map[string]string) {
	t.Helper()
	zf, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("创建压缩包失败: %v", err)
	}
	defer zf.Close()
	zw := zip.NewWriter(zf)
	for name, src := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("写压缩包成员失败: %v", err)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			t.Fatalf("读成员文件失败: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("写成员内容失败: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭压缩包失败: %v", err)
	}
}

func TestImportArchive_MembersImported(t *testing.T) {
	t.Parallel()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c := NewCoordinator(s, testProfile(t), zap.NewNop(), WithArchiveDir(t.TempDir()))

	dir := t.TempDir()
	wbPath := filepath.Join(dir, "spread.xlsx")
	writeSpreadWorkbook(t, wbPath, [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, nil},
		{"2024/1/5", 1.23},
	})
	zipPath := filepath.Join(dir, "bundle.zip")
	writeZip(t, zipPath, map[string]string{
		"月度数据/spread.xlsx": wbPath,
		"月度数据/说明.txt":      wbPath, // 非工作簿成员应被跳过
	})

	var reports []*model.ImportReport
	for ev := range c.ImportArchive(zipPath, ImportOptions{DatasetType: "test_daily"}) {
		if ev.Type == "done" {
			reports, _ = ev.Report.([]*model.ImportReport)
		}
	}
	if len(reports) != 1 {
		t.Fatalf("成员批次数 = %d, want 1", len(reports))
	}
	if reports[0].Status != model.BatchSuccess || reports[0].Inserted != 1 {
		t.Fatalf("成员报告: %+v", reports[0])
	}
}

func TestImportArchive_MemberReplayable(t *testing.T) {
	t.Parallel()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c := NewCoordinator(s, testProfile(t), zap.NewNop(), WithArchiveDir(t.TempDir()))

	dir := t.TempDir()
	wbPath := filepath.Join(dir, "spread.xlsx")
	writeSpreadWorkbook(t, wbPath, [][]any{
		{"标肥价差数据"},
		{"日期", "生猪标肥：价差：四川（日）"},
		{nil, "元/公斤"},
		{nil, nil},
		{"2024/1/5", 1.23},
	})
	zipPath := filepath.Join(dir, "bundle.zip")
	writeZip(t, zipPath, map[string]string{"spread.xlsx": wbPath})

	var reports []*model.ImportReport
	for ev := range c.ImportArchive(zipPath, ImportOptions{DatasetType: "test_daily"}) {
		if ev.Type == "done" {
			reports, _ = ev.Report.([]*model.ImportReport)
		}
	}
	if len(reports) != 1 {
		t.Fatalf("成员批次数 = %d, want 1", len(reports))
	}
	batchID := reports[0].BatchID

	// 解包出来的成员文件要在导入后继续存在，否则批次无法重放
	raw, err := s.GetRawFileByBatch(batchID)
	if err != nil {
		t.Fatalf("查询 raw 文件失败: %v", err)
	}
	if _, err := os.Stat(raw.StoragePath); err != nil {
		t.Fatalf("成员文件导入后应保留: %v", err)
	}

	events, err := c.Replay(batchID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	var replayed *model.ImportReport
	for ev := range events {
		if ev.Type == "done" {
			replayed, _ = ev.Report.(*model.ImportReport)
		}
	}
	if replayed == nil {
		t.Fatal("重放未产生报告")
	}
	if replayed.Status != model.BatchSuccess {
		t.Fatalf("重放状态 = %s", replayed.Status)
	}
	if replayed.Inserted != 0 || replayed.Updated != 1 {
		t.Fatalf("重放 inserted=%d updated=%d", replayed.Inserted, replayed.Updated)
	}
}
