package store

import (
	"testing"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	id, err := s.CreateBatch("涌益周度.xlsx", "hash123", "YONGYI", "yongyi_weekly")
	if err != nil {
		t.Fatalf("创建批次失败: %v", err)
	}

	b, err := s.GetBatch(id)
	if err != nil {
		t.Fatalf("查询批次失败: %v", err)
	}
	if b.Status != model.BatchPending {
		t.Fatalf("初始状态 = %s", b.Status)
	}
	if b.Filename != "涌益周度.xlsx" || b.DatasetType != "yongyi_weekly" {
		t.Fatalf("批次字段错误: %+v", b)
	}

	if err := s.SetBatchStatus(id, model.BatchProcessing); err != nil {
		t.Fatalf("更新状态失败: %v", err)
	}

	b.Status = model.BatchPartial
	b.TotalRows = 100
	b.SuccessRows = 95
	b.FailedRows = 5
	b.Inserted = 90
	b.Updated = 5
	b.SheetCount = 3
	b.DurationMS = 1200
	if err := s.CompleteBatch(b); err != nil {
		t.Fatalf("完成批次失败: %v", err)
	}

	got, err := s.GetBatch(id)
	if err != nil {
		t.Fatalf("查询批次失败: %v", err)
	}
	if got.Status != model.BatchPartial || got.Inserted != 90 || got.FailedRows != 5 {
		t.Fatalf("完成后的批次: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at 未设置")
	}
}

func TestFailBatch(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	id, err := s.CreateBatch("bad.xlsx", "h", "SRC", "dt")
	if err != nil {
		t.Fatalf("创建批次失败: %v", err)
	}
	if err := s.FailBatch(id, "打开文件失败"); err != nil {
		t.Fatalf("FailBatch: %v", err)
	}
	b, err := s.GetBatch(id)
	if err != nil {
		t.Fatalf("查询批次失败: %v", err)
	}
	if b.Status != model.BatchFailed {
		t.Fatalf("状态 = %s", b.Status)
	}
}

func TestListBatches_NewestFirst(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	first, _ := s.CreateBatch("a.xlsx", "h1", "S", "d")
	second, _ := s.CreateBatch("b.xlsx", "h2", "S", "d")

	batches, err := s.ListBatches(10)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("批次数 = %d", len(batches))
	}
	if batches[0].ID != second || batches[1].ID != first {
		t.Fatalf("排序错误: %d, %d", batches[0].ID, batches[1].ID)
	}
}

func TestErrorRecords(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	id, _ := s.CreateBatch("a.xlsx", "h", "S", "d")
	records := []model.ErrorRecord{
		{BatchID: id, SheetName: "s1", RowNo: 5, ColName: "日期", ErrorType: model.ErrDateUnparseable, Message: "无法解析"},
		{BatchID: id, SheetName: "s1", ErrorType: model.ErrCommitFailure, Message: "约束冲突"},
	}
	if err := s.InsertErrors(records); err != nil {
		t.Fatalf("InsertErrors: %v", err)
	}

	got, err := s.ListErrors(id)
	if err != nil {
		t.Fatalf("ListErrors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("错误数 = %d", len(got))
	}
	if got[0].ErrorType != model.ErrDateUnparseable || got[0].RowNo != 5 {
		t.Fatalf("第一条: %+v", got[0])
	}

	n, err := s.CountErrors(id)
	if err != nil || n != 2 {
		t.Fatalf("CountErrors = %d, %v", n, err)
	}
}
