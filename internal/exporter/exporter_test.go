package exporter

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	batchID, err := s.CreateBatch("seed.xlsx", "hash", "GANGLIAN", "ganglian_daily")
	if err != nil {
		t.Fatalf("创建批次失败: %v", err)
	}
	d1 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	v1, v2 := 15.5, 15.7
	obs := []model.Observation{
		{MetricKey: "GL_D_PRICE_NATION", MetricName: "出栏均价", PeriodType: model.PeriodDay,
			ObsDate: &d1, Value: &v1, GeoCode: "NATION", Unit: "元/公斤",
			Tags: map[string]string{"scale": "规模场"}, DedupKey: "k1"},
		{MetricKey: "GL_D_PRICE_NATION", MetricName: "出栏均价", PeriodType: model.PeriodDay,
			ObsDate: &d2, Value: &v2, GeoCode: "NATION", Unit: "元/公斤", DedupKey: "k2"},
		{MetricKey: "GL_D_PRICE_PROVINCE", MetricName: "出栏均价", PeriodType: model.PeriodDay,
			ObsDate: &d1, Value: &v1, GeoCode: "四川", Unit: "元/公斤", DedupKey: "k3"},
	}
	tx, err := s.DB().Begin()
	if err != nil {
		t.Fatalf("开启事务失败: %v", err)
	}
	if _, err := s.UpsertObservations(tx, batchID, obs); err != nil {
		t.Fatalf("写入观测值失败: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	return s
}

func TestExport_RoundTrip(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	e := NewExporter(s)

	f, err := e.Export(store.ObservationFilter{MetricKey: "GL_D_PRICE_NATION"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("写缓冲失败: %v", err)
	}
	back, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer back.Close()

	rows, err := back.GetRows("观测值")
	if err != nil {
		t.Fatalf("读 sheet 失败: %v", err)
	}
	// 表头 + 过滤后的 2 行
	if len(rows) != 3 {
		t.Fatalf("行数 = %d, want 3", len(rows))
	}
	if rows[0][0] != "指标键" {
		t.Fatalf("表头 = %v", rows[0])
	}
	if rows[1][0] != "GL_D_PRICE_NATION" || rows[1][3] != "2024-01-05" {
		t.Fatalf("首行 = %v", rows[1])
	}
	if rows[1][10] != "scale=规模场" {
		t.Fatalf("标签列 = %q", rows[1][10])
	}
}

func TestExport_GeoFilter(t *testing.T) {
	t.Parallel()
	s := seedStore(t)
	e := NewExporter(s)

	f, err := e.Export(store.ObservationFilter{GeoCode: "四川"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("写缓冲失败: %v", err)
	}
	back, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer back.Close()

	rows, _ := back.GetRows("观测值")
	if len(rows) != 2 {
		t.Fatalf("行数 = %d, want 2", len(rows))
	}
	if rows[1][0] != "GL_D_PRICE_PROVINCE" || rows[1][8] != "四川" {
		t.Fatalf("行 = %v", rows[1])
	}
}
