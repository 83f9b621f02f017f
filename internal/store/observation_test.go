package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleObs(key string, value float64) model.Observation {
	d := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	v := value
	return model.Observation{
		MetricKey:  "YY_W_PRICE",
		MetricName: "出栏均价",
		PeriodType: model.PeriodDay,
		ObsDate:    &d,
		Value:      &v,
		GeoCode:    "四川",
		Unit:       "元/公斤",
		Tags:       map[string]string{"scale": "规模场"},
		DedupKey:   key,
	}
}

func upsert(t *testing.T, s *Store, batchID int64, obs []model.Observation) UpsertResult {
	t.Helper()
	tx, err := s.DB().Begin()
	if err != nil {
		t.Fatalf("开启事务失败: %v", err)
	}
	res, err := s.UpsertObservations(tx, batchID, obs)
	if err != nil {
		tx.Rollback()
		t.Fatalf("upsert 失败: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	return res
}

func TestUpsertObservations_Idempotent(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	obs := []model.Observation{
		sampleObs("key-a", 15.5),
		sampleObs("key-b", 16.0),
	}

	res := upsert(t, s, 1, obs)
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("首次导入 inserted=%d updated=%d", res.Inserted, res.Updated)
	}

	// 第二次完全相同的导入：0 新增，全部走更新
	res = upsert(t, s, 2, obs)
	if res.Inserted != 0 {
		t.Fatalf("重复导入 inserted=%d, want 0", res.Inserted)
	}
	if res.Updated != 2 {
		t.Fatalf("重复导入 updated=%d, want 2", res.Updated)
	}

	n, err := s.CountObservations()
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if n != 2 {
		t.Fatalf("总行数 = %d, want 2", n)
	}
}

func TestUpsertObservations_LastWriterWins(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	upsert(t, s, 1, []model.Observation{sampleObs("key-a", 15.5)})
	upsert(t, s, 2, []model.Observation{sampleObs("key-a", 17.2)})

	v, err := s.ObservationValue("key-a")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if v == nil || *v != 17.2 {
		t.Fatalf("value = %v, want 17.2", v)
	}
}

func TestUpsertObservations_DuplicateKeysInOneBatch(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	// 同批次内同 key 出现两次：后出现者生效，且只插入一行
	res := upsert(t, s, 1, []model.Observation{
		sampleObs("key-a", 10.0),
		sampleObs("key-a", 11.0),
	})
	if res.Inserted != 1 {
		t.Fatalf("inserted = %d, want 1", res.Inserted)
	}

	v, err := s.ObservationValue("key-a")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if v == nil || *v != 11.0 {
		t.Fatalf("value = %v, want 11.0", v)
	}
}

func TestUpsertObservations_ChunkedLookup(t *testing.T) {
	t.Parallel()

	s, err := New(filepath.Join(t.TempDir(), "test.db"), WithUpsertChunkSize(3))
	if err != nil {
		t.Fatalf("初始化存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var obs []model.Observation
	for i := 0; i < 10; i++ {
		o := sampleObs(string(rune('a'+i))+"-key", float64(i))
		obs = append(obs, o)
	}
	res := upsert(t, s, 1, obs)
	if res.Inserted != 10 {
		t.Fatalf("inserted = %d, want 10", res.Inserted)
	}
	res = upsert(t, s, 2, obs)
	if res.Inserted != 0 || res.Updated != 10 {
		t.Fatalf("二次导入 inserted=%d updated=%d", res.Inserted, res.Updated)
	}
}
