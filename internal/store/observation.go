package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

const defaultChunkSize = 1000

// UpsertResult 去重写入计数
type UpsertResult struct {
	Inserted int
	Updated  int
}

// UpsertObservations 幂等写入观测值。
// 分片 IN 查询已存在的 dedup_key，把候选划分为插入/更新两组，
// 再按分片批量写，值/标签/批次按最后写入者生效。
// 在调用方给定的事务内执行，sheet 级回滚不影响其他 sheet。
func (s *Store) UpsertObservations(tx *sql.Tx, batchID int64, obs []model.Observation) (UpsertResult, error) {
	var result UpsertResult
	if len(obs) == 0 {
		return result, nil
	}

	chunk := s.upsertChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	// 同一批候选内后出现的同 key 覆盖先出现的
	byKey := make(map[string]*model.Observation, len(obs))
	keys := make([]string, 0, len(obs))
	for i := range obs {
		k := obs[i].DedupKey
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = &obs[i]
	}

	existing, err := existingKeys(tx, keys, chunk)
	if err != nil {
		return result, err
	}

	var inserts, updates []*model.Observation
	for _, k := range keys {
		if existing[k] {
			updates = append(updates, byKey[k])
		} else {
			inserts = append(inserts, byKey[k])
		}
	}

	for start := 0; start < len(inserts); start += chunk {
		end := min(start+chunk, len(inserts))
		if err := insertObservations(tx, batchID, inserts[start:end]); err != nil {
			return result, err
		}
		result.Inserted += end - start
	}
	for _, o := range updates {
		if err := updateObservation(tx, batchID, o); err != nil {
			return result, err
		}
		result.Updated++
	}
	return result, nil
}

// existingKeys 分片 IN 查询已存在的去重键
func existingKeys(tx *sql.Tx, keys []string, chunk int) (map[string]bool, error) {
	existing := make(map[string]bool)
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		part := keys[start:end]

		placeholders := strings.Repeat("?,", len(part))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(part))
		for i, k := range part {
			args[i] = k
		}

		rows, err := tx.Query(
			`SELECT dedup_key FROM observations WHERE dedup_key IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing keys: %w", err)
		}
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan dedup key: %w", err)
			}
			existing[k] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

func insertObservations(tx *sql.Tx, batchID int64, obs []*model.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO observations
		(batch_id, metric_key, metric_name, period_type, obs_date, period_start, period_end,
		 value, raw_value, geo_code, geo_guessed, unit, tags_json, dedup_key) VALUES `)
	args := make([]any, 0, len(obs)*14)
	for i, o := range obs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, batchID, o.MetricKey, o.MetricName, string(o.PeriodType),
			sqlDate(o.ObsDate), sqlDate(o.PeriodStart), sqlDate(o.PeriodEnd),
			sqlValue(o.Value), o.RawValue, o.GeoCode, o.GeoGuessed, o.Unit,
			tagsJSON(o.Tags), o.DedupKey)
	}
	if _, err := tx.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert observations: %w", err)
	}
	return nil
}

func updateObservation(tx *sql.Tx, batchID int64, o *model.Observation) error {
	_, err := tx.Exec(`
		UPDATE observations SET
			batch_id = ?, value = ?, raw_value = ?, tags_json = ?,
			geo_guessed = ?, unit = ?, updated_at = CURRENT_TIMESTAMP
		WHERE dedup_key = ?
	`, batchID, sqlValue(o.Value), o.RawValue, tagsJSON(o.Tags), o.GeoGuessed, o.Unit, o.DedupKey)
	if err != nil {
		return fmt.Errorf("failed to update observation: %w", err)
	}
	return nil
}

// CountObservations 观测总行数
func (s *Store) CountObservations() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

// ObservationValue 按去重键读取单值（测试与查询边界用）
func (s *Store) ObservationValue(dedupKey string) (*float64, error) {
	var v sql.NullFloat64
	err := s.db.QueryRow(`SELECT value FROM observations WHERE dedup_key = ?`, dedupKey).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("observation %s not found", dedupKey)
		}
		return nil, fmt.Errorf("failed to query observation: %w", err)
	}
	if !v.Valid {
		return nil, nil
	}
	f := v.Float64
	return &f, nil
}

func sqlDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func sqlValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// tagsJSON 标签序列化。encoding/json 对 map 键排序，同组标签总是产出相同文本。
func tagsJSON(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "{}"
	}
	return string(b)
}
