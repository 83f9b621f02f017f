package store

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UpsertTableRecords 写入独立表物化记录。
// record_key 由 unique_key 列取值拼接哈希得出，重复导入覆盖旧值。
func (s *Store) UpsertTableRecords(tx *sql.Tx, tableName string, batchID int64, uniqueKey []string, records []map[string]any) (UpsertResult, error) {
	var result UpsertResult
	for _, rec := range records {
		key := tableRecordKey(tableName, uniqueKey, rec)
		payload, err := json.Marshal(rec)
		if err != nil {
			return result, fmt.Errorf("failed to marshal table record: %w", err)
		}

		var exists int
		err = tx.QueryRow(`SELECT COUNT(*) FROM table_records WHERE table_name = ? AND record_key = ?`,
			tableName, key).Scan(&exists)
		if err != nil {
			return result, fmt.Errorf("failed to check table record: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO table_records (table_name, batch_id, record_key, record_json)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(table_name, record_key) DO UPDATE SET
				batch_id = excluded.batch_id,
				record_json = excluded.record_json,
				updated_at = CURRENT_TIMESTAMP
		`, tableName, batchID, key, string(payload))
		if err != nil {
			return result, fmt.Errorf("failed to upsert table record: %w", err)
		}
		if exists > 0 {
			result.Updated++
		} else {
			result.Inserted++
		}
	}
	return result, nil
}

// ListTableRecords 读出某独立表在某批次写入的记录
func (s *Store) ListTableRecords(tableName string, batchID int64) ([]map[string]any, error) {
	rows, err := s.db.Query(`
		SELECT record_json FROM table_records
		WHERE table_name = ? AND batch_id = ? ORDER BY id
	`, tableName, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table records: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan table record: %w", err)
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode table record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountTableRecords 某独立表的总记录数
func (s *Store) CountTableRecords(tableName string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM table_records WHERE table_name = ?`, tableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count table records: %w", err)
	}
	return n, nil
}

// tableRecordKey unique_key 列取值的稳定哈希；未声明 unique_key 时取全记录
func tableRecordKey(tableName string, uniqueKey []string, rec map[string]any) string {
	var parts []string
	if len(uniqueKey) > 0 {
		for _, k := range uniqueKey {
			parts = append(parts, fmt.Sprintf("%s=%v", k, rec[k]))
		}
	} else {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, rec[k]))
		}
	}
	sum := sha1.Sum([]byte(tableName + "|" + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
