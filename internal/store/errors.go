package store

import (
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// InsertErrors 追加写入一组错误记录
func (s *Store) InsertErrors(records []model.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error insert: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO ingest_errors (batch_id, sheet_name, row_no, col_name, error_type, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare error insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.BatchID, r.SheetName, r.RowNo, r.ColName, string(r.ErrorType), r.Message); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error records: %w", err)
	}
	return nil
}

// ListErrors 按批次读取错误明细
func (s *Store) ListErrors(batchID int64) ([]model.ErrorRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_id, sheet_name, row_no, col_name, error_type, message, created_at
		FROM ingest_errors WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list errors: %w", err)
	}
	defer rows.Close()

	var out []model.ErrorRecord
	for rows.Next() {
		var r model.ErrorRecord
		var typ string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.SheetName, &r.RowNo, &r.ColName, &typ, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error record: %w", err)
		}
		r.ErrorType = model.ErrorType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountErrors 批次错误条数
func (s *Store) CountErrors(batchID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ingest_errors WHERE batch_id = ?`, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count errors: %w", err)
	}
	return n, nil
}
