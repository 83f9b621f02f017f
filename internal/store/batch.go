package store

import (
	"database/sql"
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// CreateBatch 登记一次导入尝试，返回批次 ID
func (s *Store) CreateBatch(filename, fileHash, sourceCode, datasetType string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO import_batches (filename, file_hash, source_code, dataset_type, status)
		VALUES (?, ?, ?, ?, 'pending')
	`, filename, fileHash, sourceCode, datasetType)
	if err != nil {
		return 0, fmt.Errorf("failed to create batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch id: %w", err)
	}
	return id, nil
}

// SetBatchStatus 更新批次状态
func (s *Store) SetBatchStatus(id int64, status model.BatchStatus) error {
	_, err := s.db.Exec(`UPDATE import_batches SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set batch status: %w", err)
	}
	return nil
}

// CompleteBatch 落终态并写入全部计数
func (s *Store) CompleteBatch(b *model.ImportBatch) error {
	_, err := s.db.Exec(`
		UPDATE import_batches SET
			status = ?,
			total_rows = ?,
			success_rows = ?,
			failed_rows = ?,
			inserted = ?,
			updated = ?,
			sheet_count = ?,
			metric_count = ?,
			duration_ms = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(b.Status), b.TotalRows, b.SuccessRows, b.FailedRows,
		b.Inserted, b.Updated, b.SheetCount, b.MetricCount, b.DurationMS, b.ID)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	return nil
}

// FailBatch 文件级致命错误的终态
func (s *Store) FailBatch(id int64, message string) error {
	_, err := s.db.Exec(`
		UPDATE import_batches SET status = 'failed', error_message = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, message, id)
	if err != nil {
		return fmt.Errorf("failed to fail batch: %w", err)
	}
	return nil
}

// GetBatch 读取单个批次
func (s *Store) GetBatch(id int64) (*model.ImportBatch, error) {
	row := s.db.QueryRow(`
		SELECT id, filename, file_hash, source_code, dataset_type, status,
		       total_rows, success_rows, failed_rows, inserted, updated,
		       sheet_count, metric_count, duration_ms, created_at, completed_at
		FROM import_batches WHERE id = ?
	`, id)
	return scanBatch(row)
}

// ListBatches 按创建时间倒序列出批次
func (s *Store) ListBatches(limit int) ([]*model.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, filename, file_hash, source_code, dataset_type, status,
		       total_rows, success_rows, failed_rows, inserted, updated,
		       sheet_count, metric_count, duration_ms, created_at, completed_at
		FROM import_batches ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var out []*model.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountDistinctMetrics 批次写入的去重指标数
func (s *Store) CountDistinctMetrics(batchID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT metric_key) FROM observations WHERE batch_id = ?`, batchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(r rowScanner) (*model.ImportBatch, error) {
	var b model.ImportBatch
	var status string
	var completed sql.NullTime
	err := r.Scan(&b.ID, &b.Filename, &b.FileHash, &b.SourceCode, &b.DatasetType, &status,
		&b.TotalRows, &b.SuccessRows, &b.FailedRows, &b.Inserted, &b.Updated,
		&b.SheetCount, &b.MetricCount, &b.DurationMS, &b.CreatedAt, &completed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("batch not found")
		}
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}
	b.Status = model.BatchStatus(status)
	if completed.Valid {
		t := completed.Time
		b.CompletedAt = &t
	}
	return &b, nil
}
