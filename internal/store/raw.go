package store

import (
	"database/sql"
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// SaveRawFile 登记上传文件快照
func (s *Store) SaveRawFile(f *model.RawFile) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO raw_files (batch_id, filename, file_hash, storage_path)
		VALUES (?, ?, ?, ?)
	`, f.BatchID, f.Filename, f.FileHash, f.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("failed to save raw file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get raw file id: %w", err)
	}
	return id, nil
}

// GetRawFile 按 ID 读取文件快照（用于重放）
func (s *Store) GetRawFile(id int64) (*model.RawFile, error) {
	var f model.RawFile
	err := s.db.QueryRow(`
		SELECT id, batch_id, filename, file_hash, storage_path, created_at
		FROM raw_files WHERE id = ?
	`, id).Scan(&f.ID, &f.BatchID, &f.Filename, &f.FileHash, &f.StoragePath, &f.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("raw file %d not found", id)
		}
		return nil, fmt.Errorf("failed to get raw file: %w", err)
	}
	return &f, nil
}

// GetRawFileByBatch 取某批次登记的文件快照
func (s *Store) GetRawFileByBatch(batchID int64) (*model.RawFile, error) {
	var f model.RawFile
	err := s.db.QueryRow(`
		SELECT id, batch_id, filename, file_hash, storage_path, created_at
		FROM raw_files WHERE batch_id = ? ORDER BY id LIMIT 1
	`, batchID).Scan(&f.ID, &f.BatchID, &f.Filename, &f.FileHash, &f.StoragePath, &f.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("batch %d has no raw file", batchID)
		}
		return nil, fmt.Errorf("failed to get raw file: %w", err)
	}
	return &f, nil
}

// SaveRawSheet 登记 sheet 快照
func (s *Store) SaveRawSheet(sh *model.RawSheet) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO raw_sheets (raw_file_id, sheet_name, row_count, col_count,
			header_signature, parse_status, parser_type, observations, error_count, cells_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sh.RawFileID, sh.SheetName, sh.RowCount, sh.ColCount,
		sh.HeaderSignature, string(sh.ParseStatus), sh.ParserType, sh.Observations, sh.ErrorCount,
		nullableText(sh.CellsJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to save raw sheet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get raw sheet id: %w", err)
	}
	return id, nil
}

// UpdateRawSheetStatus 解析完成后回填 sheet 快照的状态与计数
func (s *Store) UpdateRawSheetStatus(id int64, status model.SheetStatus, parserType string, observations, errorCount int) error {
	_, err := s.db.Exec(`
		UPDATE raw_sheets SET parse_status = ?, parser_type = ?, observations = ?, error_count = ?
		WHERE id = ?
	`, string(status), parserType, observations, errorCount, id)
	if err != nil {
		return fmt.Errorf("failed to update raw sheet: %w", err)
	}
	return nil
}

// ListRawSheets 列出某文件的全部 sheet 快照（不含单元格内容）
func (s *Store) ListRawSheets(rawFileID int64) ([]*model.RawSheet, error) {
	rows, err := s.db.Query(`
		SELECT id, raw_file_id, sheet_name, row_count, col_count,
		       header_signature, parse_status, parser_type, observations, error_count
		FROM raw_sheets WHERE raw_file_id = ? ORDER BY id
	`, rawFileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw sheets: %w", err)
	}
	defer rows.Close()

	var out []*model.RawSheet
	for rows.Next() {
		var sh model.RawSheet
		var status string
		if err := rows.Scan(&sh.ID, &sh.RawFileID, &sh.SheetName, &sh.RowCount, &sh.ColCount,
			&sh.HeaderSignature, &status, &sh.ParserType, &sh.Observations, &sh.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan raw sheet: %w", err)
		}
		sh.ParseStatus = model.SheetStatus(status)
		out = append(out, &sh)
	}
	return out, rows.Err()
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
