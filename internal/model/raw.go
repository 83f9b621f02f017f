package model

import "time"

// RawFile 上传文件的不可变快照元信息
type RawFile struct {
	ID          int64     `json:"id"`
	BatchID     int64     `json:"batchId"`
	Filename    string    `json:"filename"`
	FileHash    string    `json:"fileHash"` // SHA256
	StoragePath string    `json:"storagePath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RawSheet Sheet 级快照：行列规模、表头签名、解析状态
type RawSheet struct {
	ID              int64       `json:"id"`
	RawFileID       int64       `json:"rawFileId"`
	SheetName       string      `json:"sheetName"`
	RowCount        int         `json:"rowCount"`
	ColCount        int         `json:"colCount"`
	HeaderSignature string      `json:"headerSignature,omitempty"`
	ParseStatus     SheetStatus `json:"parseStatus"`
	ParserType      string      `json:"parserType,omitempty"`
	Observations    int         `json:"observations"`
	ErrorCount      int         `json:"errorCount"`
	// CellsJSON 稀疏单元格快照（JSON），超大 sheet 只保留元信息时为空
	CellsJSON string `json:"-"`
}
