package model

import "time"

// BatchStatus 批次状态
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchSuccess    BatchStatus = "success"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// ImportBatch 一次上传/导入尝试
type ImportBatch struct {
	ID          int64       `json:"id"`
	Filename    string      `json:"filename"`
	FileHash    string      `json:"fileHash"` // SHA256
	SourceCode  string      `json:"sourceCode"`
	DatasetType string      `json:"datasetType"`
	Status      BatchStatus `json:"status"`
	TotalRows   int         `json:"totalRows"`
	SuccessRows int         `json:"successRows"`
	FailedRows  int         `json:"failedRows"`
	Inserted    int         `json:"inserted"`
	Updated     int         `json:"updated"`
	SheetCount  int         `json:"sheetCount"`
	MetricCount int         `json:"metricCount"`
	DurationMS  int64       `json:"durationMs"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// SheetStatus Sheet 处理子状态
type SheetStatus string

const (
	SheetPending SheetStatus = "pending"
	SheetParsed  SheetStatus = "parsed"
	SheetSkipped SheetStatus = "skipped"
	SheetRawOnly SheetStatus = "raw_only"
	SheetFailed  SheetStatus = "failed"
)

// SheetResult 单个 Sheet 的处理结果
type SheetResult struct {
	SheetName    string        `json:"sheetName"`
	Status       SheetStatus   `json:"status"`
	Parser       string        `json:"parser,omitempty"`
	Reason       string        `json:"reason,omitempty"` // 跳过/失败原因
	Observations int           `json:"observations"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	ErrorRows    int           `json:"errorRows"`
	Duration     time.Duration `json:"duration"`
}

// ImportReport 单个文件的导入汇总
type ImportReport struct {
	BatchID      int64         `json:"batchId"`
	Filename     string        `json:"filename"`
	TotalSheets  int           `json:"totalSheets"`
	ParsedSheets int           `json:"parsedSheets"`
	SkippedSheets int          `json:"skippedSheets"`
	FailedSheets int           `json:"failedSheets"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	ErrorRows    int           `json:"errorRows"`
	Status       BatchStatus   `json:"status"`
	Duration     time.Duration `json:"duration"`
	Sheets       []SheetResult `json:"sheets"`
}
