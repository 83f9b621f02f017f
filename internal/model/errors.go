package model

import "time"

// ErrorType 导入错误分类
type ErrorType string

const (
	ErrDateUnparseable     ErrorType = "date_unparseable"
	ErrValueUncleanable    ErrorType = "value_uncleanable"
	ErrMissingRequired     ErrorType = "missing_required_dimension"
	ErrUnresolvableParser  ErrorType = "unresolvable_parser"
	ErrSheetException      ErrorType = "sheet_exception"
	ErrCommitFailure       ErrorType = "commit_failure"
	ErrFatalIO             ErrorType = "fatal_io"
	ErrOutOfRange          ErrorType = "out_of_range" // warning 级别，不阻断
)

// ErrorRecord 单条导入错误，定位到 sheet/行/列
type ErrorRecord struct {
	ID        int64     `json:"id"`
	BatchID   int64     `json:"batchId"`
	SheetName string    `json:"sheetName,omitempty"`
	RowNo     int       `json:"rowNo,omitempty"` // 从 1 开始，0 表示不适用
	ColName   string    `json:"colName,omitempty"`
	ErrorType ErrorType `json:"errorType"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
