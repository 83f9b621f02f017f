package importer

import (
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/metrics"
	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/parser"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

// ErrorCollector 收集单个批次的导入错误。
// 缓冲模式下行级错误先攒在内存，批次结束统一落库；
// sheet 级和文件级错误无论哪种模式都立即写入，
// 进程中途崩溃时已完成部分的诊断信息不丢失。
type ErrorCollector struct {
	store    *store.Store
	batchID  int64
	buffered bool

	buf      []model.ErrorRecord
	total    int
	warnings int
	flushErr error
}

// NewCollector 创建错误收集器，buffered 为 true 时行级错误延迟到 Flush 落库
func NewCollector(st *store.Store, batchID int64, buffered bool) *ErrorCollector {
	return &ErrorCollector{
		store:    st,
		batchID:  batchID,
		buffered: buffered,
	}
}

// Add 记录一条错误，缓冲模式下延迟落库
func (c *ErrorCollector) Add(rec model.ErrorRecord) {
	c.add(rec, false)
}

func (c *ErrorCollector) add(rec model.ErrorRecord, immediate bool) {
	rec.BatchID = c.batchID
	c.total++
	if rec.ErrorType == model.ErrOutOfRange {
		c.warnings++
	}
	metrics.ImportErrorsTotal.WithLabelValues(string(rec.ErrorType)).Inc()
	if c.buffered && !immediate {
		c.buf = append(c.buf, rec)
		return
	}
	if err := c.store.InsertErrors([]model.ErrorRecord{rec}); err != nil && c.flushErr == nil {
		c.flushErr = err
	}
}

// AddRowErrors 把解析器产出的行级错误批量转为错误记录
func (c *ErrorCollector) AddRowErrors(sheetName string, errs []parser.RowError) {
	for _, e := range errs {
		c.Add(model.ErrorRecord{
			SheetName: sheetName,
			RowNo:     e.Row,
			ColName:   e.Col,
			ErrorType: e.Type,
			Message:   e.Message,
		})
	}
}

// SheetError 记录 sheet 级错误（解析器/校验/入库抛出的异常），立即落库
func (c *ErrorCollector) SheetError(sheetName string, typ model.ErrorType, format string, args ...any) {
	c.add(model.ErrorRecord{
		SheetName: sheetName,
		ErrorType: typ,
		Message:   fmt.Sprintf(format, args...),
	}, true)
}

// FatalIO 记录文件级致命错误，立即落库
func (c *ErrorCollector) FatalIO(format string, args ...any) {
	c.add(model.ErrorRecord{
		ErrorType: model.ErrFatalIO,
		Message:   fmt.Sprintf(format, args...),
	}, true)
}

// Total 已记录错误总数（含 warning 级）
func (c *ErrorCollector) Total() int { return c.total }

// Errors 阻断级错误数（不含 out_of_range warning）
func (c *ErrorCollector) Errors() int { return c.total - c.warnings }

// Flush 把缓冲的错误写入存储，并返回途中即时写入积累的首个错误
func (c *ErrorCollector) Flush() error {
	if len(c.buf) > 0 {
		if err := c.store.InsertErrors(c.buf); err != nil {
			return fmt.Errorf("failed to flush error records: %w", err)
		}
		c.buf = c.buf[:0]
	}
	return c.flushErr
}
