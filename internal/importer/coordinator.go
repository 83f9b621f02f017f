package importer

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/mapper"
	"github.com/xpchen/hogprice-insight-sub000/internal/metrics"
	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/parser"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
	"github.com/xpchen/hogprice-insight-sub000/internal/validator"
)

// Coordinator 导入协调器：一个批次从原始文件到规范化观测值的全流程。
// 批次内 sheet 串行处理，每个 sheet 独立事务提交，
// 单 sheet 失败只回滚自身，不影响已提交和后续的 sheet。
type Coordinator struct {
	store        *store.Store
	registry     *profile.Registry
	log          *zap.Logger
	rawCellLimit int
	archiveDir   string
}

// Option 协调器可选配置
type Option func(*Coordinator)

// WithRawCellLimit 设置 raw 层快照保留的最大单元格数，超出只存元信息
func WithRawCellLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.rawCellLimit = n
		}
	}
}

// WithArchiveDir 设置压缩包成员的解包目录。
// 成员文件作为批次的原始文件保留在这里，重放依赖该路径。
func WithArchiveDir(dir string) Option {
	return func(c *Coordinator) {
		c.archiveDir = dir
	}
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store, reg *profile.Registry, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        st,
		registry:     reg,
		log:          log,
		rawCellLimit: defaultRawCellLimit,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const defaultRawCellLimit = 200_000

// ImportOptions 单个文件的导入选项
type ImportOptions struct {
	FilePath    string
	Filename    string // 为空时取 FilePath 的 base
	DatasetType string // 为空时按文件名模式自动识别
	SourceCode  string // 为空时取 profile 的 source_code
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string    `json:"type"` // start/sheet_start/sheet_done/warning/error/done
	BatchID   int64     `json:"batchId,omitempty"`
	Sheet     string    `json:"sheet,omitempty"`
	Message   string    `json:"message"`
	Report    any       `json:"report,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Import 异步执行导入，返回进度通道。通道在导入结束后关闭，
// 最后一个 done 事件携带完整报告。
func (c *Coordinator) Import(opts ImportOptions) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 100)
	go func() {
		defer close(ch)
		report := c.ImportFile(opts, ch)
		c.send(ch, ProgressEvent{
			Type:      "done",
			BatchID:   report.BatchID,
			Message:   fmt.Sprintf("导入完成: %s", report.Status),
			Report:    report,
			Timestamp: time.Now(),
		})
	}()
	return ch
}

// ImportFile 同步执行导入。progress 可为 nil。
// 任何失败都会体现在返回报告的状态里，不作为 error 抛出。
func (c *Coordinator) ImportFile(opts ImportOptions, progress chan<- ProgressEvent) *model.ImportReport {
	start := time.Now()
	filename := opts.Filename
	if filename == "" {
		filename = filepath.Base(opts.FilePath)
	}

	report := &model.ImportReport{Filename: filename, Status: model.BatchFailed}

	hash, err := fileSHA256(opts.FilePath)
	if err != nil {
		c.log.Error("读取上传文件失败", zap.String("file", opts.FilePath), zap.Error(err))
		report.Duration = time.Since(start)
		return report
	}

	prof := c.resolveProfile(filename, opts.DatasetType)
	sourceCode := opts.SourceCode
	datasetType := opts.DatasetType
	if prof != nil {
		if sourceCode == "" {
			sourceCode = prof.SourceCode
		}
		if datasetType == "" {
			datasetType = prof.DatasetType
		}
	}

	batchID, err := c.store.CreateBatch(filename, hash, sourceCode, datasetType)
	if err != nil {
		c.log.Error("创建批次失败", zap.String("file", filename), zap.Error(err))
		report.Duration = time.Since(start)
		return report
	}
	report.BatchID = batchID

	log := c.log.With(zap.Int64("batch", batchID), zap.String("file", filename))
	collector := NewCollector(c.store, batchID, true)

	c.send(progress, ProgressEvent{
		Type: "start", BatchID: batchID,
		Message:   fmt.Sprintf("开始导入 %s (dataset=%s)", filename, datasetType),
		Timestamp: time.Now(),
	})

	if err := c.store.SetBatchStatus(batchID, model.BatchProcessing); err != nil {
		log.Error("更新批次状态失败", zap.Error(err))
	}

	f, err := excelize.OpenFile(opts.FilePath)
	if err != nil {
		collector.FatalIO("打开 Excel 文件失败: %v", err)
		c.failBatch(batchID, collector, report, fmt.Sprintf("打开文件失败: %v", err), progress)
		report.Duration = time.Since(start)
		return report
	}
	defer f.Close()

	rawFileID, err := c.store.SaveRawFile(&model.RawFile{
		BatchID:     batchID,
		Filename:    filename,
		FileHash:    hash,
		StoragePath: opts.FilePath,
	})
	if err != nil {
		collector.FatalIO("保存原始文件快照失败: %v", err)
		c.failBatch(batchID, collector, report, fmt.Sprintf("保存原始文件失败: %v", err), progress)
		report.Duration = time.Since(start)
		return report
	}

	sheets := f.GetSheetList()
	report.TotalSheets = len(sheets)
	log.Info("发现工作表", zap.Int("sheets", len(sheets)))

	for _, sheetName := range sheets {
		res := c.processSheet(f, sheetName, rawFileID, batchID, prof, collector, progress, log)
		report.Sheets = append(report.Sheets, res)
		switch res.Status {
		case model.SheetParsed:
			report.ParsedSheets++
		case model.SheetSkipped, model.SheetRawOnly:
			report.SkippedSheets++
		case model.SheetFailed:
			report.FailedSheets++
		}
		report.Inserted += res.Inserted
		report.Updated += res.Updated
		report.ErrorRows += res.ErrorRows
	}

	if err := collector.Flush(); err != nil {
		log.Error("错误记录落库失败", zap.Error(err))
	}

	report.Status = batchStatus(report, collector.Errors())
	report.Duration = time.Since(start)
	c.completeBatch(batchID, filename, hash, sourceCode, datasetType, report)

	metrics.BatchesTotal.WithLabelValues(datasetType, string(report.Status)).Inc()
	metrics.ObservationsInserted.WithLabelValues(datasetType).Add(float64(report.Inserted))
	metrics.ObservationsUpdated.WithLabelValues(datasetType).Add(float64(report.Updated))

	log.Info("批次结束",
		zap.String("status", string(report.Status)),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("error_rows", report.ErrorRows),
		zap.Int("errors_collected", collector.Total()),
		zap.Duration("duration", report.Duration))

	return report
}

// Replay 根据已存储的 RawFile 重跑批次，生成新批次，不需要重新上传
func (c *Coordinator) Replay(batchID int64) (<-chan ProgressEvent, error) {
	raw, err := c.store.GetRawFileByBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("批次 %d 没有可重放的原始文件: %w", batchID, err)
	}
	if _, err := os.Stat(raw.StoragePath); err != nil {
		return nil, fmt.Errorf("原始文件已不存在: %w", err)
	}
	batch, err := c.store.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	return c.Import(ImportOptions{
		FilePath:    raw.StoragePath,
		Filename:    raw.Filename,
		DatasetType: batch.DatasetType,
		SourceCode:  batch.SourceCode,
	}), nil
}

// processSheet 处理单个 sheet：快照、分派、解析、校验、入库。
// 返回的 SheetResult 永远有效，sheet 级异常在这里吸收。
func (c *Coordinator) processSheet(f *excelize.File, sheetName string, rawFileID, batchID int64,
	prof *profile.Profile, collector *ErrorCollector, progress chan<- ProgressEvent, log *zap.Logger) model.SheetResult {

	start := time.Now()
	res := model.SheetResult{SheetName: sheetName, Status: model.SheetFailed}

	c.send(progress, ProgressEvent{
		Type: "sheet_start", BatchID: batchID, Sheet: sheetName,
		Message:   fmt.Sprintf("正在处理工作表 %s", sheetName),
		Timestamp: time.Now(),
	})

	g, err := parser.NewGridFromFile(f, sheetName)
	if err != nil {
		collector.SheetError(sheetName, model.ErrSheetException, "读取工作表失败: %v", err)
		res.Reason = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	rawSheetID, err := c.store.SaveRawSheet(&model.RawSheet{
		RawFileID:       rawFileID,
		SheetName:       sheetName,
		RowCount:        g.Rows(),
		ColCount:        g.Cols(),
		HeaderSignature: g.HeaderSignature(),
		ParseStatus:     model.SheetPending,
		CellsJSON:       c.snapshotCells(g),
	})
	if err != nil {
		collector.SheetError(sheetName, model.ErrSheetException, "保存工作表快照失败: %v", err)
		res.Reason = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	if prof == nil {
		// 数据集类型未建模，整本工作簿只进 raw 层
		res.Status = model.SheetRawOnly
		res.Reason = "未找到匹配的数据集 profile"
		res.Duration = time.Since(start)
		c.updateRawSheet(rawSheetID, res, "", log)
		return res
	}

	decision := parser.Classify(sheetName, g, prof)
	switch decision.Action {
	case profile.ActionSkipMeta:
		res.Status = model.SheetSkipped
		res.Reason = decision.Reason
		res.Duration = time.Since(start)
		c.updateRawSheet(rawSheetID, res, "", log)
		log.Info("跳过元数据表", zap.String("sheet", sheetName))
		return res

	case profile.ActionRawOnly:
		res.Status = model.SheetRawOnly
		res.Reason = decision.Reason
		res.Duration = time.Since(start)
		c.updateRawSheet(rawSheetID, res, "", log)
		if !decision.Matched {
			// 分派器没有任何命中：保留快照继续处理，批次最终降为 partial
			collector.SheetError(sheetName, model.ErrUnresolvableParser, "%s", decision.Reason)
			c.send(progress, ProgressEvent{
				Type: "warning", BatchID: batchID, Sheet: sheetName,
				Message:   fmt.Sprintf("工作表 %s 未识别，仅保留原始快照", sheetName),
				Timestamp: time.Now(),
			})
		}
		return res

	case profile.ActionParse:
		res = c.parseAndCommit(g, decision, prof, batchID, collector, log)
		res.Duration = time.Since(start)
		metrics.SheetDuration.WithLabelValues(string(decision.Parser)).Observe(res.Duration.Seconds())
		c.updateRawSheet(rawSheetID, res, string(decision.Parser), log)
		c.send(progress, ProgressEvent{
			Type: "sheet_done", BatchID: batchID, Sheet: sheetName,
			Message: fmt.Sprintf("工作表 %s: %s, 新增 %d 更新 %d 错误 %d",
				sheetName, res.Status, res.Inserted, res.Updated, res.ErrorRows),
			Timestamp: time.Now(),
		})
		return res

	default:
		collector.SheetError(sheetName, model.ErrSheetException, "未知的分派动作 %q", decision.Action)
		res.Reason = fmt.Sprintf("未知动作 %q", decision.Action)
		res.Duration = time.Since(start)
		return res
	}
}

// parseAndCommit 解析 → 校验 → 单事务入库。
// 事务失败只影响当前 sheet，回滚后标记 failed 返回。
func (c *Coordinator) parseAndCommit(g *parser.Grid, decision parser.Decision, prof *profile.Profile,
	batchID int64, collector *ErrorCollector, log *zap.Logger) model.SheetResult {

	sheetName := g.SheetName
	res := model.SheetResult{SheetName: sheetName, Parser: string(decision.Parser), Status: model.SheetFailed}

	in := parser.Input{
		Grid:          g,
		Config:        decision.Config,
		SourceCode:    prof.SourceCode,
		DefaultPeriod: prof.Defaults.PeriodType,
	}
	obs, rowErrs, err := parser.Parse(decision.Parser, in)
	if err != nil {
		collector.SheetError(sheetName, model.ErrSheetException, "解析失败: %v", err)
		res.Reason = err.Error()
		return res
	}
	collector.AddRowErrors(sheetName, rowErrs)
	res.ErrorRows = len(rowErrs)

	// 物化到独立表的 sheet 可以没有 metric_key，列投影在 mapper 里完成
	vopts := validator.Options{
		SkipMetricKeyCheck: decision.Config != nil && decision.Config.Table != nil,
	}

	var valid []model.Observation
	for i := range obs {
		issues := validator.Validate(&obs[i], vopts)
		for _, is := range issues {
			collector.Add(model.ErrorRecord{
				SheetName: sheetName,
				ErrorType: is.Type,
				Message:   is.Message,
			})
		}
		if validator.Blocked(issues) {
			res.ErrorRows++
			continue
		}
		valid = append(valid, obs[i])
	}
	res.Observations = len(valid)

	tx, err := c.store.DB().Begin()
	if err != nil {
		collector.SheetError(sheetName, model.ErrCommitFailure, "开启事务失败: %v", err)
		res.Reason = err.Error()
		return res
	}

	upsert, err := c.store.UpsertObservations(tx, batchID, valid)
	if err != nil {
		tx.Rollback()
		collector.SheetError(sheetName, model.ErrCommitFailure, "观测值入库失败: %v", err)
		res.Reason = err.Error()
		return res
	}

	// 可选的业务宽表投影，与观测值同一事务
	if decision.Config != nil && decision.Config.Table != nil {
		if err := c.mapToTable(tx, decision.Config.Table, valid, batchID); err != nil {
			tx.Rollback()
			collector.SheetError(sheetName, model.ErrCommitFailure, "宽表映射失败: %v", err)
			res.Reason = err.Error()
			return res
		}
	}

	if err := tx.Commit(); err != nil {
		collector.SheetError(sheetName, model.ErrCommitFailure, "提交事务失败: %v", err)
		res.Reason = err.Error()
		return res
	}

	res.Status = model.SheetParsed
	res.Inserted = upsert.Inserted
	res.Updated = upsert.Updated
	log.Info("工作表入库",
		zap.String("sheet", sheetName),
		zap.String("parser", string(decision.Parser)),
		zap.Int("observations", res.Observations),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("error_rows", res.ErrorRows))
	return res
}

func (c *Coordinator) mapToTable(tx *sql.Tx, tm *profile.TableMapping, obs []model.Observation, batchID int64) error {
	m, err := mapper.New(tm)
	if err != nil {
		return err
	}
	records := m.Map(obs, batchID)
	if len(records) == 0 {
		return nil
	}
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r
	}
	_, err = c.store.UpsertTableRecords(tx, m.Table(), batchID, tm.UniqueKey, rows)
	return err
}

// resolveProfile 按数据集类型取 profile，未指定时按文件名模式识别
func (c *Coordinator) resolveProfile(filename, datasetType string) *profile.Profile {
	if c.registry == nil {
		return nil
	}
	if datasetType != "" {
		if p, ok := c.registry.ByDatasetType(datasetType); ok {
			return p
		}
		c.log.Warn("未注册的数据集类型", zap.String("dataset_type", datasetType))
		return nil
	}
	if p, ok := c.registry.DetectByFilename(filename); ok {
		c.log.Info("按文件名识别数据集类型",
			zap.String("file", filename), zap.String("dataset_type", p.DatasetType))
		return p
	}
	return nil
}

// snapshotCells 序列化网格内容。超过上限的大表只保留元信息，返回空串。
func (c *Coordinator) snapshotCells(g *parser.Grid) string {
	if g.Rows()*g.Cols() > c.rawCellLimit {
		return ""
	}
	rows := make([][]string, g.Rows())
	for r := 1; r <= g.Rows(); r++ {
		rows[r-1] = g.Row(r)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *Coordinator) updateRawSheet(id int64, res model.SheetResult, parserType string, log *zap.Logger) {
	if err := c.store.UpdateRawSheetStatus(id, res.Status, parserType, res.Observations, res.ErrorRows); err != nil {
		log.Error("更新工作表状态失败", zap.Int64("raw_sheet", id), zap.Error(err))
	}
}

func (c *Coordinator) failBatch(batchID int64, collector *ErrorCollector, report *model.ImportReport,
	message string, progress chan<- ProgressEvent) {

	report.Status = model.BatchFailed
	if err := collector.Flush(); err != nil {
		c.log.Error("错误记录落库失败", zap.Int64("batch", batchID), zap.Error(err))
	}
	if err := c.store.FailBatch(batchID, message); err != nil {
		c.log.Error("标记批次失败状态出错", zap.Int64("batch", batchID), zap.Error(err))
	}
	c.send(progress, ProgressEvent{
		Type: "error", BatchID: batchID,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) completeBatch(batchID int64, filename, hash, sourceCode, datasetType string, report *model.ImportReport) {
	metricCount, err := c.store.CountDistinctMetrics(batchID)
	if err != nil {
		c.log.Error("统计指标数失败", zap.Int64("batch", batchID), zap.Error(err))
	}
	b := &model.ImportBatch{
		ID:          batchID,
		Filename:    filename,
		FileHash:    hash,
		SourceCode:  sourceCode,
		DatasetType: datasetType,
		Status:      report.Status,
		TotalRows:   report.Inserted + report.Updated + report.ErrorRows,
		SuccessRows: report.Inserted + report.Updated,
		FailedRows:  report.ErrorRows,
		Inserted:    report.Inserted,
		Updated:     report.Updated,
		SheetCount:  report.TotalSheets,
		MetricCount: metricCount,
		DurationMS:  report.Duration.Milliseconds(),
	}
	if err := c.store.CompleteBatch(b); err != nil {
		c.log.Error("完成批次落库失败", zap.Int64("batch", batchID), zap.Error(err))
	}
}

// batchStatus 按最坏结果推导批次状态：failed > partial > success。
// success 要求收集器中没有任何阻断级错误，warning 不降级。
func batchStatus(r *model.ImportReport, collectedErrors int) model.BatchStatus {
	if r.FailedSheets > 0 || r.ErrorRows > 0 || collectedErrors > 0 {
		if r.ParsedSheets > 0 || r.SkippedSheets > 0 {
			return model.BatchPartial
		}
		return model.BatchFailed
	}
	return model.BatchSuccess
}

// send 非阻塞发送进度事件，消费方落后时直接丢弃
func (c *Coordinator) send(ch chan<- ProgressEvent, ev ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
