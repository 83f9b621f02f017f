package exporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

// Exporter 把规范化观测值导出为 Excel 工作簿
type Exporter struct {
	store *store.Store
}

// NewExporter 创建导出器
func NewExporter(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

const sheetName = "观测值"

var header = []string{"指标键", "指标名", "粒度", "日期", "周期开始", "周期结束", "数值", "原始文本", "地区", "单位", "标签"}

// Export 按过滤条件查询并生成工作簿。调用方负责 Close。
func (e *Exporter) Export(filter store.ObservationFilter) (*excelize.File, error) {
	obs, err := e.store.QueryObservations(filter)
	if err != nil {
		return nil, fmt.Errorf("查询观测值失败: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	for c, h := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("写表头失败: %w", err)
		}
	}

	for r, o := range obs {
		if err := writeRow(f, r+2, &o); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 24)
	_ = f.SetColWidth(sheetName, "K", "K", 32)
	f.SetActiveSheet(0)
	return f, nil
}

func writeRow(f *excelize.File, row int, o *model.Observation) error {
	values := []any{
		o.MetricKey, o.MetricName, string(o.PeriodType),
		dateCell(o.ObsDate), dateCell(o.PeriodStart), dateCell(o.PeriodEnd),
		nil, o.RawValue, o.GeoCode, o.Unit, tagsCell(o.Tags),
	}
	if o.Value != nil {
		values[6] = *o.Value
	}
	for c, v := range values {
		if v == nil || v == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return fmt.Errorf("坐标转换失败: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("写第 %d 行失败: %w", row, err)
		}
	}
	return nil
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// tagsCell 标签按键排序展平成 "k=v; k=v"，保证同组标签输出稳定
func tagsCell(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, "; ")
}
