package parser

import (
	"fmt"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
)

// RowError 记录解析过程中被丢弃的单行/单格，不中断其余行。
type RowError struct {
	Row     int
	Col     string
	Type    model.ErrorType
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("行%d 列%s [%s] %s", e.Row, e.Col, e.Type, e.Message)
}

func rowErrf(row int, col string, typ model.ErrorType, format string, args ...any) RowError {
	return RowError{Row: row, Col: col, Type: typ, Message: fmt.Sprintf(format, args...)}
}

// Input 单个工作表的解析输入。
type Input struct {
	Grid          *Grid
	Config        *profile.SheetConfig
	SourceCode    string
	DefaultPeriod model.PeriodType
}

func (in Input) periodType() model.PeriodType {
	if in.DefaultPeriod != "" {
		return in.DefaultPeriod
	}
	return model.PeriodDay
}

// finish 收尾单条观测：归一化地区、补默认周期类型、计算去重键。
func (in Input) finish(obs model.Observation) model.Observation {
	obs.GeoCode = NormalizeProvince(obs.GeoCode)
	if obs.PeriodType == "" {
		obs.PeriodType = in.periodType()
	}
	obs.DedupKey = DedupKey(in.SourceCode, in.Grid.SheetName, &obs)
	return obs
}
