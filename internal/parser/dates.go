package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Excel 序列号日期纪元
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ErrYearOutOfRange 解析出的年份不在合理区间 [2000, 2100]
var ErrYearOutOfRange = errors.New("日期年份超出 2000-2100 区间")

var dateLayouts = []string{
	"2006/1/2",
	"2006-1-2",
	"2006.1.2",
	"2006年1月2日",
	"2006/1/2 15:04:05",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2 15:04",
}

// ParseDate 解析日期单元格。支持常见字符串格式与 Excel 序列号。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("空日期")
	}
	if nullSentinels[strings.ToLower(s)] {
		return time.Time{}, fmt.Errorf("日期为空值哨兵: %q", s)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Excel 序列号：纯数值且无日期分隔符
	if !strings.ContainsAny(s, "/-.年") {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			if serial >= 1 && serial < 200000 {
				return excelEpoch.AddDate(0, 0, int(serial)), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %q", s)
}

// ParseObsDate 解析观测日期并做合理性检查。
// 年份在 [2000, 2100] 之外视为不可信输入，返回 ErrYearOutOfRange 而不是静默钳制。
func ParseObsDate(s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if y := t.Year(); y < 2000 || y > 2100 {
		return time.Time{}, fmt.Errorf("%w: %d (%q)", ErrYearOutOfRange, y, s)
	}
	return t, nil
}

// ParsePeriod 解析周期起止。结束日期是身份锚点，必须可解析；
// 开始日期缺失时仅返回结束日期。
func ParsePeriod(startCell, endCell string) (start, end *time.Time, err error) {
	e, err := ParseObsDate(endCell)
	if err != nil {
		return nil, nil, fmt.Errorf("周期结束日期: %w", err)
	}
	end = &e
	if s, serr := ParseObsDate(startCell); serr == nil {
		start = &s
	}
	return start, end, nil
}
