package model

import "time"

// PeriodType 观测值时间粒度
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// Valid 判断是否是受支持的粒度
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Observation 规范化观测值
// 日度数据使用 ObsDate；周度/月度数据使用 PeriodStart/PeriodEnd，
// 以 PeriodEnd 作为身份锚点参与去重键计算。
type Observation struct {
	MetricKey   string            `json:"metricKey"`
	MetricName  string            `json:"metricName"`
	PeriodType  PeriodType        `json:"periodType"`
	ObsDate     *time.Time        `json:"obsDate,omitempty"`
	PeriodStart *time.Time        `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time        `json:"periodEnd,omitempty"`
	Value       *float64          `json:"value,omitempty"`
	RawValue    string            `json:"rawValue,omitempty"` // 无法清洗为数值时保留的原始文本
	GeoCode     string            `json:"geoCode,omitempty"`  // 省份/城市/企业代码，可为空
	GeoGuessed  bool              `json:"geoGuessed,omitempty"` // 地理信息来自启发式提取而非精确匹配
	Unit        string            `json:"unit,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	DedupKey    string            `json:"dedupKey"`
}

// AnchorDate 返回参与身份计算的日期：日度取 ObsDate，周度/月度取 PeriodEnd
func (o *Observation) AnchorDate() *time.Time {
	if o.ObsDate != nil {
		return o.ObsDate
	}
	return o.PeriodEnd
}
