package validator

import (
	"fmt"
	"strings"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// Issue 单条校验结果。Blocking 为真时观测被拒绝，否则仅记录告警。
type Issue struct {
	Type     model.ErrorType
	Message  string
	Blocking bool
}

// Options 校验开关
type Options struct {
	// SkipMetricKeyCheck 物化到独立表的 sheet 无需可解析的 metric_key 与去重键
	SkipMetricKeyCheck bool
}

// 数值合理性区间（仅告警，不拦截）
const (
	priceMax     = 100
	slaughterMax = 1_000_000
)

// Validate 校验单条观测的结构完整性。
// 身份字段缺失、数值与原始文本同时为空、标签为空串等属于拦截项；
// 超出经验区间的数值仅产生告警。
func Validate(o *model.Observation, opts Options) []Issue {
	var issues []Issue
	blocking := func(typ model.ErrorType, format string, args ...any) {
		issues = append(issues, Issue{Type: typ, Message: fmt.Sprintf(format, args...), Blocking: true})
	}
	warning := func(typ model.ErrorType, format string, args ...any) {
		issues = append(issues, Issue{Type: typ, Message: fmt.Sprintf(format, args...)})
	}

	if !opts.SkipMetricKeyCheck {
		if o.MetricKey == "" {
			blocking(model.ErrMissingRequired, "metric_key 为空")
		}
		if o.DedupKey == "" {
			blocking(model.ErrMissingRequired, "dedup_key 为空")
		}
	}

	if !o.PeriodType.Valid() {
		blocking(model.ErrMissingRequired, "无效的 period_type: %q", o.PeriodType)
	}
	switch o.PeriodType {
	case model.PeriodDay:
		if o.ObsDate == nil {
			blocking(model.ErrMissingRequired, "日度观测缺少 obs_date")
		}
	case model.PeriodWeek, model.PeriodMonth:
		if o.PeriodEnd == nil {
			blocking(model.ErrMissingRequired, "%s 观测缺少 period_end", o.PeriodType)
		}
	}

	if o.Value == nil && o.RawValue == "" {
		// 空观测：记录但不拦截，幂等重放时原始文本可能后补
		warning(model.ErrValueUncleanable, "value 与 raw_value 均为空")
	}

	for k, v := range o.Tags {
		if strings.TrimSpace(k) == "" {
			blocking(model.ErrMissingRequired, "标签键为空")
		}
		if strings.TrimSpace(v) == "" {
			blocking(model.ErrMissingRequired, "标签 %q 取值为空", k)
		}
	}

	if o.GeoCode != "" && strings.TrimSpace(o.GeoCode) == "" {
		blocking(model.ErrMissingRequired, "geo_code 仅含空白")
	}

	if o.Value != nil {
		v := *o.Value
		if strings.Contains(o.MetricKey, "PRICE") && (v < 0 || v > priceMax) {
			warning(model.ErrOutOfRange, "价格 %v 超出经验区间 [0, %d]", v, priceMax)
		}
		if strings.Contains(o.MetricKey, "SLAUGHTER") && (v < 0 || v > slaughterMax) {
			warning(model.ErrOutOfRange, "屠宰量 %v 超出经验区间 [0, %d]", v, slaughterMax)
		}
	}

	return issues
}

// Blocked 判断一组结果里是否存在拦截项
func Blocked(issues []Issue) bool {
	for _, is := range issues {
		if is.Blocking {
			return true
		}
	}
	return false
}
