package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// ObservationFilter 观测值查询条件，零值字段不参与过滤
type ObservationFilter struct {
	MetricKey string
	GeoCode   string
	BatchID   int64
	From      string // "2006-01-02"，按锚点日期（日度 obs_date / 周月 period_end）比较
	To        string
	Limit     int
}

// QueryObservations 按条件查询观测值，按指标与锚点日期排序
func (s *Store) QueryObservations(f ObservationFilter) ([]model.Observation, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT metric_key, metric_name, period_type, obs_date, period_start, period_end,
		value, raw_value, geo_code, geo_guessed, unit, tags_json, dedup_key
		FROM observations WHERE 1=1`)
	var args []any
	if f.MetricKey != "" {
		sb.WriteString(" AND metric_key = ?")
		args = append(args, f.MetricKey)
	}
	if f.GeoCode != "" {
		sb.WriteString(" AND geo_code = ?")
		args = append(args, f.GeoCode)
	}
	if f.BatchID > 0 {
		sb.WriteString(" AND batch_id = ?")
		args = append(args, f.BatchID)
	}
	if f.From != "" {
		sb.WriteString(" AND COALESCE(obs_date, period_end) >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		sb.WriteString(" AND COALESCE(obs_date, period_end) <= ?")
		args = append(args, f.To)
	}
	sb.WriteString(" ORDER BY metric_key, COALESCE(obs_date, period_end), geo_code")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		var periodType, tags string
		var obsDate, pStart, pEnd sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&o.MetricKey, &o.MetricName, &periodType, &obsDate, &pStart, &pEnd,
			&value, &o.RawValue, &o.GeoCode, &o.GeoGuessed, &o.Unit, &tags, &o.DedupKey); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.PeriodType = model.PeriodType(periodType)
		o.ObsDate = scanDate(obsDate)
		o.PeriodStart = scanDate(pStart)
		o.PeriodEnd = scanDate(pEnd)
		if value.Valid {
			v := value.Float64
			o.Value = &v
		}
		if tags != "" && tags != "{}" {
			_ = json.Unmarshal([]byte(tags), &o.Tags)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	// sqlite DATE 列可能带回时间后缀，只取日期段
	v := s.String
	if len(v) > 10 {
		v = v[:10]
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil
	}
	return &t
}
