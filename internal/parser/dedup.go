package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// DedupKey 计算观测记录的幂等去重键。
// 组成：来源|表名|指标|地区|锚点日期|标签(按键排序的 k=v)，SHA1 十六进制。
func DedupKey(source, sheet string, obs *model.Observation) string {
	dateKey := ""
	if d := obs.AnchorDate(); d != nil {
		dateKey = d.Format("2006-01-02")
	}

	parts := []string{source, sheet, obs.MetricKey, obs.GeoCode, dateKey}
	if len(obs.Tags) > 0 {
		keys := make([]string, 0, len(obs.Tags))
		for k := range obs.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+obs.Tags[k])
		}
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
