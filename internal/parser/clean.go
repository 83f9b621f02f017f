package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// 空值哨兵，统一解析为 null（而不是 0）
var nullSentinels = map[string]bool{
	"na": true, "n/a": true, "#n/a": true, "null": true,
	"none": true, "-": true, "--": true, "——": true, "nan": true,
}

var (
	numTokenRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	rangeSplitRe = regexp.MustCompile(`\s*[-~—～]\s*`)
	unitValueRe  = regexp.MustCompile(`^([\d.,]+)\s*(\S.*)$`)
)

// CleanNumeric 统一数值清洗。
// 返回 (数值, 原始文本)：数值清洗成功且文本无歧义时原始文本为空；
// 区间/注记/哨兵/无法清洗的输入保留原始文本以便回溯。
//
// 规则：
//   - 哨兵（#N/A、N/A、NA、-、--、——、nan 等）→ null
//   - 前导 "~" 去除后按数值解析
//   - 区间 "A - B"、"A~B"、"A—B"、"A-B-C" → 各段均值
//   - 括号注记 "(涨200)"、"(昨降)" → 提取第一个数值，无数值则 null
//   - 千分位逗号、尾部百分号去除
func CleanNumeric(s string) (*float64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ""
	}
	if nullSentinels[strings.ToLower(s)] {
		return nil, s
	}

	t := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "~"), "～"))

	// 括号注记：只保留第一个数值 token
	if strings.ContainsAny(t, "(（") {
		if m := numTokenRe.FindString(t); m != "" {
			if v, err := parseFloatLoose(m); err == nil {
				return &v, s
			}
		}
		return nil, s
	}

	// 区间/多段取均值
	if avg, ok := cleanRange(t); ok {
		return &avg, s
	}

	if v, err := parseFloatLoose(t); err == nil {
		if t == s {
			return &v, ""
		}
		return &v, s
	}

	// 数值 + 单位（"15.5元/公斤"）。"90kg以下" 这类是维度值，不是数值。
	if !strings.Contains(t, "以下") && !strings.Contains(t, "以上") {
		if m := unitValueRe.FindStringSubmatch(t); m != nil {
			unit := m[2]
			if !strings.Contains(unit, "以下") && !strings.Contains(unit, "以上") {
				if v, err := parseFloatLoose(m[1]); err == nil {
					return &v, s
				}
			}
		}
	}

	return nil, s
}

// cleanRange 解析 "13.0 - 15.2"、"14.4-14.2-14.0" 等区间，返回均值。
// 以负号开头的普通负数不按区间处理。
func cleanRange(s string) (float64, bool) {
	if s == "" || !strings.ContainsAny(s, "-~—～") {
		return 0, false
	}
	if strings.HasPrefix(s, "-") {
		return 0, false
	}
	parts := rangeSplitRe.Split(s, -1)
	if len(parts) < 2 {
		return 0, false
	}
	sum := 0.0
	n := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, false
		}
		v, err := parseFloatLoose(p)
		if err != nil {
			return 0, false
		}
		sum += v
		n++
	}
	return sum / float64(n), true
}

func parseFloatLoose(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	return strconv.ParseFloat(s, 64)
}
