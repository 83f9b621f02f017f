package parser

import (
	"regexp"
	"strings"
)

// 省份简称别名表
var provinceAliases = map[string]string{
	"内蒙":         "内蒙古",
	"黑龙":         "黑龙江",
	"新疆维吾尔自治区":   "新疆",
	"广西壮族自治区":    "广西",
	"宁夏回族自治区":    "宁夏",
	"西藏自治区":      "西藏",
	"内蒙古自治区":     "内蒙古",
	"香港特别行政区":    "香港",
	"澳门特别行政区":    "澳门",
}

var provinceSuffixes = []string{"省", "市", "自治区", "特别行政区"}

var knownProvinces = map[string]bool{
	"北京": true, "天津": true, "河北": true, "山西": true, "内蒙古": true,
	"辽宁": true, "吉林": true, "黑龙江": true, "上海": true, "江苏": true,
	"浙江": true, "安徽": true, "福建": true, "江西": true, "山东": true,
	"河南": true, "湖北": true, "湖南": true, "广东": true, "广西": true,
	"海南": true, "重庆": true, "四川": true, "贵州": true, "云南": true,
	"西藏": true, "陕西": true, "甘肃": true, "青海": true, "宁夏": true,
	"新疆": true, "香港": true, "澳门": true, "台湾": true, "全国": true,
}

// NormalizeProvince 归一化省级地区名：去掉行政后缀并应用别名表。
func NormalizeProvince(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if full, ok := provinceAliases[name]; ok {
		return full
	}
	for _, suf := range provinceSuffixes {
		if strings.HasSuffix(name, suf) && len(name) > len(suf) {
			trimmed := strings.TrimSuffix(name, suf)
			if full, ok := provinceAliases[trimmed]; ok {
				return full
			}
			return trimmed
		}
	}
	return name
}

// IsKnownProvince 判断归一化后的名称是否为省级行政区。
func IsKnownProvince(name string) bool {
	return knownProvinces[NormalizeProvince(name)]
}

var (
	weightBandRe = regexp.MustCompile(`(\d+)\s*[-~]\s*(\d+)\s*[kK][gG]`)
	cityRe       = regexp.MustCompile(`([^省：（）()、\s]+[市县])`)
)

// ExtractTags 从指标/表头文本中提取维度标签。只收敛到闭合的关键词表，
// 未命中任何关键词时返回空 map。
func ExtractTags(text string) map[string]string {
	tags := map[string]string{}
	if text == "" {
		return tags
	}

	switch {
	case strings.Contains(text, "规模场") || strings.Contains(text, "规模"):
		tags["scale"] = "规模场"
	case strings.Contains(text, "小散") || strings.Contains(text, "散户"):
		tags["scale"] = "小散"
	case strings.Contains(text, "均价") || strings.Contains(text, "平均"):
		tags["scale"] = "均价"
	}

	if m := weightBandRe.FindStringSubmatch(text); m != nil {
		tags["weight_band"] = m[1] + "-" + m[2] + "kg"
	} else if strings.Contains(text, "标猪") {
		tags["weight_band"] = "标猪"
	} else if strings.Contains(text, "肥猪") {
		tags["weight_band"] = "肥猪"
	}

	if strings.Contains(text, "自繁自养") {
		tags["mode"] = "自繁自养"
	} else if strings.Contains(text, "外购仔猪") || strings.Contains(text, "外购") {
		tags["mode"] = "外购"
	}

	for _, s := range []string{"平稳", "放缓", "加快", "积极", "谨慎"} {
		if strings.Contains(text, s) {
			tags["sentiment"] = s
			break
		}
	}

	if m := cityRe.FindStringSubmatch(text); m != nil && len([]rune(m[1])) <= 10 {
		tags["city"] = m[1]
	}

	return tags
}
