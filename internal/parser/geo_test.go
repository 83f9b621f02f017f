package parser

import "testing"

func TestNormalizeProvince(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"四川省":      "四川",
		"内蒙":       "内蒙古",
		"内蒙古自治区":   "内蒙古",
		"黑龙":       "黑龙江",
		"新疆维吾尔自治区": "新疆",
		"广西壮族自治区":  "广西",
		"上海市":      "上海",
		"四川":       "四川",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeProvince(in); got != want {
			t.Fatalf("NormalizeProvince(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsKnownProvince(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"四川", "黑龙江", "全国", "内蒙古"} {
		if !IsKnownProvince(p) {
			t.Fatalf("IsKnownProvince(%q) = false", p)
		}
	}
	for _, p := range []string{"成都", "西南样本企业", ""} {
		if IsKnownProvince(p) {
			t.Fatalf("IsKnownProvince(%q) = true", p)
		}
	}
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	tags := ExtractTags("规模场 90-100kg 自繁自养")
	if tags["scale"] != "规模场" {
		t.Fatalf("scale = %q", tags["scale"])
	}
	if tags["weight_band"] != "90-100kg" {
		t.Fatalf("weight_band = %q", tags["weight_band"])
	}
	if tags["mode"] != "自繁自养" {
		t.Fatalf("mode = %q", tags["mode"])
	}

	tags = ExtractTags("小散外购仔猪")
	if tags["scale"] != "小散" || tags["mode"] != "外购" {
		t.Fatalf("小散外购: %v", tags)
	}

	tags = ExtractTags("成都市标猪报价")
	if tags["city"] != "成都市" {
		t.Fatalf("city = %q", tags["city"])
	}
	if tags["weight_band"] != "标猪" {
		t.Fatalf("weight_band = %q", tags["weight_band"])
	}

	if tags := ExtractTags(""); len(tags) != 0 {
		t.Fatalf("空文本应无标签: %v", tags)
	}
}
