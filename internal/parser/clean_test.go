package parser

import "testing"

func TestCleanNumeric(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		want  float64
		isNil bool
		raw   string
	}{
		// 普通数值不保留原文
		{in: "12.5", want: 12.5},
		{in: "-0.35", want: -0.35},
		{in: "1,234.5", want: 1234.5},
		{in: "95%", want: 95},
		// 清洗路径保留原文
		{in: "~12.3", want: 12.3, raw: "~12.3"},
		{in: "13.0 - 15.2", want: 14.1, raw: "13.0 - 15.2"},
		{in: "14.4-14.2-14.0", want: 14.2, raw: "14.4-14.2-14.0"},
		{in: "(涨200)", want: 200, raw: "(涨200)"},
		{in: "15.5元/公斤", want: 15.5, raw: "15.5元/公斤"},
		// 哨兵与不可清洗文本
		{in: "#N/A", isNil: true, raw: "#N/A"},
		{in: "N/A", isNil: true, raw: "N/A"},
		{in: "——", isNil: true, raw: "——"},
		{in: "-", isNil: true, raw: "-"},
		{in: "null", isNil: true, raw: "null"},
		{in: "", isNil: true},
		{in: "90kg以下", isNil: true, raw: "90kg以下"},
		{in: "持平", isNil: true, raw: "持平"},
	}
	for _, c := range cases {
		v, raw := CleanNumeric(c.in)
		if raw != c.raw {
			t.Fatalf("CleanNumeric(%q) raw = %q, want %q", c.in, raw, c.raw)
		}
		if c.isNil {
			if v != nil {
				t.Fatalf("CleanNumeric(%q) = %v, want nil", c.in, *v)
			}
			continue
		}
		if v == nil {
			t.Fatalf("CleanNumeric(%q) = nil, want %v", c.in, c.want)
		}
		if diff := *v - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("CleanNumeric(%q) = %v, want %v", c.in, *v, c.want)
		}
	}
}
