package parser

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate_Formats(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	cases := []string{
		"2024/1/5",
		"2024-1-5",
		"2024-01-05",
		"2024.1.5",
		"2024年1月5日",
	}
	for _, c := range cases {
		got, err := ParseDate(c)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", c, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", c, got, want)
		}
	}
}

func TestParseDate_ExcelSerial(t *testing.T) {
	t.Parallel()

	// 45297 = 2024-01-06
	got, err := ParseDate("45297")
	if err != nil {
		t.Fatalf("ParseDate(45297): %v", err)
	}
	want := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDate(45297) = %v, want %v", got, want)
	}

	// 序列号区间外的纯数字不按日期处理
	if _, err := ParseDate("500000"); err == nil {
		t.Fatal("ParseDate(500000) 应当失败")
	}
	if _, err := ParseDate("0.5"); err == nil {
		t.Fatal("ParseDate(0.5) 应当失败")
	}
}

func TestParseDate_Invalid(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"", "#N/A", "--", "全国", "日期"} {
		if _, err := ParseDate(c); err == nil {
			t.Fatalf("ParseDate(%q) 应当失败", c)
		}
	}
}

func TestParseObsDate_YearBounds(t *testing.T) {
	t.Parallel()

	// 边界外的年份拒绝而非钳制
	for _, c := range []string{"1999/12/31", "2101/1/1", "1900年1月1日"} {
		_, err := ParseObsDate(c)
		if !errors.Is(err, ErrYearOutOfRange) {
			t.Fatalf("ParseObsDate(%q) err = %v, want ErrYearOutOfRange", c, err)
		}
	}
	if _, err := ParseObsDate("2000/1/1"); err != nil {
		t.Fatalf("ParseObsDate(2000/1/1): %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	start, end, err := ParsePeriod("2024/1/1", "2024/1/7")
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	if start == nil || !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}

	// 开始日期缺失可以容忍，结束日期缺失不行
	start, end, err = ParsePeriod("", "2024/1/7")
	if err != nil || start != nil || end == nil {
		t.Fatalf("ParsePeriod(空 start) = %v %v %v", start, end, err)
	}
	if _, _, err := ParsePeriod("2024/1/1", ""); err == nil {
		t.Fatal("ParsePeriod(空 end) 应当失败")
	}
}
