package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// 随仓库发布的 profile 必须全部通过加载期校验
func TestLoadDir_ShippedProfiles(t *testing.T) {
	t.Parallel()
	reg, err := LoadDir(filepath.Join("..", "..", "profiles"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	for _, dt := range []string{"yongyi_weekly", "ganglian_daily", "enterprise_daily"} {
		if _, ok := reg.ByDatasetType(dt); !ok {
			t.Fatalf("缺少 dataset_type %s, 实际: %v", dt, reg.DatasetTypes())
		}
	}
}

func TestDetectByFilename(t *testing.T) {
	t.Parallel()
	reg, err := LoadDir(filepath.Join("..", "..", "profiles"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	cases := []struct {
		filename string
		dataset  string
		ok       bool
	}{
		{"涌益咨询周度数据20240105.xlsx", "yongyi_weekly", true},
		{"完全无关的文件.xlsx", "", false},
	}
	for _, tc := range cases {
		p, ok := reg.DetectByFilename(tc.filename)
		if ok != tc.ok {
			t.Fatalf("%s: ok = %v, want %v", tc.filename, ok, tc.ok)
		}
		if ok && p.DatasetType != tc.dataset {
			t.Fatalf("%s: dataset = %s, want %s", tc.filename, p.DatasetType, tc.dataset)
		}
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		yaml string
	}{
		{"缺少 profile_code", `
source_code: X
dataset_type: x
`},
		{"未知解析器", `
profile_code: P1
source_code: X
dataset_type: x
sheets:
  - sheet_name: a
    action: PARSE
    parser: NO_SUCH_PARSER
`},
		{"PARSE 缺少必需配置", `
profile_code: P1
source_code: X
dataset_type: x
sheets:
  - sheet_name: a
    action: PARSE
    parser: NARROW_DATE_ROWS
`},
		{"非法正则规则", `
profile_code: P1
source_code: X
dataset_type: x
rules:
  - sheet_name_regex: "["
    action: SKIP_META
`},
	}
	for _, tc := range cases {
		if _, err := Load([]byte(tc.yaml)); err == nil {
			t.Fatalf("%s: 应当被拒绝", tc.name)
		}
	}
}

func TestLoadDir_DuplicateDatasetType(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for i, name := range []string{"a.yaml", "b.yaml"} {
		body := fmt.Sprintf("profile_code: P%d\nsource_code: X\ndataset_type: same_type\n", i+1)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("写临时 profile 失败: %v", err)
		}
	}
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("重复 dataset_type 应当被拒绝")
	}
}
