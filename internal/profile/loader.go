package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry 已加载的 profile 集合
type Registry struct {
	profiles map[string]*Profile // dataset_type -> profile
}

// Load 解析并校验单个 YAML profile
func Load(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile 解析失败: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile 从文件加载单个 profile
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 profile 文件失败: %w", err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// LoadDir 加载目录下所有 *.yaml/*.yml profile
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取 profile 目录失败: %w", err)
	}
	reg := &Registry{profiles: make(map[string]*Profile)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, ok := reg.profiles[p.DatasetType]; ok {
			return nil, fmt.Errorf("dataset_type %s 重复: %s 与 %s", p.DatasetType, prev.ProfileCode, p.ProfileCode)
		}
		reg.profiles[p.DatasetType] = p
	}
	return reg, nil
}

// NewRegistry 从已构造的 profile 创建注册表（测试用）
func NewRegistry(profiles ...*Profile) (*Registry, error) {
	reg := &Registry{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		reg.profiles[p.DatasetType] = p
	}
	return reg, nil
}

// ByDatasetType 按数据集类型查找
func (r *Registry) ByDatasetType(datasetType string) (*Profile, bool) {
	p, ok := r.profiles[datasetType]
	return p, ok
}

// DetectByFilename 按文件名模式自动识别数据集类型
func (r *Registry) DetectByFilename(filename string) (*Profile, bool) {
	base := filepath.Base(filename)
	for _, t := range r.DatasetTypes() {
		p := r.profiles[t]
		if p.MatchFilename(base) {
			return p, true
		}
	}
	return nil, false
}

// DatasetTypes 已注册的数据集类型，排序后返回
func (r *Registry) DatasetTypes() []string {
	types := make([]string, 0, len(r.profiles))
	for t := range r.profiles {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
