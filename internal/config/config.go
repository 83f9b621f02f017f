package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Ingest IngestConfig `toml:"ingest"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据目录配置
type DataConfig struct {
	DataDir string `toml:"data_dir"` // 相对可执行文件目录
	DBFile  string `toml:"db_file"`
}

// IngestConfig 导入管线配置
type IngestConfig struct {
	ProfileDir      string `toml:"profile_dir"`       // 数据集 profile YAML 目录
	UpsertChunkSize int    `toml:"upsert_chunk_size"` // 去重查询/批量插入的分块大小
	RawCellLimit    int    `toml:"raw_cell_limit"`    // raw 层快照保留的最大单元格数
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"` // debug/info/warn/error
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	PortSpecified bool
	ConfigPath    string
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20470,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
			DBFile:  "hogprice.db",
		},
		Ingest: IngestConfig{
			ProfileDir:      "profiles",
			UpsertChunkSize: 1000,
			RawCellLimit:    200_000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate 校验配置取值
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 取值非法: %d", c.Server.Port)
	}
	if c.Ingest.UpsertChunkSize <= 0 {
		return fmt.Errorf("ingest.upsert_chunk_size 必须为正数: %d", c.Ingest.UpsertChunkSize)
	}
	if c.Ingest.RawCellLimit <= 0 {
		return fmt.Errorf("ingest.raw_cell_limit 必须为正数: %d", c.Ingest.RawCellLimit)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 取值非法: %q", c.Log.Level)
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	serverAny, ok := raw["server"]
	if !ok {
		return false
	}
	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 从 config.toml 加载配置并返回元信息。
// 配置文件不存在时使用默认配置，不报错。
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	cfg := DefaultConfig()

	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	info.ConfigPath = filepath.Join(exeDir, "config.toml")

	data, err := os.ReadFile(info.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, info, nil
		}
		return nil, info, err
	}

	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, info, fmt.Errorf("解析 config.toml 失败: %w", err)
	}

	// 环境变量覆盖（用于 E2E / 本地运行）
	if v := os.Getenv("HOGPRICE_PROFILE_DIR"); v != "" {
		cfg.Ingest.ProfileDir = v
	}
	if v := os.Getenv("HOGPRICE_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// LoadConfig 从 config.toml 加载配置
func LoadConfig() (*AppConfig, error) {
	cfg, _, err := LoadConfigWithInfo()
	return cfg, err
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(cfg *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(exeDir, "config.toml"), data, 0644)
}

// EnsureDataDir 确保数据目录与上传子目录存在，返回数据目录绝对路径
func EnsureDataDir(cfg *AppConfig) (string, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	dataDir := filepath.Join(exeDir, cfg.Data.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	for _, subdir := range []string{"uploads", "raw"} {
		if err := os.MkdirAll(filepath.Join(dataDir, subdir), 0755); err != nil {
			return "", err
		}
	}
	return dataDir, nil
}

// DBPath 数据库文件完整路径
func DBPath(cfg *AppConfig, dataDir string) string {
	return filepath.Join(dataDir, cfg.Data.DBFile)
}

// UploadDir 上传文件目录
func UploadDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}
