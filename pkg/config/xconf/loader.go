package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

const (
	keyDelim  = "."
	structTag = "koanf"
)

// Load 从文件加载配置，格式由扩展名决定，缺省字段取 Default() 的值。
// 返回的配置已通过 Validate。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes 从字节数据加载配置。空数据得到默认配置。
func LoadBytes(data []byte, format Format) (*Config, error) {
	k := koanf.New(keyDelim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: structTag}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DetectFormat 根据文件扩展名检测配置格式。
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// loadData 解析数据到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	parser, err := parserFor(format)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

// Marshal 按指定格式序列化有效配置，用于展示与导出。
func (c *Config) Marshal(format Format) ([]byte, error) {
	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}
	return parser.Marshal(map[string]any{
		"ttl-scanner-worker-interval":  c.WorkerInterval,
		"ttl-scanner-manager-interval": c.ManagerInterval,
		"queue-max-len":                c.QueueMaxLen,
		"pattern-cache-size":           c.PatternCacheSize,
		"stats-report":                 c.StatsReport,
		"log": map[string]any{
			"level":       c.Log.Level,
			"format":      c.Log.Format,
			"file":        c.Log.File,
			"max-size-mb": c.Log.MaxSizeMB,
			"max-backups": c.Log.MaxBackups,
		},
	})
}
