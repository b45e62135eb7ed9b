package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/zencache/pkg/observability/xlog"
)

// =============================================================================
// 加载
// =============================================================================

func TestLoadBytes_YAML(t *testing.T) {
	data := []byte(`
ttl-scanner-worker-interval: 5
ttl-scanner-manager-interval: 10
queue-max-len: 1000
stats-report: "*/5 * * * *"
log:
  level: debug
  format: json
`)
	cfg, err := LoadBytes(data, FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.WorkerInterval)
	assert.Equal(t, 10, cfg.ManagerInterval)
	assert.Equal(t, 1000, cfg.QueueMaxLen)
	assert.Equal(t, "*/5 * * * *", cfg.StatsReport)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// 未设置的字段保留默认值
	assert.Equal(t, 128, cfg.PatternCacheSize)
	assert.Equal(t, xlog.DefaultMaxSizeMB, cfg.Log.MaxSizeMB)

	assert.Equal(t, 5*time.Second, cfg.WorkerEvery())
	assert.Equal(t, 10*time.Second, cfg.ManagerEvery())
}

func TestLoadBytes_JSON(t *testing.T) {
	cfg, err := LoadBytes([]byte(`{"ttl-scanner-worker-interval": 2, "log": {"level": "warn"}}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerInterval)
	assert.Equal(t, 60, cfg.ManagerInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadBytes_EmptyGivesDefaults(t *testing.T) {
	cfg, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{"unknown format", "a: 1", Format("toml"), ErrUnsupportedFormat},
		{"bad yaml", "log: [unclosed", FormatYAML, ErrParseFailed},
		{"bad json", "{", FormatJSON, ErrParseFailed},
		{"wrong type", `{"queue-max-len": "lots"}`, FormatJSON, ErrUnmarshalFailed},
		{"zero worker interval", "ttl-scanner-worker-interval: 0", FormatYAML, ErrInvalidConfig},
		{"negative manager interval", "ttl-scanner-manager-interval: -1", FormatYAML, ErrInvalidConfig},
		{"negative queue length", "queue-max-len: -5", FormatYAML, ErrInvalidConfig},
		{"bad cron", `stats-report: "every minute please"`, FormatYAML, ErrInvalidConfig},
		{"bad log level", "log:\n  level: loud", FormatYAML, ErrInvalidConfig},
		{"bad log format", "log:\n  format: xml", FormatYAML, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadBytes([]byte(tt.data), tt.format)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_JoinsProblems(t *testing.T) {
	cfg := Default()
	cfg.WorkerInterval = 0
	cfg.ManagerInterval = 0
	cfg.StatsReport = ""

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "ttl-scanner-worker-interval")
	assert.Contains(t, err.Error(), "ttl-scanner-manager-interval")
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zencache.yml")
	require.NoError(t, os.WriteFile(path, []byte("queue-max-len: 3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.QueueMaxLen)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, err = Load(filepath.Join(dir, "zencache.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.yaml", FormatYAML, true},
		{"dir/a.YML", FormatYAML, true},
		{"a.json", FormatJSON, true},
		{"a.toml", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		assert.Equal(t, tt.want, got, tt.path)
		assert.Equal(t, tt.ok, err == nil, tt.path)
	}
}

// =============================================================================
// 转换
// =============================================================================

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.QueueMaxLen = 42
	cfg.Log.Level = "error"

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := cfg.Marshal(format)
		require.NoError(t, err)

		back, err := LoadBytes(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, cfg, back)
	}

	_, err := cfg.Marshal("ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCacheOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.CacheOptions(), 3)
}

func TestLogConfig_Builder(t *testing.T) {
	cfg := Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "zencache.log")

	logger, cleanup, err := cfg.Log.Builder().Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	assert.Equal(t, xlog.LevelInfo, logger.GetLevel())
}
