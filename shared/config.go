package shared

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultCompactionThreshold is the number of stale bytes that triggers a compaction.
	DefaultCompactionThreshold = 1024 * 1024
	DefaultSegmentExt          = ".log"
	DefaultReadBufferSize      = 8 * 1024
)

var DefaultConfig = EngineConfig{
	CompactionThreshold: DefaultCompactionThreshold,
	SegmentExt:          DefaultSegmentExt,
	SyncWrites:          false,
	CompactOnRemove:     true,
	ReadBufferSize:      DefaultReadBufferSize,
}

// EngineConfig defines the configuration parameters for the logcache storage engine.
// It allows customization of the compaction trigger, segment file naming and durability.
type EngineConfig struct {
	CompactionThreshold uint64      // Stale bytes that, once exceeded, trigger a compaction.
	SegmentExt          string      // Extension of segment files, including the dot.
	SyncWrites          bool        // fsync the active segment on every flush.
	CompactOnRemove     bool        // Check the compaction threshold after Remove as well as Set.
	ReadBufferSize      int         // Buffer size of segment read cursors.
	Logger              *zap.Logger // nil disables logging.
	Homepath            string      // Source directory
}

func NewEngineConfig() *EngineConfig {
	config := DefaultConfig
	return &config
}

func (ec *EngineConfig) WithCompactionThreshold(value uint64) *EngineConfig {
	ec.CompactionThreshold = value
	return ec
}

func (ec *EngineConfig) WithSegmentExt(value string) *EngineConfig {
	ec.SegmentExt = value
	return ec
}

func (ec *EngineConfig) WithSyncWrites(value bool) *EngineConfig {
	ec.SyncWrites = value
	return ec
}

func (ec *EngineConfig) WithCompactOnRemove(value bool) *EngineConfig {
	ec.CompactOnRemove = value
	return ec
}

func (ec *EngineConfig) WithReadBufferSize(value int) *EngineConfig {
	ec.ReadBufferSize = value
	return ec
}

func (ec *EngineConfig) WithLogger(logger *zap.Logger) *EngineConfig {
	ec.Logger = logger
	return ec
}

func (ec *EngineConfig) WithHomepath(value string) *EngineConfig {
	ec.Homepath = value
	return ec
}

// Normalize fills zero values with their defaults.
func (ec *EngineConfig) Normalize() {
	if ec.CompactionThreshold == 0 {
		ec.CompactionThreshold = DefaultCompactionThreshold
	}
	if ec.SegmentExt == "" {
		ec.SegmentExt = DefaultSegmentExt
	}
	if ec.ReadBufferSize <= 0 {
		ec.ReadBufferSize = DefaultReadBufferSize
	}
	if ec.Logger == nil {
		ec.Logger = zap.NewNop()
	}
}

// FileConfig is the YAML representation of an EngineConfig. Pointer fields
// distinguish "absent" from an explicit zero or false.
type FileConfig struct {
	Dir                 string  `yaml:"dir"`
	CompactionThreshold *uint64 `yaml:"compactionThreshold"`
	SegmentExt          string  `yaml:"segmentExt"`
	SyncWrites          *bool   `yaml:"syncWrites"`
	CompactOnRemove     *bool   `yaml:"compactOnRemove"`
	ReadBufferSize      *int    `yaml:"readBufferSize"`
}

// LoadConfig reads a YAML file and applies it on top of DefaultConfig.
func LoadConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can not read config %q: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("can not parse config %q: %w", path, err)
	}

	config := NewEngineConfig()
	fc.Apply(config)
	return config, nil
}

// Apply copies every field present in the file onto config.
func (fc *FileConfig) Apply(config *EngineConfig) {
	if fc.Dir != "" {
		config.Homepath = fc.Dir
	}
	if fc.CompactionThreshold != nil {
		config.CompactionThreshold = *fc.CompactionThreshold
	}
	if fc.SegmentExt != "" {
		config.SegmentExt = fc.SegmentExt
	}
	if fc.SyncWrites != nil {
		config.SyncWrites = *fc.SyncWrites
	}
	if fc.CompactOnRemove != nil {
		config.CompactOnRemove = *fc.CompactOnRemove
	}
	if fc.ReadBufferSize != nil {
		config.ReadBufferSize = *fc.ReadBufferSize
	}
}
