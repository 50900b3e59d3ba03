package shared

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestEngineConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config := NewEngineConfig()
		if config.CompactionThreshold != 1024*1024 {
			t.Errorf("CompactionThreshold = %v, want %v", config.CompactionThreshold, 1024*1024)
		}
		if config.SegmentExt != ".log" {
			t.Errorf("SegmentExt = %q, want %q", config.SegmentExt, ".log")
		}
		if !config.CompactOnRemove || config.SyncWrites {
			t.Errorf("CompactOnRemove = %v, SyncWrites = %v, want true, false", config.CompactOnRemove, config.SyncWrites)
		}
	})

	t.Run("builders do not touch DefaultConfig", func(t *testing.T) {
		config := NewEngineConfig().WithCompactionThreshold(10).WithSegmentExt(".seg").WithSyncWrites(true)
		if config.CompactionThreshold != 10 || config.SegmentExt != ".seg" || !config.SyncWrites {
			t.Errorf("config = %+v", config)
		}
		if DefaultConfig.CompactionThreshold != DefaultCompactionThreshold {
			t.Errorf("DefaultConfig.CompactionThreshold = %v, want %v", DefaultConfig.CompactionThreshold, DefaultCompactionThreshold)
		}
	})

	t.Run("Normalize", func(t *testing.T) {
		config := EngineConfig{}
		config.Normalize()
		if config.CompactionThreshold != DefaultCompactionThreshold || config.SegmentExt != DefaultSegmentExt ||
			config.ReadBufferSize != DefaultReadBufferSize || config.Logger == nil {
			t.Errorf("Normalize() = %+v", config)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logcache.yaml")
	data := []byte(`
dir: /var/lib/logcache
compactionThreshold: 4096
syncWrites: true
compactOnRemove: false
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if config.Homepath != "/var/lib/logcache" {
		t.Errorf("Homepath = %q, want %q", config.Homepath, "/var/lib/logcache")
	}
	if config.CompactionThreshold != 4096 {
		t.Errorf("CompactionThreshold = %v, want %v", config.CompactionThreshold, 4096)
	}
	if !config.SyncWrites || config.CompactOnRemove {
		t.Errorf("SyncWrites = %v, CompactOnRemove = %v, want true, false", config.SyncWrites, config.CompactOnRemove)
	}
	// absent fields keep their defaults
	if config.SegmentExt != DefaultSegmentExt || config.ReadBufferSize != DefaultReadBufferSize {
		t.Errorf("SegmentExt = %q, ReadBufferSize = %v", config.SegmentExt, config.ReadBufferSize)
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("LoadConfig() = %v, want not exist", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(bad, []byte("compactionThreshold: [1, 2"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(bad); err == nil {
			t.Errorf("LoadConfig() = nil, want error")
		}
	})
}
