package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
)

// CacheConfig configuration for Cache
type CacheConfig struct {
	Dir     string
	Loader  Loader
	Logger  core.Logger
	Metrics core.MetricsCollector
}

// Cache lazily loads models from a directory and keeps them for the life of the process.
type Cache struct {
	dir     string
	loader  Loader
	logger  core.Logger
	metrics core.MetricsCollector

	mu      sync.Mutex
	entries map[string]*entry
}

// entry serializes loads of one key. model stays nil until a load succeeds.
type entry struct {
	mu    sync.Mutex
	model Model
}

// NewCache creates a model cache rooted at cfg.Dir.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NopMetrics{}
	}
	return &Cache{
		dir:     cfg.Dir,
		loader:  cfg.Loader,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		entries: make(map[string]*entry),
	}
}

// Sanitize keeps only the base file name of a requested model,
// so "../../etc/passwd" becomes "passwd".
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// Resolve maps a requested model name to its cache key and file path.
func (c *Cache) Resolve(name string) (string, string, error) {
	key := Sanitize(name)
	if key == "" {
		return "", "", core.NotFound("model %q is not found in %q", name, c.dir)
	}

	path := filepath.Join(c.dir, key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return key, path, core.NotFound("model %q is not found in %q", key, c.dir)
	}
	return key, path, nil
}

// GetOrLoad returns the cached model for name, loading it on first use.
// Concurrent first requests for the same name load it once; failed
// loads are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, name string) (Model, error) {
	key, path, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Info("Loading model from %s", path)
	start := time.Now()
	m, err := c.loader.Load(path)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordModelLoad(key, duration, false)
		c.logger.Error("Failed to load model %s: %v", key, err)
		return nil, core.LoadError(err, "failed to load model %q", key)
	}
	if m == nil {
		c.metrics.RecordModelLoad(key, duration, false)
		return nil, core.LoadError(errors.New("loader returned no model"), "failed to load model %q", key)
	}

	c.metrics.RecordModelLoad(key, duration, true)
	c.logger.Info("Model %s ready in %s", key, duration)
	e.model = m
	return m, nil
}

// Loaded returns the sorted keys of models currently in memory.
func (c *Cache) Loaded() []string {
	c.mu.Lock()
	entries := make(map[string]*entry, len(c.entries))
	for k, e := range c.entries {
		entries[k] = e
	}
	c.mu.Unlock()

	var keys []string
	for k, e := range entries {
		e.mu.Lock()
		if e.model != nil {
			keys = append(keys, k)
		}
		e.mu.Unlock()
	}
	sort.Strings(keys)
	return keys
}

// Available lists the model files in the models directory.
func (c *Cache) Available() ([]Info, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list models in %s: %w", c.dir, err)
	}

	loaded := make(map[string]bool)
	for _, k := range c.Loaded() {
		loaded[k] = true
	}

	infos := make([]Info, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		var size int64
		if fi, err := de.Info(); err == nil {
			size = fi.Size()
		}
		infos = append(infos, Info{
			Name:   de.Name(),
			Size:   size,
			Loaded: loaded[de.Name()],
		})
	}
	return infos, nil
}

// Close releases every loaded model.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var closeErr error
	for key, e := range c.entries {
		e.mu.Lock()
		if e.model != nil {
			if err := e.model.Close(); err != nil {
				closeErr = errors.Join(closeErr, fmt.Errorf("close model %s: %w", key, err))
			}
			e.model = nil
		}
		e.mu.Unlock()
	}
	c.entries = make(map[string]*entry)
	return closeErr
}
