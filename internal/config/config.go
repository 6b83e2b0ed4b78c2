package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:9000"
	DefaultDBFileName  = ".keepsake.db"
	DefaultLogLevel    = "info"
	configFileName     = ".keepsake.toml"
	configDirEnvKey    = "KEEPSAKE_CONFIG_DIR"
	apiURLEnvKey       = "KEEPSAKE_API_URL"
	dbPathEnvKey       = "KEEPSAKE_DB"
	logLevelEnvKey     = "KEEPSAKE_LOG_LEVEL"
	publicURLEnvKey    = "KEEPSAKE_PUBLIC_BASE_URL"
	corsOriginsEnvKey  = "KEEPSAKE_CORS_ORIGINS"
	trustProjectEnvKey = "KEEPSAKE_TRUST_PROJECT_CONFIG"

	DefaultMaxUploadBytes     int64 = 512 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024
	DefaultChunkSizeBytes     int64 = 255 * 1024
	DefaultPrefetchChunks           = 2
	DefaultCleanupConcurrency       = 4

	// maxChunkSizeBytes keeps a single chunk row well under SQLite's blob limit.
	maxChunkSizeBytes int64 = 16 * 1024 * 1024
)

// MediaConfig controls uploads and the chunked object store.
type MediaConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
	ChunkSizeBytes     int64 `toml:"chunk_size_bytes"`
	PrefetchChunks     int   `toml:"prefetch_chunks"`
	CleanupConcurrency int   `toml:"cleanup_concurrency"`
}

// Config defines runtime configuration for keepsake.
type Config struct {
	APIURL                   string      `toml:"api_url"`
	DBPath                   string      `toml:"db_path"`
	LogLevel                 string      `toml:"log_level"`
	PublicBaseURL            string      `toml:"public_base_url"`
	CORSOrigins              []string    `toml:"cors_origins"`
	Media                    MediaConfig `toml:"media"`
	TrustedProjectConfigPath string      `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Media: MediaConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
			ChunkSizeBytes:     DefaultChunkSizeBytes,
			PrefetchChunks:     DefaultPrefetchChunks,
			CleanupConcurrency: DefaultCleanupConcurrency,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// keySpec binds a dotted config key to its field. parse validates a value
// given on the command line and returns what is written to TOML.
type keySpec struct {
	name  string
	get   func(*Config) string
	parse func(string) (any, error)
}

var keySpecs = []keySpec{
	{"api_url", func(c *Config) string { return c.APIURL }, parseString},
	{"db_path", func(c *Config) string { return c.DBPath }, parseString},
	{"log_level", func(c *Config) string { return c.LogLevel }, parseLogLevel},
	{"public_base_url", func(c *Config) string { return c.PublicBaseURL }, parseString},
	{"cors_origins", func(c *Config) string { return strings.Join(c.CORSOrigins, ",") }, func(v string) (any, error) { return splitCSV(v), nil }},
	{"media.max_upload_bytes", func(c *Config) string { return formatInt(c.Media.MaxUploadBytes) }, positiveInt64("media.max_upload_bytes", 0)},
	{"media.multipart_max_memory", func(c *Config) string { return formatInt(c.Media.MultipartMaxMemory) }, positiveInt64("media.multipart_max_memory", 0)},
	{"media.chunk_size_bytes", func(c *Config) string { return formatInt(c.Media.ChunkSizeBytes) }, positiveInt64("media.chunk_size_bytes", maxChunkSizeBytes)},
	{"media.prefetch_chunks", func(c *Config) string { return strconv.Itoa(c.Media.PrefetchChunks) }, positiveInt("media.prefetch_chunks")},
	{"media.cleanup_concurrency", func(c *Config) string { return strconv.Itoa(c.Media.CleanupConcurrency) }, positiveInt("media.cleanup_concurrency")},
}

func lookupKey(key string) (keySpec, bool) {
	for _, spec := range keySpecs {
		if spec.name == key {
			return spec, true
		}
	}
	return keySpec{}, false
}

// AllowedKeys lists every settable key in display order.
func AllowedKeys() []string {
	out := make([]string, len(keySpecs))
	for i, spec := range keySpecs {
		out[i] = spec.name
	}
	return out
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// Get returns the effective value of key as it would be written by SetKey.
func (c *Config) Get(key string) (string, error) {
	spec, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	return spec.get(c), nil
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func parseString(v string) (any, error) { return strings.TrimSpace(v), nil }

func parseLogLevel(v string) (any, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "debug", "info", "warn", "warning", "error":
		return v, nil
	default:
		return nil, fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
}

// positiveInt64 accepts integers in (0, max]; max 0 means unbounded.
func positiveInt64(key string, max int64) func(string) (any, error) {
	return func(v string) (any, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		if max > 0 && n > max {
			return nil, fmt.Errorf("%s must be at most %d", key, max)
		}
		return n, nil
	}
}

func positiveInt(key string) func(string) (any, error) {
	return func(v string) (any, error) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return n, nil
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	spec, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	parsedValue, err := spec.parse(value)
	if err != nil {
		return err
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// envOverrides are applied after every file, in order. A set but empty
// KEEPSAKE_CORS_ORIGINS clears the list; other empty values are ignored.
var envOverrides = []struct {
	key   string
	apply func(*Config, string)
}{
	{apiURLEnvKey, func(c *Config, v string) { c.APIURL = v }},
	{dbPathEnvKey, func(c *Config, v string) { c.DBPath = v }},
	{logLevelEnvKey, func(c *Config, v string) { c.LogLevel = v }},
	{publicURLEnvKey, func(c *Config, v string) { c.PublicBaseURL = v }},
	{corsOriginsEnvKey, func(c *Config, v string) { c.CORSOrigins = splitCSV(v) }},
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		raw, ok := os.LookupEnv(o.key)
		if !ok {
			continue
		}
		if v := strings.TrimSpace(raw); v != "" || o.key == corsOriginsEnvKey {
			o.apply(cfg, v)
		}
	}
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				loaded, err := loadFileIfExists(projectPath, &cfg)
				if err != nil {
					return nil, err
				}
				if loaded {
					cfg.TrustedProjectConfigPath = projectPath
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	applyEnv(&cfg)
	cfg.normalize()

	return &cfg, nil
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if c.Media.MaxUploadBytes <= 0 {
		c.Media.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Media.MultipartMaxMemory <= 0 {
		c.Media.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Media.ChunkSizeBytes <= 0 || c.Media.ChunkSizeBytes > maxChunkSizeBytes {
		c.Media.ChunkSizeBytes = DefaultChunkSizeBytes
	}
	if c.Media.PrefetchChunks <= 0 {
		c.Media.PrefetchChunks = DefaultPrefetchChunks
	}
	if c.Media.CleanupConcurrency <= 0 {
		c.Media.CleanupConcurrency = DefaultCleanupConcurrency
	}
	origins := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORSOrigins = origins
}
