package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/slingshot/internal/slingshot"
)

// Config is the parsed slingshot.toml shared by the client and the server.
type Config struct {
	Client   Client
	Server   Server
	Storage  Storage
	Profiles []Profile
}

// Client configures the upload client.
type Client struct {
	BaseURL        string
	Profile        string
	UploadOnAccept bool
	Concurrency    int
	Strict         bool
	RequestTimeout time.Duration
	LogFile        string
	LogLevel       string
	Meta           slingshot.Meta
}

// Server configures the signing server.
type Server struct {
	Listen    string
	BasePath  string
	PublicURL string
	ExpiresIn time.Duration
	LogLevel  string
}

// Storage selects and configures the storage adapter.
type Storage struct {
	Driver    string
	Dir       string
	Secret    string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
}

// Profile is a named upload policy on the server.
type Profile struct {
	Name         string
	MaxSize      int64
	AllowedTypes []string
	UniqueKeys   bool
	RequiredMeta []string
}

// Storage drivers.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
	DriverMinIO = "minio"
)

const (
	defaultConfigPath     = "~/.config/slingshot/config.toml"
	defaultBaseURL        = "http://127.0.0.1:8080/api/slingshot"
	defaultLogFile        = "~/.local/state/slingshot/slingshot.log"
	defaultLogLevel       = "info"
	defaultRequestTimeout = 10 * time.Second
	defaultListen         = "127.0.0.1:8080"
	defaultBasePath       = "/api/slingshot"
	defaultExpiresIn      = time.Hour
	defaultStorageDir     = "~/.local/share/slingshot/blobs"
	defaultRegion         = "us-east-1"
)

// ErrNoProfiles is returned by ValidateServer when no profile is configured.
var ErrNoProfiles = errors.New("config: no profiles configured")

type rawConfig struct {
	BaseURL        string         `toml:"base_url"`
	Profile        string         `toml:"profile"`
	UploadOnAccept *bool          `toml:"upload_on_accept"`
	Concurrency    int            `toml:"concurrency"`
	Strict         bool           `toml:"strict"`
	RequestTimeout int            `toml:"request_timeout"`
	LogFile        string         `toml:"log_file"`
	LogLevel       string         `toml:"log_level"`
	Meta           map[string]any `toml:"meta"`

	Server struct {
		Listen    string `toml:"listen"`
		BasePath  string `toml:"base_path"`
		PublicURL string `toml:"public_url"`
		ExpiresIn int    `toml:"expires_in"`
		LogLevel  string `toml:"log_level"`
	} `toml:"server"`

	Storage struct {
		Driver    string `toml:"driver"`
		Dir       string `toml:"dir"`
		Secret    string `toml:"secret"`
		Bucket    string `toml:"bucket"`
		Region    string `toml:"region"`
		Endpoint  string `toml:"endpoint"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		UseSSL    bool   `toml:"use_ssl"`
		PathStyle bool   `toml:"path_style"`
	} `toml:"storage"`

	Profiles []struct {
		Name         string   `toml:"name"`
		MaxSize      int64    `toml:"max_size"`
		AllowedTypes []string `toml:"allowed_types"`
		UniqueKeys   bool     `toml:"unique_keys"`
		RequiredMeta []string `toml:"required_meta"`
	} `toml:"profiles"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Client: Client{
			BaseURL:        defaultBaseURL,
			UploadOnAccept: true,
			RequestTimeout: defaultRequestTimeout,
			LogFile:        mustExpand(defaultLogFile),
			LogLevel:       defaultLogLevel,
		},
		Server: Server{
			Listen:    defaultListen,
			BasePath:  defaultBasePath,
			PublicURL: publicURLFor(defaultListen),
			ExpiresIn: defaultExpiresIn,
			LogLevel:  defaultLogLevel,
		},
		Storage: Storage{
			Driver: DriverLocal,
			Dir:    mustExpand(defaultStorageDir),
			Region: defaultRegion,
		},
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (Config, error) {
	cfg := Default()

	c := &cfg.Client
	c.BaseURL = orDefault(raw.BaseURL, defaultBaseURL)
	c.Profile = strings.TrimSpace(raw.Profile)
	if raw.UploadOnAccept != nil {
		c.UploadOnAccept = *raw.UploadOnAccept
	}
	if raw.Concurrency < 0 {
		return Config{}, fmt.Errorf("concurrency must be >= 0, got %d", raw.Concurrency)
	}
	c.Concurrency = raw.Concurrency
	c.Strict = raw.Strict
	if raw.RequestTimeout > 0 {
		c.RequestTimeout = time.Duration(raw.RequestTimeout) * time.Second
	}
	c.LogFile = mustExpand(orDefault(raw.LogFile, defaultLogFile))
	c.LogLevel = strings.ToLower(orDefault(raw.LogLevel, defaultLogLevel))
	if len(raw.Meta) > 0 {
		c.Meta = slingshot.Meta(raw.Meta)
		if err := c.Meta.Validate(); err != nil {
			return Config{}, err
		}
	}

	s := &cfg.Server
	s.Listen = orDefault(raw.Server.Listen, defaultListen)
	s.BasePath = normalizeBasePath(orDefault(raw.Server.BasePath, defaultBasePath))
	s.PublicURL = strings.TrimRight(orDefault(raw.Server.PublicURL, publicURLFor(s.Listen)), "/")
	if raw.Server.ExpiresIn > 0 {
		s.ExpiresIn = time.Duration(raw.Server.ExpiresIn) * time.Second
	}
	s.LogLevel = strings.ToLower(orDefault(raw.Server.LogLevel, defaultLogLevel))

	st := &cfg.Storage
	st.Driver = strings.ToLower(orDefault(raw.Storage.Driver, DriverLocal))
	switch st.Driver {
	case DriverLocal, DriverS3, DriverMinIO:
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", st.Driver)
	}
	st.Dir = mustExpand(orDefault(raw.Storage.Dir, defaultStorageDir))
	st.Secret = strings.TrimSpace(raw.Storage.Secret)
	st.Bucket = strings.TrimSpace(raw.Storage.Bucket)
	st.Region = orDefault(raw.Storage.Region, defaultRegion)
	st.Endpoint = strings.TrimSpace(raw.Storage.Endpoint)
	st.AccessKey = strings.TrimSpace(raw.Storage.AccessKey)
	st.SecretKey = strings.TrimSpace(raw.Storage.SecretKey)
	st.UseSSL = raw.Storage.UseSSL
	st.PathStyle = raw.Storage.PathStyle

	seen := make(map[string]bool, len(raw.Profiles))
	for i, p := range raw.Profiles {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return Config{}, fmt.Errorf("profiles[%d]: name is required", i)
		}
		if strings.ContainsAny(name, "/ ") {
			return Config{}, fmt.Errorf("profile %q: name must not contain '/' or spaces", name)
		}
		if seen[name] {
			return Config{}, fmt.Errorf("profile %q defined twice", name)
		}
		if p.MaxSize < 0 {
			return Config{}, fmt.Errorf("profile %q: max_size must be >= 0", name)
		}
		seen[name] = true
		cfg.Profiles = append(cfg.Profiles, Profile{
			Name:         name,
			MaxSize:      p.MaxSize,
			AllowedTypes: trimAll(p.AllowedTypes),
			UniqueKeys:   p.UniqueKeys,
			RequiredMeta: trimAll(p.RequiredMeta),
		})
	}

	return cfg, nil
}

// ValidateServer checks the settings the signing server cannot run without.
func (c Config) ValidateServer() error {
	if len(c.Profiles) == 0 {
		return ErrNoProfiles
	}
	switch c.Storage.Driver {
	case DriverS3, DriverMinIO:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage driver %s requires bucket", c.Storage.Driver)
		}
	}
	if c.Storage.Driver == DriverMinIO && c.Storage.Endpoint == "" {
		return errors.New("storage driver minio requires endpoint")
	}
	return nil
}

// Profile returns the named profile.
func (c Config) Profile(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func publicURLFor(listen string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host
}

func normalizeBasePath(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
