package onlineplayers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the settings file read when none is given.
const DefaultConfigPath = "Minecraft_Online_Players_Overlay_Settings.ini"

// EnvPrefix prefixes environment variables that override file settings,
// e.g. ONLINEPLAYERS_MINECRAFT_SERVER_IP.
const EnvPrefix = "ONLINEPLAYERS_"

// Config holds every setting. It is not modified after LoadConfig returns.
type Config struct {
	OutputDir             string `ini:"image_output_dir" yaml:"image_output_dir"`
	ImageName             string `ini:"image_name" yaml:"image_name"`
	ServerIP              string `ini:"minecraft_server_ip" yaml:"minecraft_server_ip"`
	ServerPort            int    `ini:"minecraft_server_port" yaml:"minecraft_server_port"`
	DrawShadow            bool   `ini:"draw_shadow" yaml:"draw_shadow"`
	VerticalPadding       int    `ini:"vertical_padding" yaml:"vertical_padding"`
	RefreshEverySeconds   int    `ini:"refresh_every_seconds" yaml:"refresh_every_seconds"`
	FontPath              string `ini:"font_path" yaml:"font_path"`
	AvatarURL             string `ini:"avatar_url" yaml:"avatar_url"`
	AvatarCacheTTLSeconds int    `ini:"avatar_cache_ttl_seconds" yaml:"avatar_cache_ttl_seconds"`
	AvatarWorkers         int    `ini:"avatar_workers" yaml:"avatar_workers"`
	RequestTimeoutSeconds int    `ini:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	WebListen             string `ini:"web_listen" yaml:"web_listen"`
	HistoryDB             string `ini:"history_db" yaml:"history_db"`
}

// DefaultConfig returns the settings used for anything a file leaves out.
func DefaultConfig() Config {
	return Config{
		OutputDir:             ".",
		ImageName:             DefaultImageName,
		ServerIP:              "localhost",
		ServerPort:            25565,
		DrawShadow:            true,
		VerticalPadding:       12,
		RefreshEverySeconds:   10,
		FontPath:              "minecraft_font.ttf",
		AvatarURL:             DefaultAvatarURL,
		AvatarCacheTTLSeconds: 60,
		AvatarWorkers:         4,
		RequestTimeoutSeconds: 5,
	}
}

// LoadConfig reads settings from path (.ini, .yaml or .yml). A missing file is
// created with the defaults. A .env file in the working directory and
// ONLINEPLAYERS_* variables override the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(path, cfg); err != nil {
			return cfg, fmt.Errorf("create %s: %w", path, err)
		}
	} else if err != nil {
		return cfg, err
	} else if err := readConfig(path, &cfg); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readConfig(path string, cfg *Config) error {
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Section(ini.DefaultSection).MapTo(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeConfig(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if isYAML(path) {
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		return os.WriteFile(path, raw, 0o644)
	}

	f := ini.Empty()
	if err := f.Section(ini.DefaultSection).ReflectFrom(&cfg); err != nil {
		return err
	}
	return f.SaveTo(path)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("IMAGE_OUTPUT_DIR", &c.OutputDir)
	str("IMAGE_NAME", &c.ImageName)
	str("MINECRAFT_SERVER_IP", &c.ServerIP)
	str("FONT_PATH", &c.FontPath)
	str("AVATAR_URL", &c.AvatarURL)
	str("WEB_LISTEN", &c.WebListen)
	str("HISTORY_DB", &c.HistoryDB)

	if v, ok := lookup(EnvPrefix + "DRAW_SHADOW"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sDRAW_SHADOW: %w", EnvPrefix, err)
		}
		c.DrawShadow = b
	}

	return errors.Join(
		num("MINECRAFT_SERVER_PORT", &c.ServerPort),
		num("VERTICAL_PADDING", &c.VerticalPadding),
		num("REFRESH_EVERY_SECONDS", &c.RefreshEverySeconds),
		num("AVATAR_CACHE_TTL_SECONDS", &c.AvatarCacheTTLSeconds),
		num("AVATAR_WORKERS", &c.AvatarWorkers),
		num("REQUEST_TIMEOUT_SECONDS", &c.RequestTimeoutSeconds),
	)
}

// Validate reports settings no overlay can run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServerIP) == "" {
		errs = append(errs, errors.New("minecraft_server_ip is required"))
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("minecraft_server_port %d out of range", c.ServerPort))
	}
	if c.VerticalPadding < 0 {
		errs = append(errs, fmt.Errorf("vertical_padding %d is negative", c.VerticalPadding))
	}
	if c.RefreshEverySeconds < 1 {
		errs = append(errs, fmt.Errorf("refresh_every_seconds must be at least 1, got %d", c.RefreshEverySeconds))
	}
	if strings.TrimSpace(c.ImageName) == "" {
		errs = append(errs, errors.New("image_name is required"))
	}
	if strings.Count(c.AvatarURL, "%s") != 1 {
		errs = append(errs, fmt.Errorf("avatar_url %q must contain exactly one %%s", c.AvatarURL))
	}
	return errors.Join(errs...)
}

// Interval is the delay between poll cycles.
func (c Config) Interval() time.Duration {
	return time.Duration(c.RefreshEverySeconds) * time.Second
}

// RequestTimeout bounds status queries and avatar downloads.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AvatarCacheTTL is how long a downloaded avatar is reused.
func (c Config) AvatarCacheTTL() time.Duration {
	return time.Duration(c.AvatarCacheTTLSeconds) * time.Second
}

// Log writes every effective setting at info level.
func (c Config) Log(log *zap.Logger) {
	log.Info("initializing online players overlay",
		zap.String("image_output_dir", c.OutputDir),
		zap.String("image_name", c.ImageName),
		zap.String("minecraft_server_ip", c.ServerIP),
		zap.Int("minecraft_server_port", c.ServerPort),
		zap.Bool("draw_shadow", c.DrawShadow),
		zap.Int("vertical_padding", c.VerticalPadding),
		zap.Int("refresh_every_seconds", c.RefreshEverySeconds),
		zap.String("font_path", c.FontPath),
		zap.Int("avatar_cache_ttl_seconds", c.AvatarCacheTTLSeconds),
		zap.Int("avatar_workers", c.AvatarWorkers),
		zap.String("web_listen", c.WebListen),
		zap.String("history_db", c.HistoryDB),
	)
}
