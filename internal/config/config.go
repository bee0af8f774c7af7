// Package config loads the renderer configuration from a YAML file, the
// environment (prefix RESUME_) and built-in defaults, in increasing order of
// precedence: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonathan/resume-renderer/internal/compiler"
)

// EnvPrefix is prepended to every environment override, e.g. RESUME_SANDBOX_IMAGE
const EnvPrefix = "RESUME"

// Config is the full renderer configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Security  SecurityConfig  `mapstructure:"security"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type TemplatesConfig struct {
	// Sources in priority order; earlier sources win on id conflicts
	Sources       []string `mapstructure:"sources" validate:"min=1,dive,required"`
	DefaultLocale string   `mapstructure:"default_locale" validate:"required"`
	ListLimit     int      `mapstructure:"list_limit" validate:"gt=0"`
}

type SecurityConfig struct {
	// ExtraPatterns are appended to the built-in injection deny-list
	ExtraPatterns []string `mapstructure:"extra_patterns"`
}

type SandboxConfig struct {
	DockerHost     string        `mapstructure:"docker_host"`
	APIVersion     string        `mapstructure:"api_version"`
	Image          string        `mapstructure:"image" validate:"required"`
	RequireDigest  bool          `mapstructure:"require_digest"`
	PullIfMissing  bool          `mapstructure:"pull_if_missing"`
	WorkRoot       string        `mapstructure:"work_root"`
	User           string        `mapstructure:"user" validate:"required"`
	Command        []string      `mapstructure:"command"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0s"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"gt=0s"`
	Memory         string        `mapstructure:"memory" validate:"required"`
	CPUs           float64       `mapstructure:"cpus" validate:"gt=0,lte=64"`
	PidsLimit      int64         `mapstructure:"pids_limit" validate:"gt=0"`
	TmpfsSize      string        `mapstructure:"tmpfs_size" validate:"required"`
	MaxPDFBytes    int64         `mapstructure:"max_pdf_bytes" validate:"gt=0"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent" validate:"gte=0"`
	OrphanMaxAge   time.Duration `mapstructure:"orphan_max_age" validate:"gt=0s"`
	// SweepInterval enables the orphan sweeper in serve when positive
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0s"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0s"`
}

var defaults = map[string]any{
	"logging.level":  "info",
	"logging.format": "json",

	"templates.sources":        []string{"bundled:"},
	"templates.default_locale": "en",
	"templates.list_limit":     50,

	"security.extra_patterns": []string{},

	"sandbox.docker_host":     "",
	"sandbox.api_version":     "",
	"sandbox.image":           "texlive/texlive:latest-small",
	"sandbox.require_digest":  true,
	"sandbox.pull_if_missing": false,
	"sandbox.work_root":       "",
	"sandbox.user":            compiler.DefaultUser,
	"sandbox.command":         []string{},
	"sandbox.timeout":         compiler.DefaultTimeout,
	"sandbox.cleanup_timeout": compiler.DefaultCleanupTimeout,
	"sandbox.memory":          "512m",
	"sandbox.cpus":            1.0,
	"sandbox.pids_limit":      128,
	"sandbox.tmpfs_size":      "64m",
	"sandbox.max_pdf_bytes":   compiler.DefaultMaxPDFBytes,
	"sandbox.max_concurrent":  4,
	"sandbox.orphan_max_age":  compiler.DefaultOrphanMaxAge,
	"sandbox.sweep_interval":  0,

	"server.addr":             ":9090",
	"server.shutdown_timeout": 10 * time.Second,
}

// Load reads configuration. An empty path searches ./config.yaml and
// ./configs/config.yaml and tolerates neither existing; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks struct constraints and the values that need parsing:
// byte sizes and the sandbox image reference.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	if _, err := units.RAMInBytes(c.Sandbox.Memory); err != nil {
		return fmt.Errorf("config error: sandbox.memory: %w", err)
	}
	if _, err := units.RAMInBytes(c.Sandbox.TmpfsSize); err != nil {
		return fmt.Errorf("config error: sandbox.tmpfs_size: %w", err)
	}

	if _, err := reference.ParseNormalizedNamed(c.Sandbox.Image); err != nil {
		return fmt.Errorf("config error: sandbox.image: %w", err)
	}

	return nil
}

// CompilerConfig converts the sandbox section for compiler.New. It assumes
// Validate has passed. With require_digest set, a tagged image is rejected
// here rather than in Validate so commands that never compile still run.
func (s SandboxConfig) CompilerConfig() (compiler.Config, error) {
	if s.RequireDigest {
		named, err := reference.ParseNormalizedNamed(s.Image)
		if err != nil {
			return compiler.Config{}, fmt.Errorf("sandbox.image: %w", err)
		}
		if _, ok := named.(reference.Canonical); !ok {
			return compiler.Config{}, fmt.Errorf("sandbox.image %q must be pinned by digest (or set sandbox.require_digest: false)", s.Image)
		}
	}

	memory, err := units.RAMInBytes(s.Memory)
	if err != nil {
		return compiler.Config{}, fmt.Errorf("sandbox.memory: %w", err)
	}
	tmpfs, err := units.RAMInBytes(s.TmpfsSize)
	if err != nil {
		return compiler.Config{}, fmt.Errorf("sandbox.tmpfs_size: %w", err)
	}

	return compiler.Config{
		Image:          s.Image,
		PullIfMissing:  s.PullIfMissing,
		WorkRoot:       s.WorkRoot,
		User:           s.User,
		Command:        s.Command,
		Timeout:        s.Timeout,
		CleanupTimeout: s.CleanupTimeout,
		Limits: compiler.Limits{
			MemoryBytes: memory,
			NanoCPUs:    int64(s.CPUs * 1e9),
			PidsLimit:   s.PidsLimit,
			TmpfsBytes:  tmpfs,
		},
		MaxPDFBytes:   s.MaxPDFBytes,
		MaxConcurrent: s.MaxConcurrent,
	}, nil
}
