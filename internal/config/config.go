package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Side channel modes for the harness protocol.
const (
	SideChannelFD     = "fd"
	SideChannelStderr = "stderr"
)

// Config holds all configuration of the runner service.
type Config struct {
	NATS    NATSConfig    `mapstructure:"nats"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Judge   JudgeConfig   `mapstructure:"judge"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type NATSConfig struct {
	URL                   string `mapstructure:"url"`
	SubmissionCreatedSubj string `mapstructure:"submissionCreatedSubject"`
	SubmissionResultSubj  string `mapstructure:"submissionResultSubject"`
	QueueGroup            string `mapstructure:"queueGroup"`
	MaxReconnects         int    `mapstructure:"maxReconnects"`
	ReconnectWaitSec      int    `mapstructure:"reconnectWaitSec"`
}

// RunnerConfig controls how submissions are taken in and where scratch files live.
type RunnerConfig struct {
	SandboxBaseDir    string  `mapstructure:"sandboxBaseDir"` // wrapper artifacts are created here
	MaxConcurrentJobs int     `mapstructure:"maxConcurrentJobs"`
	SandboxType       string  `mapstructure:"sandboxType"`
	IntakeRatePerSec  float64 `mapstructure:"intakeRatePerSec"` // 0 disables intake smoothing
	IntakeBurst       int     `mapstructure:"intakeBurst"`
	JobTimeoutSec     int     `mapstructure:"jobTimeoutSec"`
}

// JudgeConfig is passed to the orchestrator at construction.
type JudgeConfig struct {
	TimeLimitSec   float64 `mapstructure:"timeLimitSec"`
	MemoryLimitMb  int     `mapstructure:"memoryLimitMb"` // advisory, never enforced
	Interpreter    string  `mapstructure:"interpreter"`
	SideChannel    string  `mapstructure:"sideChannel"`
	UniqueMarkers  bool    `mapstructure:"uniqueMarkers"`
	MeasureMemory  bool    `mapstructure:"measureMemory"`
	MaxOutputBytes int     `mapstructure:"maxOutputBytes"`
}

// TimeLimit returns the configured budget as a duration.
func (j JudgeConfig) TimeLimit() time.Duration {
	return time.Duration(j.TimeLimitSec * float64(time.Second))
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json or console
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the metrics endpoint
}

// DefaultJudgeConfig returns the judge settings used when nothing is configured.
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		TimeLimitSec:   30,
		MemoryLimitMb:  128,
		Interpreter:    "python3",
		SideChannel:    SideChannelFD,
		UniqueMarkers:  true,
		MaxOutputBytes: 8 << 20,
	}
}

// Validate checks values that would make evaluation meaningless.
func (c *Config) Validate() error {
	if c.Judge.TimeLimitSec <= 0 {
		return fmt.Errorf("judge.timeLimitSec must be positive, got %v", c.Judge.TimeLimitSec)
	}
	if c.Judge.Interpreter == "" {
		return errors.New("judge.interpreter must not be empty")
	}
	switch c.Judge.SideChannel {
	case SideChannelFD, SideChannelStderr:
	default:
		return fmt.Errorf("judge.sideChannel must be %q or %q, got %q", SideChannelFD, SideChannelStderr, c.Judge.SideChannel)
	}
	if c.Runner.MaxConcurrentJobs < 0 {
		return fmt.Errorf("runner.maxConcurrentJobs must not be negative, got %d", c.Runner.MaxConcurrentJobs)
	}
	return nil
}

// LoadConfig reads configuration from a config file, a .env file and environment
// variables. Environment variables use the RUNNER prefix, e.g. RUNNER_JUDGE_TIMELIMITSEC.
func LoadConfig(configPaths ...string) (*Config, error) {
	// A missing .env is fine; anything else is worth failing on.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configPaths {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/runner-service/")

	v.SetEnvPrefix("RUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
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

func setDefaults(v *viper.Viper) {
	judge := DefaultJudgeConfig()

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.submissionCreatedSubject", "submission.created")
	v.SetDefault("nats.submissionResultSubject", "submission.result")
	v.SetDefault("nats.queueGroup", "runner-service-group")
	v.SetDefault("nats.maxReconnects", 5)
	v.SetDefault("nats.reconnectWaitSec", 2)

	v.SetDefault("runner.sandboxBaseDir", "/tmp/runner_sandbox")
	v.SetDefault("runner.sandboxType", "direct")
	v.SetDefault("runner.maxConcurrentJobs", 100)
	v.SetDefault("runner.intakeRatePerSec", 0)
	v.SetDefault("runner.intakeBurst", 10)
	v.SetDefault("runner.jobTimeoutSec", 300)

	v.SetDefault("judge.timeLimitSec", judge.TimeLimitSec)
	v.SetDefault("judge.memoryLimitMb", judge.MemoryLimitMb)
	v.SetDefault("judge.interpreter", judge.Interpreter)
	v.SetDefault("judge.sideChannel", judge.SideChannel)
	v.SetDefault("judge.uniqueMarkers", judge.UniqueMarkers)
	v.SetDefault("judge.measureMemory", judge.MeasureMemory)
	v.SetDefault("judge.maxOutputBytes", judge.MaxOutputBytes)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("metrics.addr", ":9090")
}
