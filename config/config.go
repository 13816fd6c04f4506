// Package config loads the rollcall settings from defaults, an optional
// YAML file, a .env file and ROLLCALL_ prefixed environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/classtrack/rollcall"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ROLLCALL_SERVER_ADDR.
const EnvPrefix = "ROLLCALL"

// Config is the complete runtime configuration.
type Config struct {
	Detector rollcall.Options
	Server   Server
	Database Database
	Log      Log
}

// Server configures the HTTP adapter.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Database configures the attendance store. An empty URL disables persistence.
type Database struct {
	URL string `mapstructure:"url"`
}

// Log configures the logrus logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type cascadeParams struct {
	MinSize      int     `mapstructure:"min_size"`
	MaxSize      int     `mapstructure:"max_size"`
	ShiftFactor  float64 `mapstructure:"shift_factor"`
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	IoUThreshold float64 `mapstructure:"iou_threshold"`
	MinScore     float32 `mapstructure:"min_score"`
}

type detector struct {
	Strategy           string        `mapstructure:"strategy"`
	Model              string        `mapstructure:"model"`
	WindowSize         int           `mapstructure:"window_size"`
	Stride             int           `mapstructure:"stride"`
	BrightnessLimit    float64       `mapstructure:"brightness_limit"`
	FaceCascade        string        `mapstructure:"face_cascade"`
	EyeCascade         string        `mapstructure:"eye_cascade"`
	EyeFinder          string        `mapstructure:"eye_finder"`
	FaceAngle          float64       `mapstructure:"face_angle"`
	Face               cascadeParams `mapstructure:"face"`
	Eyes               cascadeParams `mapstructure:"eyes"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
	FailurePolicy      string        `mapstructure:"failure_policy"`
	Workers            int           `mapstructure:"workers"`
}

type file struct {
	Detector detector `mapstructure:"detector"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Log      Log      `mapstructure:"log"`
}

// Load reads the configuration. When path is empty, rollcall.yaml is looked up
// in the working directory and in $HOME/.rollcall; a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rollcall")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.rollcall")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, err
	}

	cfg := &Config{
		Detector: f.Detector.options(),
		Server:   f.Server,
		Database: f.Database,
		Log:      f.Log,
	}
	if err := cfg.Detector.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := rollcall.DefaultOptions()

	v.SetDefault("detector.strategy", d.Strategy)
	v.SetDefault("detector.model", d.ModelPath)
	v.SetDefault("detector.window_size", d.WindowSize)
	v.SetDefault("detector.stride", d.Stride)
	v.SetDefault("detector.brightness_limit", d.BrightnessLimit)
	v.SetDefault("detector.face_cascade", d.FaceCascade)
	v.SetDefault("detector.eye_cascade", d.EyeCascade)
	v.SetDefault("detector.eye_finder", d.EyeFinder)
	v.SetDefault("detector.face_angle", d.FaceAngle)
	for key, p := range map[string]rollcall.CascadeParams{"face": d.Face, "eyes": d.Eyes} {
		v.SetDefault("detector."+key+".min_size", p.MinSize)
		v.SetDefault("detector."+key+".max_size", p.MaxSize)
		v.SetDefault("detector."+key+".shift_factor", p.ShiftFactor)
		v.SetDefault("detector."+key+".scale_factor", p.ScaleFactor)
		v.SetDefault("detector."+key+".iou_threshold", p.IoUThreshold)
		v.SetDefault("detector."+key+".min_score", p.MinScore)
	}
	v.SetDefault("detector.promotion_threshold", d.PromotionThreshold)
	v.SetDefault("detector.failure_policy", string(d.FailurePolicy))
	v.SetDefault("detector.workers", runtime.NumCPU())

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (d detector) options() rollcall.Options {
	return rollcall.Options{
		Strategy:           d.Strategy,
		ModelPath:          d.Model,
		WindowSize:         d.WindowSize,
		Stride:             d.Stride,
		BrightnessLimit:    d.BrightnessLimit,
		FaceCascade:        d.FaceCascade,
		EyeCascade:         d.EyeCascade,
		EyeFinder:          d.EyeFinder,
		FaceAngle:          d.FaceAngle,
		Face:               d.Face.params(),
		Eyes:               d.Eyes.params(),
		PromotionThreshold: d.PromotionThreshold,
		FailurePolicy:      rollcall.FailurePolicy(d.FailurePolicy),
		Workers:            d.Workers,
	}
}

func (c cascadeParams) params() rollcall.CascadeParams {
	return rollcall.CascadeParams{
		MinSize:      c.MinSize,
		MaxSize:      c.MaxSize,
		ShiftFactor:  c.ShiftFactor,
		ScaleFactor:  c.ScaleFactor,
		IoUThreshold: c.IoUThreshold,
		MinScore:     c.MinScore,
	}
}

// Logger builds a logrus logger with the configured level and formatter.
func (l Log) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.New("unknown log format " + l.Format)
	}
	return logger, nil
}
