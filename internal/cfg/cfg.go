package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/common"
)

// Settings is the full runtime configuration, grouped by concern.
type Settings struct {
	Learner  LearnerSettings
	Sensor   SensorSettings
	Server   ServerSettings
	Features FeatureSettings
	Alerts   AlertSettings
	System   SystemSettings
	Dataset  DatasetSettings
}

// LearnerSettings are the online classifier hyperparameters.
type LearnerSettings struct {
	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	MinWindowSize  int
	MaxWindowSize  int
	UpdateStrategy string
	DetectDrift    bool
	DriftDelta     float64
}

// BoostConfig maps the learner settings onto the classifier's configuration.
func (l LearnerSettings) BoostConfig() boost.Config {
	return boost.Config{
		NEstimators:    l.NEstimators,
		LearningRate:   l.LearningRate,
		MaxDepth:       l.MaxDepth,
		MinWindowSize:  l.MinWindowSize,
		MaxWindowSize:  l.MaxWindowSize,
		DetectDrift:    l.DetectDrift,
		UpdateStrategy: l.UpdateStrategy,
	}
}

// SensorSettings describe the upstream flow sensor feed.
type SensorSettings struct {
	URL    string
	Key    string
	Secret string
	Ping   time.Duration
}

// ServerSettings describe the local HTTP surfaces.
type ServerSettings struct {
	ListenAddr    string
	MetricsPort   int
	DashboardPort int
}

// FeatureSettings size the behavioral feature windows.
type FeatureSettings struct {
	RateWindow time.Duration
	PortSize   int
	FlagSize   int
	IdleTTL    time.Duration
}

// AlertSettings govern verdict-to-alert promotion.
type AlertSettings struct {
	Cooldown time.Duration
	TTL      time.Duration
}

// SystemSettings cover storage and model persistence.
type SystemSettings struct {
	DataPath          string
	ModelDir          string
	SnapshotInterval  time.Duration
	SnapshotRetention int
}

// DatasetSettings configure the labeled-dataset fetcher used for offline
// evaluation.
type DatasetSettings struct {
	URL      string
	CacheDir string
	Timeout  time.Duration
}

// ConfigFile is the YAML layout. Every field can be overridden by its
// environment variable.
type ConfigFile struct {
	Learner struct {
		NEstimators    int     `yaml:"nEstimators"`
		LearningRate   float64 `yaml:"learningRate"`
		MaxDepth       int     `yaml:"maxDepth"`
		MinWindowSize  int     `yaml:"minWindowSize"`
		MaxWindowSize  int     `yaml:"maxWindowSize"`
		UpdateStrategy string  `yaml:"updateStrategy"`
		DetectDrift    bool    `yaml:"detectDrift"`
		DriftDelta     float64 `yaml:"driftDelta"`
	} `yaml:"learner"`

	Sensor struct {
		URL          string `yaml:"url"`
		Key          string `yaml:"key"`
		Secret       string `yaml:"secret"`
		PingInterval string `yaml:"pingInterval"`
	} `yaml:"sensor"`

	Server struct {
		ListenAddr    string `yaml:"listenAddr"`
		MetricsPort   int    `yaml:"metricsPort"`
		DashboardPort int    `yaml:"dashboardPort"`
	} `yaml:"server"`

	Features struct {
		RateWindow string `yaml:"rateWindow"`
		PortSize   int    `yaml:"portSize"`
		FlagSize   int    `yaml:"flagSize"`
		IdleTTL    string `yaml:"idleTTL"`
	} `yaml:"features"`

	Alerts struct {
		Cooldown string `yaml:"cooldown"`
		TTL      string `yaml:"ttl"`
	} `yaml:"alerts"`

	System struct {
		DataPath          string `yaml:"dataPath"`
		ModelDir          string `yaml:"modelDir"`
		SnapshotInterval  string `yaml:"snapshotInterval"`
		SnapshotRetention int    `yaml:"snapshotRetention"`
	} `yaml:"system"`

	Dataset struct {
		URL      string `yaml:"url"`
		CacheDir string `yaml:"cacheDir"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"dataset"`
}

// Load reads CONFIG_FILE when set, otherwise builds settings purely from
// environment variables. Environment values win over file values either way.
func Load() (Settings, error) {
	var file ConfigFile
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	s := Settings{
		Learner: LearnerSettings{
			NEstimators:    intSetting(common.EnvNEstimators, file.Learner.NEstimators, common.DefaultNEstimators),
			LearningRate:   floatSetting(common.EnvLearningRate, file.Learner.LearningRate, common.DefaultLearningRate),
			MaxDepth:       intSetting(common.EnvMaxDepth, file.Learner.MaxDepth, common.DefaultMaxDepth),
			MinWindowSize:  intSetting(common.EnvMinWindowSize, file.Learner.MinWindowSize, common.DefaultMinWindowSize),
			MaxWindowSize:  intSetting(common.EnvMaxWindowSize, file.Learner.MaxWindowSize, common.DefaultMaxWindowSize),
			UpdateStrategy: stringSetting(common.EnvUpdateStrategy, file.Learner.UpdateStrategy, common.DefaultUpdateStrategy),
			DetectDrift:    boolSetting(common.EnvDetectDrift, file.Learner.DetectDrift, true),
			DriftDelta:     floatSetting("DRIFT_DELTA", file.Learner.DriftDelta, 0.002),
		},
		Sensor: SensorSettings{
			URL:    stringSetting(common.EnvSensorURL, file.Sensor.URL, common.DefaultSensorURL),
			Key:    stringSetting(common.EnvSensorAPIKey, file.Sensor.Key, ""),
			Secret: stringSetting(common.EnvSensorSecretKey, file.Sensor.Secret, ""),
			Ping:   durationSetting(common.EnvPingInterval, file.Sensor.PingInterval, 15*time.Second),
		},
		Server: ServerSettings{
			ListenAddr:    stringSetting(common.EnvListenAddr, file.Server.ListenAddr, common.DefaultListenAddr),
			MetricsPort:   intSetting(common.EnvMetricsPort, file.Server.MetricsPort, common.DefaultMetricsPort),
			DashboardPort: intSetting(common.EnvDashboardPort, file.Server.DashboardPort, common.DefaultDashboardPort),
		},
		Features: FeatureSettings{
			RateWindow: durationSetting(common.EnvRateWindow, file.Features.RateWindow, 10*time.Second),
			PortSize:   intSetting("PORT_WINDOW_SIZE", file.Features.PortSize, 64),
			FlagSize:   intSetting("FLAG_WINDOW_SIZE", file.Features.FlagSize, 64),
			IdleTTL:    durationSetting("SOURCE_IDLE_TTL", file.Features.IdleTTL, 10*time.Minute),
		},
		Alerts: AlertSettings{
			Cooldown: durationSetting(common.EnvAlertCooldown, file.Alerts.Cooldown, time.Minute),
			TTL:      durationSetting("ALERT_TTL", file.Alerts.TTL, time.Hour),
		},
		System: SystemSettings{
			DataPath:          stringSetting(common.EnvDataPath, file.System.DataPath, ""),
			ModelDir:          stringSetting(common.EnvModelDir, file.System.ModelDir, common.DefaultModelDir),
			SnapshotInterval:  durationSetting(common.EnvSnapshotInterval, file.System.SnapshotInterval, 10*time.Minute),
			SnapshotRetention: intSetting(common.EnvSnapshotRetention, file.System.SnapshotRetention, common.DefaultSnapshotRetention),
		},
		Dataset: DatasetSettings{
			URL:      stringSetting(common.EnvDatasetURL, file.Dataset.URL, ""),
			CacheDir: stringSetting(common.EnvDatasetCacheDir, file.Dataset.CacheDir, "datasets"),
			Timeout:  durationSetting(common.EnvRESTTimeout, file.Dataset.Timeout, 30*time.Second),
		},
	}

	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func stringSetting(key, fileValue, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}

func intSetting(key string, fileValue, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return def
}

func floatSetting(key string, fileValue, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return def
}

func boolSetting(key string, fileValue, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if fileValue {
		return true
	}
	return def
}

func durationSetting(key, fileValue string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if fileValue != "" {
		if d, err := time.ParseDuration(fileValue); err == nil {
			return d
		}
	}
	return def
}

// validateSettings range-checks every knob. Strategy validation is delegated
// to the learner package so the accepted set lives in one place.
func validateSettings(s *Settings) error {
	if _, err := boost.ParseStrategy(s.Learner.UpdateStrategy); err != nil {
		return err
	}
	if s.Learner.NEstimators < common.MinEstimators || s.Learner.NEstimators > common.MaxEstimators {
		return fmt.Errorf("nEstimators must be between %d and %d, got %d",
			common.MinEstimators, common.MaxEstimators, s.Learner.NEstimators)
	}
	if s.Learner.LearningRate <= 0 || s.Learner.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", s.Learner.LearningRate)
	}
	if s.Learner.MaxDepth < common.MinTreeDepth || s.Learner.MaxDepth > common.MaxTreeDepth {
		return fmt.Errorf("max depth must be between %d and %d, got %d",
			common.MinTreeDepth, common.MaxTreeDepth, s.Learner.MaxDepth)
	}
	if s.Learner.MaxWindowSize < common.MinWindowFloor || s.Learner.MaxWindowSize > common.MaxWindowCeiling {
		return fmt.Errorf("max window size must be between %d and %d, got %d",
			common.MinWindowFloor, common.MaxWindowCeiling, s.Learner.MaxWindowSize)
	}
	if s.Learner.MinWindowSize > s.Learner.MaxWindowSize {
		return fmt.Errorf("min window size %d exceeds max window size %d",
			s.Learner.MinWindowSize, s.Learner.MaxWindowSize)
	}
	if s.Learner.DriftDelta <= 0 || s.Learner.DriftDelta >= 1 {
		return fmt.Errorf("drift delta must be in (0, 1), got %f", s.Learner.DriftDelta)
	}

	if s.Sensor.URL == "" {
		return errors.New(common.ErrMsgSensorURLRequired)
	}
	if (s.Sensor.Key == "") != (s.Sensor.Secret == "") {
		return errors.New(common.ErrMsgSensorKeyRequired)
	}
	if s.Sensor.Ping < time.Second || s.Sensor.Ping > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", s.Sensor.Ping)
	}

	if s.Server.ListenAddr == "" {
		return errors.New(common.ErrMsgListenRequired)
	}
	if s.Server.MetricsPort < common.MinMetricsPort || s.Server.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d",
			common.MinMetricsPort, common.MaxMetricsPort, s.Server.MetricsPort)
	}
	if s.Server.DashboardPort < common.MinMetricsPort || s.Server.DashboardPort > common.MaxMetricsPort {
		return fmt.Errorf("dashboard port must be between %d and %d, got %d",
			common.MinMetricsPort, common.MaxMetricsPort, s.Server.DashboardPort)
	}

	if s.Features.RateWindow < time.Second || s.Features.RateWindow > time.Hour {
		return fmt.Errorf("rate window must be between 1s and 1h, got %v", s.Features.RateWindow)
	}
	if s.Features.PortSize <= 0 || s.Features.PortSize > 4096 {
		return fmt.Errorf("port window size must be between 1 and 4096, got %d", s.Features.PortSize)
	}
	if s.Features.FlagSize <= 0 || s.Features.FlagSize > 4096 {
		return fmt.Errorf("flag window size must be between 1 and 4096, got %d", s.Features.FlagSize)
	}

	if s.Alerts.Cooldown < 0 || s.Alerts.TTL <= 0 {
		return fmt.Errorf("alert cooldown must be >= 0 and TTL > 0, got %v and %v",
			s.Alerts.Cooldown, s.Alerts.TTL)
	}

	if s.System.SnapshotRetention < 1 {
		return fmt.Errorf("snapshot retention must be at least 1, got %d", s.System.SnapshotRetention)
	}
	return nil
}
