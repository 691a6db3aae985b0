// Package config loads the conductor's YAML configuration, validates
// it, and watches the file for changes to the subset of knobs that are
// safe to hot-reload. Grounded on boskos/cmd/boskos/boskos.go's
// viper.New / SetConfigFile / WatchConfig / OnConfigChange pattern.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/train-conductor/conductor/pkg/orchestrator"
)

const defaultReconcileIntervalSeconds = 30

// Config is the validated, conductor-native view of trainer_config.
type Config struct {
	TuningImage      string `validate:"required"`
	TargetNamespace  string `validate:"required"`
	ImagePullSecrets string

	DefaultGPUs         int64
	JobTimeLimitSeconds int64
	ReconcileInterval   time.Duration

	Volumes []orchestrator.VolumeMount
}

// raw mirrors the YAML document shape; mapstructure tags match the
// recognised keys verbatim.
type raw struct {
	TrainerConfig struct {
		TuningImage      string `mapstructure:"tuning_image" validate:"required"`
		TargetNamespace  string `mapstructure:"target_namespace" validate:"required"`
		ImagePullSecrets string `mapstructure:"image_pull_secrets"`
		DefaultResources struct {
			GPU int64 `mapstructure:"gpu"`
		} `mapstructure:"default_resources"`
		JobTimeLimit      int64 `mapstructure:"job_time_limit"`
		ReconcileInterval int64 `mapstructure:"reconcile_interval"`
	} `mapstructure:"trainer_config"`
	TrainingVolumes []rawVolume `mapstructure:"training_volumes"`
}

type rawVolume struct {
	Name      string `mapstructure:"name" validate:"required"`
	PVCName   string `mapstructure:"pvc_name" validate:"required"`
	MountPath string `mapstructure:"mount_path" validate:"required"`
}

func (r raw) toConfig() Config {
	interval := time.Duration(r.TrainerConfig.ReconcileInterval) * time.Second
	if r.TrainerConfig.ReconcileInterval <= 0 {
		interval = defaultReconcileIntervalSeconds * time.Second
	}
	volumes := make([]orchestrator.VolumeMount, len(r.TrainingVolumes))
	for i, v := range r.TrainingVolumes {
		volumes[i] = orchestrator.VolumeMount{Name: v.Name, PVCName: v.PVCName, MountPath: v.MountPath}
	}
	return Config{
		TuningImage:         r.TrainerConfig.TuningImage,
		TargetNamespace:     r.TrainerConfig.TargetNamespace,
		ImagePullSecrets:    r.TrainerConfig.ImagePullSecrets,
		DefaultGPUs:         r.TrainerConfig.DefaultResources.GPU,
		JobTimeLimitSeconds: r.TrainerConfig.JobTimeLimit,
		ReconcileInterval:   interval,
		Volumes:             volumes,
	}
}

// Loader owns the viper instance, the current validated Config, and
// the file watch that refreshes the hot-reloadable subset of it.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate

	mu      sync.RWMutex
	current Config

	log *logrus.Entry
}

// Load reads path, validates it, and starts watching it for changes.
// Startup failures here are fatal to the process (spec.md §6) — the
// caller is expected to exit on a non-nil error.
func Load(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	l := &Loader{
		v:        v,
		validate: validator.New(),
		log:      logrus.WithField("component", "config"),
	}

	cfg, err := l.parse()
	if err != nil {
		return nil, err
	}
	l.current = cfg

	v.OnConfigChange(func(in fsnotify.Event) {
		l.reload()
	})
	v.WatchConfig()

	return l, nil
}

func (l *Loader) parse() (Config, error) {
	var r raw
	if err := l.v.Unmarshal(&r); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg := r.toConfig()
	if err := l.validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	for i, vol := range cfg.Volumes {
		if err := l.validate.Struct(vol); err != nil {
			return Config{}, fmt.Errorf("config: validate training_volumes[%d]: %w", i, err)
		}
	}
	return cfg, nil
}

// reload re-parses the file and, if it validates, refreshes only
// reconcile_interval, job_time_limit, and the default GPU count in the
// Loader's snapshot. The image, namespace, pull secret, and volume set
// stay pinned to the values observed at startup — changing them live
// would leave in-flight jobs materialised against a config that no
// longer matches what CreateJob would build for a fresh launch.
// Refreshed values are seen only by later calls to Current();
// cmd/conductor calls it once at startup.
func (l *Loader) reload() {
	cfg, err := l.parse()
	if err != nil {
		l.log.WithError(err).Error("config reload failed, keeping previous values")
		return
	}
	l.mu.Lock()
	l.current.ReconcileInterval = cfg.ReconcileInterval
	l.current.JobTimeLimitSeconds = cfg.JobTimeLimitSeconds
	l.current.DefaultGPUs = cfg.DefaultGPUs
	l.mu.Unlock()
	l.log.Info("config reloaded")
}

// Current returns a snapshot of the live configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}
