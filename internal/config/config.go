package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel          = "info"
	DefaultInterval          = 2 * time.Second
	DefaultLogQueueCapacity  = 16
	DefaultSampleCapacity    = 8
	DefaultAnomalyCapacity   = 32
	DefaultAnomalyTimeout    = 5 * time.Second
	DefaultZScoreThreshold   = 3.0
	DefaultZScoreWindow      = 30
	DefaultNotifyRate        = 10.0
	DefaultNotifyBurst       = 5
	DefaultJournalBatchSize  = 16
	DefaultJournalFlushEvery = time.Second

	defaultEnvPrefix  = "SENSORMON"
	defaultConfigName = "sensormon"
)

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	GeneratorInterval time.Duration `mapstructure:"generator_interval"`
	CollectorInterval time.Duration `mapstructure:"collector_interval"`
	GeneratorReport   string        `mapstructure:"generator_report"`
	Seed              uint64        `mapstructure:"seed"`

	LogQueueCapacity     int           `mapstructure:"log_queue_capacity"`
	LogQueuePolicy       string        `mapstructure:"log_queue_policy"`
	SampleQueueCapacity  int           `mapstructure:"sample_queue_capacity"`
	AnomalyQueueCapacity int           `mapstructure:"anomaly_queue_capacity"`
	AnomalyTimeout       time.Duration `mapstructure:"anomaly_timeout"`

	DetectorMode    string  `mapstructure:"detector_mode"`
	Classifier      string  `mapstructure:"classifier"`
	ZScoreThreshold float64 `mapstructure:"zscore_threshold"`
	ZScoreWindow    int     `mapstructure:"zscore_window"`

	NotifyRate  float64 `mapstructure:"notify_rate"`
	NotifyBurst int     `mapstructure:"notify_burst"`

	Journal              bool          `mapstructure:"journal"`
	JournalBatchSize     int           `mapstructure:"journal_batch_size"`
	JournalFlushInterval time.Duration `mapstructure:"journal_flush_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("generator_interval", DefaultInterval)
	v.SetDefault("collector_interval", DefaultInterval)
	v.SetDefault("generator_report", ReportSensor)
	v.SetDefault("seed", 0)
	v.SetDefault("log_queue_capacity", DefaultLogQueueCapacity)
	v.SetDefault("log_queue_policy", PolicyDropNewest)
	v.SetDefault("sample_queue_capacity", DefaultSampleCapacity)
	v.SetDefault("anomaly_queue_capacity", DefaultAnomalyCapacity)
	v.SetDefault("anomaly_timeout", DefaultAnomalyTimeout)
	v.SetDefault("detector_mode", DetectorRange)
	v.SetDefault("classifier", ClassifierNone)
	v.SetDefault("zscore_threshold", DefaultZScoreThreshold)
	v.SetDefault("zscore_window", DefaultZScoreWindow)
	v.SetDefault("notify_rate", DefaultNotifyRate)
	v.SetDefault("notify_burst", DefaultNotifyBurst)
	v.SetDefault("journal", true)
	v.SetDefault("journal_batch_size", DefaultJournalBatchSize)
	v.SetDefault("journal_flush_interval", DefaultJournalFlushEvery)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("sensormon", pflag.ContinueOnError)
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Duration("generator-interval", DefaultInterval, "Interval between simulated sensor writes")
	flags.Duration("collector-interval", DefaultInterval, "Interval between sample collections")
	flags.String("generator-report", ReportSensor, "Generator diagnostics: one line per sensor or one summary per machine")
	flags.Uint64("seed", 0, "Seed for the value generator (0 uses the current time)")
	flags.Int("log-queue-capacity", DefaultLogQueueCapacity, "Capacity of the console log queue")
	flags.String("log-queue-policy", PolicyDropNewest, "Overflow policy of the console log queue")
	flags.String("detector-mode", DetectorRange, "Anomaly decision: range, classifier or both")
	flags.String("classifier", ClassifierNone, "External classifier to consult (zscore)")
	flags.Bool("journal", true, "Keep an in-memory anomaly journal")
	flags.String("config", "", "Path to configuration file")

	return flags
}

// Load reads defaults, the optional TOML file, SENSORMON_* environment
// variables and command-line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: defaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := newFlagSet()
	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	// Flags use dashes, keys use underscores
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, flags, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if p, _ := flags.GetString("config"); p != "" {
		path = p
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath("/etc/sensormon")
		v.AddConfigPath("$HOME/.config/sensormon")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.GeneratorInterval <= 0 || c.CollectorInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Generator time.Duration
			Collector time.Duration
		}{c.GeneratorInterval, c.CollectorInterval})
	}
	if c.AnomalyTimeout <= 0 || c.JournalFlushInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "timeouts must be positive")
	}
	if c.LogQueueCapacity <= 0 || c.SampleQueueCapacity <= 0 || c.AnomalyQueueCapacity <= 0 {
		return errFactory.New(errors.ErrInvalidCapacity)
	}

	switch c.LogQueuePolicy {
	case PolicyDropNewest, PolicyDropOldest:
	default:
		return errFactory.WithData(errors.ErrInvalidPolicy, c.LogQueuePolicy)
	}

	switch c.GeneratorReport {
	case ReportSensor, ReportSummary:
	default:
		return errFactory.WithData(errors.ErrInvalidReportMode, c.GeneratorReport)
	}

	switch c.DetectorMode {
	case DetectorRange:
	case DetectorClassifier, DetectorBoth:
		if c.Classifier == ClassifierNone {
			return errFactory.WithData(errors.ErrInvalidDetectorMode, "mode "+c.DetectorMode+" requires a classifier")
		}
	default:
		return errFactory.WithData(errors.ErrInvalidDetectorMode, c.DetectorMode)
	}

	switch c.Classifier {
	case ClassifierNone, ClassifierZScore:
	default:
		return errFactory.WithData(errors.ErrInvalidClassifier, c.Classifier)
	}

	if c.NotifyRate <= 0 || c.NotifyBurst <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "notify rate and burst must be positive")
	}

	return nil
}
