package config

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
	args       []string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "SENSORMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithArgs replaces os.Args[1:] as the source of command-line flags
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// Detector modes
const (
	DetectorRange      = "range"
	DetectorClassifier = "classifier"
	DetectorBoth       = "both"
)

// Generator report modes
const (
	ReportSensor  = "sensor"
	ReportSummary = "summary"
)

// Log queue overflow policies
const (
	PolicyDropNewest = "drop-newest"
	PolicyDropOldest = "drop-oldest"
)

// Known classifiers. An empty name disables external classification.
const (
	ClassifierNone   = ""
	ClassifierZScore = "zscore"
)
