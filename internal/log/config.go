package log

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level   string     `mapstructure:"level"`
	Pattern string     `mapstructure:"pattern"`
	Time    string     `mapstructure:"time"`
	File    FileConfig `mapstructure:"file"`
}

// FileConfig enables a rotating file appender next to stderr.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

const (
	DefaultPattern = "%time [%level] %field %msg\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)
