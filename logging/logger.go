package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/provenance/config"
	"github.com/grovetools/provenance/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Environment variables read when building loggers.
const (
	EnvLogLevel  = "PROV_LOG_LEVEL"
	EnvLogCaller = "PROV_LOG_CALLER"
	EnvDebug     = "PROV_DEBUG"
)

var (
	loggers       = make(map[string]*logrus.Entry)
	loggersMu     sync.Mutex
	levelOverride *logrus.Level
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := New(component, LoadConfig())
	if levelOverride != nil {
		entry.Logger.SetLevel(*levelOverride)
	}
	loggers[component] = entry
	return entry
}

// LoadConfig reads the logging section of the layered prov.yml for the
// current directory. Missing or broken configuration yields the zero Config.
func LoadConfig() Config {
	var logCfg Config
	cfg, err := config.LoadDefault()
	if err != nil {
		return logCfg
	}
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

// New builds an uncached logger for component from logCfg. Environment
// variables take precedence over the configuration.
func New(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv(EnvLogLevel); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv(EnvLogCaller) == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	logger.SetFormatter(formatterFor(logCfg.Format))

	var writers []io.Writer

	if logCfg.File.Enabled && logCfg.File.Path != "" {
		if w := openFileSink(logger, logCfg.File); w != nil {
			writers = append(writers, w)
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

func formatterFor(format FormatConfig) logrus.Formatter {
	switch format.Preset {
	case "json":
		return &logrus.JSONFormatter{}
	case "simple":
		return &TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}}
	default:
		return &TextFormatter{Config: format}
	}
}

// openFileSink opens the configured log file for appending. A file sink
// in json format is wrapped so the file gets JSON while other sinks keep
// their formatter.
func openFileSink(logger *logrus.Logger, sink FileSinkConfig) io.Writer {
	path, err := pathutil.Expand(sink.Path)
	if err != nil {
		logger.Warnf("Failed to expand log path %s: %v", sink.Path, err)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warnf("Failed to open log file %s: %v", path, err)
		return nil
	}
	if sink.Format == "json" {
		logger.AddHook(&fileHook{writer: file, formatter: &logrus.JSONFormatter{}})
		return nil
	}
	return file
}

// shouldLogToStderr implements the auto/always/never stderr modes. In auto
// mode logs reach stderr when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		isDebug := os.Getenv(EnvDebug) == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	}
}

// fileHook writes every entry to a separate writer with its own formatter.
type fileHook struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}

// SetLevel changes the level of every cached logger and of loggers
// created afterwards. Used by the CLI verbose flag.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	levelOverride = &level
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}
