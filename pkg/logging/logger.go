package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures NewLogger.
type Options struct {
	// Level is a logrus level name. Invalid or empty names mean info.
	Level string
	// Format is "color", "json" or empty for color on a terminal and json otherwise
	Format string
	// File, when set, also writes JSON lines to a rotating file
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds the process logger. Console output goes to stderr.
func NewLogger(opts Options) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	switch strings.ToLower(opts.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "color":
		log.SetFormatter(NewColoredJSONFormatter())
	default:
		if isatty.IsTerminal(os.Stderr.Fd()) {
			log.SetFormatter(NewColoredJSONFormatter())
		} else {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
	}

	if level, err := logrus.ParseLevel(opts.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		if opts.Level != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": opts.Level,
				"default_level":   "INFO",
			}).Warn("Invalid log level specified, defaulting to INFO")
		}
	}

	if opts.File != "" {
		log.AddHook(newFileHook(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}))
	}
	return log
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// fileHook writes every entry as JSON to w regardless of the console formatter.
type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func newFileHook(w io.Writer) *fileHook {
	return &fileHook{w: w, formatter: &logrus.JSONFormatter{}}
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
