package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
	Service      string `split_words:"true" default:"tablebot"`
	Caller       bool   `split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
	Service:      "tablebot",
	Caller:       true,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init replaces the global logger. LOG_LEVEL wins over LOG_DEBUG.
func Init(opts ...Config) {
	InitWriter(os.Stdout, opts...)
}

func InitWriter(w io.Writer, opts ...Config) {
	conf := safe(opts...)

	if conf.PrettyFormat {
		w = zerolog.ConsoleWriter{Out: w}
	}
	ctx := zerolog.New(w).With().Timestamp()
	if conf.Service != "" {
		ctx = ctx.Str("service", conf.Service)
	}
	if conf.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Stack().Logger().Level(levelOf(conf))
}

func levelOf(conf *Config) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level))); err == nil && conf.Level != "" {
		return lvl
	}
	if conf.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
