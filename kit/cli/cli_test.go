package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestBindOptions(t *testing.T) {
	var (
		addr    string
		port    int
		verbose bool
		timeout time.Duration
		tags    []string
		level   zapcore.Level
	)

	cmd := NewCommand(&Program{
		Name: "testd",
		Run:  func() error { return nil },
		Opts: []Opt{
			NewOpt(&addr, "addr", "localhost", "bind address"),
			NewOpt(&port, "port", 8080, "bind port"),
			NewOpt(&verbose, "verbose", true, "verbose output"),
			NewOpt(&timeout, "timeout", 30*time.Second, "request timeout"),
			NewOpt(&tags, "tags", []string{"a", "b"}, "tags"),
			NewOpt(&level, "log-level", zapcore.WarnLevel, "log level"),
		},
	})
	require.NotNil(t, cmd)

	require.Equal(t, "localhost", addr)
	require.Equal(t, 8080, port)
	require.True(t, verbose)
	require.Equal(t, 30*time.Second, timeout)
	require.Equal(t, []string{"a", "b"}, tags)
	require.Equal(t, zapcore.WarnLevel, level)
}

func TestBindOptions_FlagOverride(t *testing.T) {
	var port int

	cmd := NewCommand(&Program{
		Name: "testd",
		Run:  func() error { return nil },
		Opts: []Opt{
			NewOpt(&port, "listen-port", 8080, "bind port"),
		},
	})

	require.NoError(t, cmd.Flags().Set("listen-port", "9090"))
	p, err := cmd.Flags().GetInt("listen-port")
	require.NoError(t, err)
	require.Equal(t, 9090, p)
}

func TestLevelValue_Set(t *testing.T) {
	var level zapcore.Level
	v := newLevelValue(zapcore.InfoLevel, &level)

	require.NoError(t, v.Set("debug"))
	require.Equal(t, zapcore.DebugLevel, level)

	require.Error(t, v.Set("loud"))
}
