package main

import (
	"flag"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runSetupLogger(t *testing.T, level string) error {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", "", "")
	require.NoError(t, set.Set("log-level", level))

	return setupLogger(cli.NewContext(cli.NewApp(), set, nil))
}

func TestSetupLogger_ValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
		t.Run(level, func(t *testing.T) {
			assert.NoError(t, runSetupLogger(t, level))
		})
	}
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	err := runSetupLogger(t, "verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestSetupLogger_SetsDefault(t *testing.T) {
	require.NoError(t, runSetupLogger(t, "error"))
	assert.False(t, slog.Default().Enabled(nil, slog.LevelInfo))

	require.NoError(t, runSetupLogger(t, "debug"))
	assert.True(t, slog.Default().Enabled(nil, slog.LevelDebug))
}

func TestIngestCommand_InvalidMode(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())
	t.Setenv("INSTANCE_ID", "personal")
	t.Setenv("CHANNEL_TYPE", "calendar")
	t.Setenv("EMBEDDING_PROVIDER", "mock")

	app := &cli.App{
		Name: "caldex",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "incremental"},
					&cli.BoolFlag{Name: "force"},
					&cli.BoolFlag{Name: "stats"},
				},
			},
		},
	}

	err := app.Run([]string{"caldex", "ingest", "--mode", "sideways"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}
