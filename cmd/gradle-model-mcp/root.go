package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DeusData/gradle-model-mcp/internal/store"
	"github.com/DeusData/gradle-model-mcp/internal/tools"
)

// app carries the state shared by every command.
type app struct {
	fs      afero.Fs
	v       *viper.Viper
	cfgFile string
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs, v: viper.New()}

	root := &cobra.Command{
		Use:   "gradle-model-mcp",
		Short: "Read and edit Gradle build files through a typed model",
		Long: `gradle-model-mcp parses Gradle settings, build scripts (Groovy and Kotlin DSL)
and gradle.properties into a typed, editable model. Run without a subcommand
to serve the model over MCP on stdio.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			slog.SetDefault(newLogger(a.v.GetString("log_level"), cmd.ErrOrStderr()))
			slog.Debug("config.loaded", "file", a.v.ConfigFileUsed(), "cache_dir", a.v.GetString("cache_dir"))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.gradle-model-mcp.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("cache-dir", "", "directory of the index database (default ~/.cache/gradle-model-mcp)")
	pf.Int("max-contexts", 0, "parsed builds kept in memory by the server")
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("cache_dir", pf.Lookup("cache-dir"))
	_ = a.v.BindPFlag("max_contexts", pf.Lookup("max-contexts"))

	root.AddCommand(
		a.serveCmd(),
		a.indexCmd(),
		a.modulesCmd(),
		a.pluginsCmd(),
		a.applyPluginCmd(),
		a.dumpCmd(),
		a.installCmd(),
		a.uninstallCmd(),
	)
	return root
}

// initConfig reads the config file and GMM_* environment variables.
// A missing config file is not an error.
func (a *app) initConfig() error {
	a.v.SetEnvPrefix("GMM")
	a.v.AutomaticEnv()
	a.v.SetDefault("log_level", "info")
	a.v.SetDefault("cache_dir", "")
	a.v.SetDefault("max_contexts", tools.DefaultMaxContexts)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".gradle-model-mcp")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// openStore opens the index database in the configured cache directory.
func (a *app) openStore() (*store.Store, error) {
	dir := a.v.GetString("cache_dir")
	if dir == "" {
		d, err := store.DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return store.Open(filepath.Clean(dir))
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
