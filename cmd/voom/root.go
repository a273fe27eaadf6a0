package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/albertocavalcante/go-voom"
	"github.com/albertocavalcante/go-voom/boltcache"
	"github.com/albertocavalcante/go-voom/vcs"
)

// app holds what every subcommand shares: configuration, output streams and
// resources opened on demand.
type app struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
	cfgFile string
	verbose bool
	output  string

	cache   *boltcache.Cache
	closers []func() error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      viper.New(),
		out:    stdout,
		errOut: stderr,
		logger: slog.New(slog.DiscardHandler),
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "voom",
		Short: "Derive dependency versions from git history",
		Long: `voom tags every commit that changes a build descriptor, resolves the
newest commit of a dependency at a given version from those tags, and writes
the result back into dependent descriptors as a qualified version such as
1.2.0-20240102_030405-gabc1234.

Repositories are the git checkouts directly under repos_dir. Configuration is
read from .voom.yaml in the working directory or $HOME/.voom/config.yaml, and
from VOOM_* environment variables.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .voom.yaml, then $HOME/.voom/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text | json | yaml")
	flags.String("repos-dir", "", "directory holding the repository checkouts")
	flags.Int("concurrency", 0, "repositories processed in parallel")
	_ = a.v.BindPFlag("repos_dir", flags.Lookup("repos-dir"))
	_ = a.v.BindPFlag("concurrency", flags.Lookup("concurrency"))

	root.AddCommand(
		newVersionCmd(a),
		newParseVersionCmd(a),
		newResolveCmd(a),
		newFreshenCmd(a),
		newBuildDepsCmd(a),
		newRetagCmd(a),
		newBoxCmd(a),
		newDepsCmd(a),
	)
	return root
}

// setup loads configuration and sets up logging.
func (a *app) setup() error {
	v := a.v
	v.SetDefault("repos_dir", ".")
	v.SetDefault("box_dir", "box")
	v.SetDefault("concurrency", voom.DefaultConcurrency)
	v.SetDefault("git.binary", "git")
	v.SetDefault("git.timeout", vcs.DefaultTimeout)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("cache_path", filepath.Join(home, ".voom", "cache.db"))
		v.SetDefault("m2_dir", filepath.Join(home, ".m2", "repository"))
	}

	v.SetEnvPrefix("VOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName(".voom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".voom"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// A zero flag value means "not given"; fall back to config.
	if v.GetInt("concurrency") < 1 {
		v.Set("concurrency", voom.DefaultConcurrency)
	}

	logger, err := newLogger(a.errOut, v.GetString("log.level"), v.GetString("log.format"), a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	switch a.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	return nil
}

func newLogger(w io.Writer, level, format string, verbose bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log.format: unknown format %q", format)
}

func (a *app) runner() *vcs.Runner {
	return vcs.NewRunner(
		vcs.WithBinary(a.v.GetString("git.binary")),
		vcs.WithTimeout(a.v.GetDuration("git.timeout")),
		vcs.WithLogger(a.logger.With("component", "git")),
	)
}

// options returns the library options shared by every command. The manifest
// cache is opened on first use; an unusable cache only costs speed.
func (a *app) options(extra ...voom.Option) []voom.Option {
	opts := []voom.Option{
		voom.WithLogger(a.logger),
		voom.WithConcurrency(a.v.GetInt("concurrency")),
	}
	if path := a.v.GetString("cache_path"); path != "" {
		if a.cache == nil {
			c, err := boltcache.Open(path)
			if err != nil {
				a.logger.Warn("manifest cache disabled", "path", path, "error", err)
				a.v.Set("cache_path", "")
			} else {
				a.cache = c
				a.closers = append(a.closers, c.Close)
			}
		}
		if a.cache != nil {
			opts = append(opts, voom.WithCache(a.cache))
		}
	}
	return append(opts, extra...)
}

func (a *app) reposDir() string {
	return a.v.GetString("repos_dir")
}

func (a *app) repositories() ([]voom.Repository, error) {
	repos, err := voom.OpenRepositories(a.reposDir(), a.runner())
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no git repositories under %s", a.reposDir())
	}
	return repos, nil
}

func (a *app) resolver(extra ...voom.Option) (*voom.Resolver, error) {
	repos, err := a.repositories()
	if err != nil {
		return nil, err
	}
	return voom.NewResolver(repos, a.options(extra...)...)
}
