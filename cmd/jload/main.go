package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/jload/classmgr"
	"github.com/dhamidi/jload/classpath"
	"github.com/dhamidi/jload/config"
	"github.com/dhamidi/jload/selector"
	"github.com/dhamidi/jload/statics"
)

type globalFlags struct {
	configDir     string
	verbosity     int
	logFile       string
	classpath     string
	rejectNatives bool
}

// env is the process-wide state every command shares: one statics table,
// one selector registry, one loader.
type env struct {
	cfg       *config.Config
	statics   *statics.Table
	selectors *selector.Registry
	decoder   *classmgr.Decoder
	path      classpath.Path
	loader    *classmgr.ClassLoader
}

func (r *env) Close() error {
	return r.path.Close()
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configDir != "" {
		cfg, err = config.Load(flags.configDir)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if flags.verbosity > 0 {
		cfg.Verbosity = flags.verbosity
	}
	if flags.logFile != "" {
		cfg.LogFile = flags.logFile
	}
	if flags.rejectNatives {
		cfg.RejectNatives = true
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	var path *string
	if cfg.LogFile != "" {
		path = &cfg.LogFile
	}
	commonlog.Configure(cfg.Verbosity, path)
}

func newEnv(flags *globalFlags) (*env, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg)

	entries := cfg.ClasspathEntries()
	if flags.classpath != "" {
		entries = splitList(flags.classpath)
	}
	path, err := classpath.Parse(entries)
	if err != nil {
		return nil, fmt.Errorf("open classpath: %w", err)
	}

	r := &env{
		cfg:       cfg,
		statics:   statics.NewTable(),
		selectors: selector.NewRegistry(),
		path:      path,
	}
	r.decoder = classmgr.NewDecoder(r.statics, r.selectors,
		classmgr.WithRejectNatives(cfg.RejectNatives),
		classmgr.WithAddressTypes(cfg.AddressTypes),
	)
	r.loader = classmgr.NewClassLoader(path, r.decoder)
	return r, nil
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "jload",
		Short:         "Decode, load and link JVM class files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configDir, "config", "", "directory containing jload.toml (default: search upwards)")
	pf.CountVarP(&flags.verbosity, "verbose", "v", "increase log verbosity")
	pf.StringVar(&flags.logFile, "log", "", "write logs to this file")
	pf.StringVar(&flags.classpath, "classpath", "", "class search path, overrides jload.toml")
	pf.BoolVar(&flags.rejectNatives, "reject-natives", false, "fail on native methods")

	rootCmd.AddCommand(newDecodeCmd(flags))
	rootCmd.AddCommand(newLoadCmd(flags))
	rootCmd.AddCommand(newResolveCmd(flags))
	rootCmd.AddCommand(newStaticsCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jload:", err)
		os.Exit(1)
	}
}
