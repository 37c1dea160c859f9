package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/config"
	"github.com/ossyrian/modarc/internal/filter"
	"github.com/ossyrian/modarc/internal/fsutil"
	"github.com/ossyrian/modarc/internal/logging"
)

// app carries the state shared by every subcommand of one command tree
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	names   archive.NameCodec
}

// newRootCmd builds the modarc command tree
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "modarc",
		Short: "Inspect, extract, modify and rebuild modular game archives",
		Long: `modarc works with legacy module archives: a header, a module table,
a file table, a modmap assigning file-table entries to module slots, and a
data region holding the payloads.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "path to config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	pf.String("name-encoding", "cp437", "code page of name fields (cp437, windows-1252, latin1)")
	pf.BoolP("yes", "y", false, "overwrite existing files without asking")

	rootCmd.AddCommand(
		a.listCmd(),
		a.extractCmd(),
		a.readCmd(),
		a.exportJSONCmd(),
		a.exportViewsCmd(),
		a.modifyCmd(),
		a.repackCmd(),
		a.buildCmd(),
	)

	return rootCmd
}

// setup reads in the config file and environment, binds the running
// command's flags and configures logging
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.initConfig(cmd)

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := a.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	a.cfg = &config.Config{}
	if err := a.v.Unmarshal(a.cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Setup(a.cfg.LogLevel, a.cfg.LogOutputDir); err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}

	names, err := archive.LookupNameCodec(a.cfg.NameEncoding)
	if err != nil {
		return err
	}
	a.names = names

	return nil
}

// initConfig reads in config file and environment variables if set
func (a *app) initConfig(cmd *cobra.Command) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "modarc"))
		}
		a.v.AddConfigPath("/etc/modarc")
		a.v.SetConfigName("config")
		a.v.SetConfigType("toml")
	}

	a.v.SetEnvPrefix("MODARC")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.v.ConfigFileUsed())
	}
}

func (a *app) archiveOptions() archive.Options {
	return archive.Options{
		Logger: slog.Default(),
		Names:  a.names,
		Strict: a.cfg.Strict,
	}
}

// readArchive loads and parses the archive at path. The file is read in one
// go and closed before parsing.
func (a *app) readArchive(path string) (*archive.Archive, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read archive: %w", err)
	}

	arc, err := archive.Read(data, a.archiveOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return arc, data, nil
}

func (a *app) filter() (*filter.Filter, error) {
	return filter.New(a.cfg.Include, a.cfg.Exclude)
}

// overwrite returns the overwrite policy for this run: --yes allows
// everything, otherwise the user is asked on the command's streams.
func (a *app) overwrite(cmd *cobra.Command) fsutil.OverwriteFunc {
	if a.cfg.Yes {
		return fsutil.Always
	}
	return confirmFunc(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// confirmFunc asks on out whether a path may be replaced and reads the
// answer from in. Anything but y or yes declines, as does end of input.
func confirmFunc(in io.Reader, out io.Writer) fsutil.OverwriteFunc {
	scanner := bufio.NewScanner(in)
	return func(path string) bool {
		fmt.Fprintf(out, "%s exists. Overwrite? [y/N] ", path)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// commit writes data to path atomically after the overwrite check
func (a *app) commit(cmd *cobra.Command, path string, data []byte) error {
	if err := fsutil.CheckOverwrite(path, a.overwrite(cmd)); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	slog.Info("wrote file", "path", path, "size", len(data))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
