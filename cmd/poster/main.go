package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikequentel/extractposter/internal/extract"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/logging"
	"github.com/mikequentel/extractposter/internal/publish"
	"github.com/mikequentel/extractposter/internal/runner"
)

const (
	defaultFolder = "./images"
	defaultConfig = "./config.yml"
)

type options struct {
	runner.Options

	seed       uint64
	exts       []string
	skipHidden bool
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(run).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(runFn func(ctx context.Context, out io.Writer, o options) error) *cobra.Command {
	var o options
	on := map[string]*bool{}
	off := map[string]*bool{}

	cmd := &cobra.Command{
		Use:   "poster [FOLDER]",
		Short: "Post a random image extract to Bluesky, Mastodon and Twitter",
		Long: `poster picks one entry of FOLDER at random. A file is posted alone, a
sub-folder is posted as one post holding all of its files in name order.
Every service that is enabled on the command line and configured in the
configuration file receives the same extract, with empty post text.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Root = defaultFolder
			if len(args) == 1 {
				o.Root = args[0]
			}
			if err := requireDir(o.Root); err != nil {
				return err
			}
			if err := requireFile(o.ConfigPath); err != nil {
				return err
			}
			o.Enabled = resolveSwitches(cmd, on, off)
			return runFn(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.ConfigPath, "config", "c", defaultConfig, "Configuration file (.yml, .yaml or .toml)")
	for _, svc := range runner.Services {
		on[svc] = f.Bool(svc, true, "Post to "+svc+" when configured")
		off[svc] = f.Bool("no-"+svc, false, "Do not post to "+svc)
	}
	f.BoolVarP(&o.DryRun, "dry-run", "n", false, "Select and resolve targets, send nothing")
	f.Uint64Var(&o.seed, "seed", 0, "Random seed for the selection (0 = random)")
	f.StringSliceVar(&o.exts, "ext", nil, "Only consider files with these extensions, e.g. .jpg,.png")
	f.BoolVar(&o.skipHidden, "skip-hidden", false, "Ignore dot-files and dot-folders")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level: trace | debug | info | warn | error")
	f.StringVar(&o.logFormat, "log-format", logging.FormatAuto, "Log format: auto | console | json")

	return cmd
}

// resolveSwitches folds each --x/--no-x pair into one switch. --no-x wins when
// both are given.
func resolveSwitches(cmd *cobra.Command, on, off map[string]*bool) map[string]bool {
	out := make(map[string]bool, len(on))
	for svc, v := range on {
		out[svc] = *v
		if cmd.Flags().Changed("no-"+svc) && *off[svc] {
			out[svc] = false
		}
	}
	return out
}

func requireDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fault.New(fault.ErrFilesystem, "media folder", err)
	}
	if !fi.IsDir() {
		return fault.Newf(fault.ErrFilesystem, "media folder", "%s is not a directory", path)
	}
	return nil
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fault.New(fault.ErrFilesystem, "configuration file", err)
	}
	if fi.IsDir() {
		return fault.Newf(fault.ErrFilesystem, "configuration file", "%s is a directory, not a file", path)
	}
	return nil
}

func run(ctx context.Context, out io.Writer, o options) error {
	logger, err := logging.New(os.Stderr, o.logLevel, o.logFormat)
	if err != nil {
		return err
	}

	var src rand.Source
	if o.seed != 0 {
		src = rand.NewPCG(o.seed, o.seed)
	}
	var sopts []extract.Option
	if len(o.exts) > 0 {
		sopts = append(sopts, extract.WithExtensions(o.exts...))
	}
	if o.skipHidden {
		sopts = append(sopts, extract.WithSkipHidden())
	}

	r := runner.New(o.Options, extract.NewSelector(src, sopts...), publish.NewHTTPClient(), logger)
	rep, err := r.Run(ctx)
	if rep != nil {
		for _, h := range rep.Handles {
			fmt.Fprintf(out, "%s\t%s\n", h.Service, h)
		}
		if o.DryRun {
			fmt.Fprintf(out, "DRY RUN: would post %s to %v\n", rep.Extract, rep.Targets)
		}
	}
	return err
}
