package main

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mikequentel/extractposter/internal/extract"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
)

// Flags
var (
	outFile    string
	exts       []string
	skipHidden bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [FOLDER]",
		Short: "List every extract a media folder offers, as CSV",
		Long: `extract writes one CSV row per candidate extract of FOLDER
(entry,files,size,paths), in the order poster draws from. Use it to check
what a media folder will post before scheduling poster.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "./images"
			if len(args) == 1 {
				root = args[0]
			}
			var opts []extract.Option
			if len(exts) > 0 {
				opts = append(opts, extract.WithExtensions(exts...))
			}
			if skipHidden {
				opts = append(opts, extract.WithSkipHidden())
			}
			all, err := extract.NewSelector(nil, opts...).All(root)
			if err != nil {
				return err
			}

			if outFile == "" || outFile == "-" {
				return writeInventory(cmd.OutOrStdout(), root, all)
			}
			return writeInventoryFile(outFile, root, all)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "-", "Output CSV file (- for stdout)")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "Only consider files with these extensions, e.g. .jpg,.png")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", false, "Ignore dot-files and dot-folders")
	return cmd
}

func writeInventory(w io.Writer, root string, all []model.Extract) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"entry", "files", "size", "paths"}); err != nil {
		return err
	}
	for _, ex := range all {
		paths := ex.Paths()
		var size uint64
		for _, p := range paths {
			if fi, err := os.Stat(p); err == nil {
				size += uint64(fi.Size())
			}
		}
		if err := cw.Write([]string{
			entryOf(root, paths),
			strconv.Itoa(len(paths)),
			humanize.Bytes(size),
			strings.Join(paths, ";"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeInventoryFile writes the inventory to path. The file is closed before
// returning so a failed flush is reported.
func writeInventoryFile(path, root string, all []model.Extract) error {
	f, err := os.Create(path)
	if err != nil {
		return fault.New(fault.ErrFilesystem, "create "+path, err)
	}
	if err := writeInventory(f, root, all); err != nil {
		f.Close()
		return fault.New(fault.ErrFilesystem, "write "+path, err)
	}
	if err := f.Close(); err != nil {
		return fault.New(fault.ErrFilesystem, "close "+path, err)
	}
	return nil
}

// entryOf names the root entry an extract came from. Empty folders have no
// paths and are reported as "-".
func entryOf(root string, paths []string) string {
	if len(paths) == 0 {
		return "-"
	}
	rel, err := filepath.Rel(root, paths[0])
	if err != nil {
		return paths[0]
	}
	return strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
}
