package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vansante/go-sspak/archive"
)

func newBundleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bundle <sspak file> <executable>",
		Short: "Write a copy of this executable with the pak appended to it",
		Long: "Write a copy of this executable with the pak appended to it. The copy can load the pak " +
			"into a site without a separate pak file, by using @self as the pak.",
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			err := archive.Bundle(args[0], "", args[1])
			if err != nil {
				return err
			}
			a.logger.Info("Bundled pak", "pak", args[0], "executable", args[1])
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "info <sspak file>",
		Short: "List the entries of a pak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pak := archive.Open(args[0])
			pak.SetBytesPerSecond(a.conf.Exec.BytesPerSecond)
			err := pak.RequireExists()
			if err != nil {
				return err
			}
			entries, err := pak.Entries()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ENTRY\tSIZE\tMODIFIED\tCHECKSUM")
			for _, e := range entries {
				checksum := e.Checksum
				if verify {
					ok, err := pak.Verify(e.Name)
					switch {
					case err != nil:
						return fmt.Errorf("error verifying %s: %w", e.Name, err)
					case !ok:
						checksum += " (MISMATCH)"
					default:
						checksum += " (ok)"
					}
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Name, humanize.IBytes(uint64(e.Size)), humanize.Time(e.ModTime), checksum,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the checksum of every entry")
	return cmd
}
