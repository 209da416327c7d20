package main

import (
	"github.com/spf13/cobra"

	sspak "github.com/vansante/go-sspak"
)

func partFlags(cmd *cobra.Command, parts *sspak.Parts) {
	cmd.Flags().BoolVar(&parts.DB, "db", false, "Only the database")
	cmd.Flags().BoolVar(&parts.Assets, "assets", false, "Only the assets")
	cmd.Flags().BoolVar(&parts.GitRemote, "git-remote", false, "Only the git remote")
}

func newSaveCmd(a *app) *cobra.Command {
	var parts sspak.Parts
	cmd := &cobra.Command{
		Use:   "save <webroot> <sspak file>",
		Short: "Save a site into a new pak",
		Long:  "Save a site into a new pak. The webroot is a local path or [user@]host:path.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := a.target(args[0], a.fromSudo)
			if err != nil {
				return err
			}
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.Save(cmd.Context(), source, args[1], parts)
		},
	}
	partFlags(cmd, &parts)
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var parts sspak.Parts
	var drop bool
	cmd := &cobra.Command{
		Use:   "load <sspak file> <webroot>",
		Short: "Load a pak into an existing site",
		Long:  "Load a pak into an existing site. Use @self as pak to load the pak bundled with this executable.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := a.target(args[1], a.toSudo)
			if err != nil {
				return err
			}
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.Load(cmd.Context(), args[0], dest, parts, drop)
		},
	}
	partFlags(cmd, &parts)
	cmd.Flags().BoolVar(&drop, "drop-db", false, "Drop and recreate the database before restoring it")
	return cmd
}

func newInstallCmd(a *app) *cobra.Command {
	var parts sspak.Parts
	var drop bool
	cmd := &cobra.Command{
		Use:   "install <sspak file> <new webroot>",
		Short: "Create a new site from a pak",
		Long:  "Create a new site from a pak by cloning its git remote and loading its database and assets.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := a.target(args[1], a.toSudo)
			if err != nil {
				return err
			}
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.Install(cmd.Context(), args[0], dest, parts, drop)
		},
	}
	partFlags(cmd, &parts)
	cmd.Flags().BoolVar(&drop, "drop-db", false, "Drop and recreate the database before restoring it")
	return cmd
}

func newSaveExistingCmd(a *app) *cobra.Command {
	var dumpFile, assetsDir string
	cmd := &cobra.Command{
		Use:   "saveexisting <sspak file>",
		Short: "Create a pak from an existing database dump and/or assets directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			return o.SaveExisting(cmd.Context(), args[0], dumpFile, assetsDir)
		},
	}
	cmd.Flags().StringVar(&dumpFile, "db", "", "SQL dump file, plain or gzipped")
	cmd.Flags().StringVar(&assetsDir, "assets", "", "Assets directory")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <sspak file> [destination dir]",
		Short: "Write the entries of a pak as separate files",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := "."
			if len(args) > 1 {
				dest = args[1]
			}
			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			entries, err := o.Extract(args[0], dest)
			if err != nil {
				return err
			}
			for _, e := range entries {
				a.logger.Info("Extracted entry", "entry", e.Name, "size", e.Size, "destination", dest)
			}
			return nil
		},
	}
}
