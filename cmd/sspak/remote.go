package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vansante/go-sspak/archive"
	sspakhttp "github.com/vansante/go-sspak/http"
	"github.com/vansante/go-sspak/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <sspak file>",
		Short: "Serve a pak over HTTP to authenticated clients",
		Long:  "Serve a pak over HTTP to authenticated clients until interrupted. Use @self to serve the bundled pak.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := validate.Struct(a.conf.HTTP)
			if err != nil {
				return fmt.Errorf("invalid http config: %w", err)
			}
			pak := archive.Open(args[0])
			err = pak.RequireExists()
			if err != nil {
				return err
			}

			server, err := sspakhttp.NewHTTP(cmd.Context(), a.conf.HTTP, pak, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("Serving pak", "pak", args[0], "address", server.Addr().String())
			server.Serve()
			return nil
		},
	}
}

var errNoToken = errors.New("no authentication token given")

func newFetchCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "fetch <server url> <sspak file>",
		Short: "Download a served pak",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" && len(a.conf.HTTP.AuthenticationTokens) > 0 {
				token = a.conf.HTTP.AuthenticationTokens[0]
			}
			if token == "" {
				return errNoToken
			}

			client := sspakhttp.NewClient(args[0], token, a.logger)
			_, err := client.Fetch(cmd.Context(), args[1], sspakhttp.FetchOptions{
				ProgressEvery: a.conf.Transfer.ProgressEventInterval,
				ProgressFn: func(bytes int64) {
					a.logger.Info("Progress", "transferred", humanize.IBytes(uint64(bytes)))
				},
			})
			return err
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Authentication token, defaults to the first configured token")
	return cmd
}

func (a *app) store() (*store.Store, error) {
	err := validate.Struct(a.conf.S3)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}
	return store.New(a.conf.S3, a.logger)
}

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push <sspak file> <s3://bucket/key>",
		Short: "Upload a pak to an object store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := store.ParseLocation(args[1])
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			start := time.Now()
			err = s.Push(cmd.Context(), args[0], loc)
			if err != nil {
				return err
			}
			a.logger.Info("Pushed pak", "pak", args[0], "location", loc.String(), "timeTaken", time.Since(start))
			return nil
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <s3://bucket/key> <sspak file>",
		Short: "Download a pak from an object store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := store.ParseLocation(args[0])
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.Pull(cmd.Context(), loc, args[1])
		},
	}
}
