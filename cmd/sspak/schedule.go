package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vansante/go-sspak/job"
)

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Periodically save the configured sites",
		Long: "Periodically save the configured sites into paks, optionally push them to an object store " +
			"and remove paks past their retention, until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := validate.Struct(a.conf.Job)
			if err != nil {
				return fmt.Errorf("invalid job config: %w", err)
			}
			if len(a.conf.Job.Sites) == 0 {
				return fmt.Errorf("no sites configured")
			}

			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			var pusher job.Pusher
			if a.conf.Job.EnablePakPush {
				s, err := a.store()
				if err != nil {
					return err
				}
				pusher = s
			}

			runner := job.NewRunner(cmd.Context(), a.conf.Job, a.executor, o, pusher, a.logger)
			runner.AddListener(job.CreatedPakEvent, func(arguments ...interface{}) {
				a.logger.Info("Created pak", "site", arguments[0], "pak", arguments[1])
			})
			runner.AddListener(job.PushedPakEvent, func(arguments ...interface{}) {
				a.logger.Info("Pushed pak", "pak", arguments[0], "location", arguments[1])
			})
			runner.AddListener(job.DeletedPakEvent, func(arguments ...interface{}) {
				a.logger.Info("Deleted pak", "pak", arguments[0], "site", arguments[1])
			})
			runner.Run()

			a.logger.Info("Scheduler running", "sites", len(a.conf.Job.Sites), "directory", a.conf.Job.Directory)
			<-cmd.Context().Done()
			return nil
		},
	}
}
