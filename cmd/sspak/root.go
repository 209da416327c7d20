package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/database"
	"github.com/vansante/go-sspak/sniff"
	"github.com/vansante/go-sspak/transfer"
)

// app holds what the subcommands share once the configuration is loaded
type app struct {
	configFile string
	sudo       string
	fromSudo   string
	toSudo     string

	conf     Config
	logger   *slog.Logger
	executor *sspak.Executor
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "sspak",
		Short:         "Save, load and move PHP sites as pak files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (TOML), defaults to sspak/config.toml in the user config dir")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("identity", "", "SSH private key file for remote sites")
	flags.Int64("bytes-per-second", 0, "Limit the transfer speed, 0 is unlimited")
	flags.String("sniffer", "", "PHP binary used to inspect sites")
	flags.StringVar(&a.sudo, "sudo", "", "Inspect sites as this user")
	flags.StringVar(&a.fromSudo, "from-sudo", "", "Inspect the source site as this user, overrides --sudo")
	flags.StringVar(&a.toSudo, "to-sudo", "", "Inspect the destination site as this user, overrides --sudo")

	cmd.AddCommand(
		newSaveCmd(a),
		newLoadCmd(a),
		newInstallCmd(a),
		newSaveExistingCmd(a),
		newExtractCmd(a),
		newBundleCmd(a),
		newInfoCmd(a),
		newServeCmd(a),
		newFetchCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newScheduleCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	conf, err := loadConfig(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.conf = conf
	a.logger = slog.New(sspak.NewLogfmtHandler(os.Stderr, parseLevel(conf.LogLevel)))
	a.executor = sspak.NewExecutor(conf.Exec, a.logger)
	return nil
}

// target creates a site target, sudo is the user specific to this side of the transfer
func (a *app) target(location, sudo string) (*sspak.Target, error) {
	t := sspak.NewTarget(location, a.executor, a.logger)
	err := t.SetIdentity(a.conf.Exec.Identity)
	if err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}
	if sudo == "" {
		sudo = a.sudo
	}
	t.SetSudo(sudo)
	return t, nil
}

func (a *app) orchestrator() (*transfer.Orchestrator, error) {
	sniffer, err := sniff.NewSniffer(a.conf.Sniffer, sniff.DefaultPayload(), a.logger)
	if err != nil {
		return nil, err
	}
	o := transfer.NewOrchestrator(a.conf.Transfer, a.executor, database.NewRegistry(), sniffer, a.logger)
	a.reportEvents(o)
	return o, nil
}

// reportEvents logs the progress of an operation for the user
func (a *app) reportEvents(o *transfer.Orchestrator) {
	o.AddListener(transfer.SavingPartEvent, func(arguments ...interface{}) {
		a.logger.Info("Saving part", "entry", arguments[0], "source", arguments[1])
	})
	o.AddListener(transfer.LoadingPartEvent, func(arguments ...interface{}) {
		a.logger.Info("Loading part", "entry", arguments[0], "destination", arguments[1])
	})
	o.AddListener(transfer.PartProgressEvent, func(arguments ...interface{}) {
		bytes, _ := arguments[1].(int64)
		a.logger.Info("Progress", "entry", arguments[0], "transferred", humanize.IBytes(uint64(bytes)))
	})
	o.AddListener(transfer.ClonedRepositoryEvent, func(arguments ...interface{}) {
		a.logger.Info("Cloned repository", "remote", arguments[0], "path", arguments[1])
	})
}
