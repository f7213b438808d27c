package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"newslettersync_go/config"
	"newslettersync_go/logging"
)

type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "newslettersync",
		Short:        "Import newsletters from Gmail and enrich them with summaries, topics and article links",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cfg.Log.Level, cfg.Log.Pretty)
			return nil
		},
	}

	root.AddCommand(
		newSetupCmd(a),
		newSyncCmd(a),
		newProcessCmd(a),
		newInspectCmd(a),
		newListCmd(a),
		newReadCmd(a),
		newPublishersCmd(a),
	)
	return root
}
