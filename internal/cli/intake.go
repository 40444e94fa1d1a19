package cli

import (
	"fmt"

	"replydesk/internal/gmail"
	"replydesk/internal/intake"
	"replydesk/internal/service"

	"github.com/spf13/cobra"
)

var intakeLimit int

var intakeCmd = &cobra.Command{
	Use:   "intake-gmail",
	Short: "Turn unread Gmail inbox messages into pending messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := gmail.NewService(ctx, cfg.Gmail.ConfigDir)
		if err != nil {
			return fmt.Errorf("gmail: %w", err)
		}
		sink := service.New(st, nil, service.Options{Logger: log})
		n, err := intake.New(intake.NewGmailInbox(svc), sink, buildDrafter(cfg), log).Run(ctx, intakeLimit)
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d new message(s)\n", n)
		return err
	},
}

func init() {
	intakeCmd.Flags().IntVar(&intakeLimit, "limit", intake.DefaultLimit, "maximum messages to fetch")
	rootCmd.AddCommand(intakeCmd)
}
