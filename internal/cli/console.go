package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"replydesk/internal/client"
	"replydesk/internal/dictation"
	"replydesk/internal/logging"
	"replydesk/internal/notify"
	"replydesk/internal/session"
	"replydesk/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the operator console",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Console.StateDir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
		// The terminal belongs to the UI, so logs go to a file.
		log, logFile, err := logging.ToFile(cfg.Log, filepath.Join(cfg.Console.StateDir, "console.log"))
		if err != nil {
			return err
		}
		defer logFile.Close()

		histories, closer, err := buildHistories(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		api := client.New(cfg.Console.APIURL, 0)
		notes := notify.NewQueue(cfg.Console.ToastTTL)
		defer notes.Close()
		sess := session.New(api, notes, session.Options{
			SendDelay: cfg.Console.SendDelay,
			Drafter:   api,
			Histories: histories,
			Logger:    log,
		})

		app := tui.NewAppModel(sess, tui.Options{
			PollInterval: cfg.Console.PollInterval,
			Dictation:    dictation.New(cfg.Dictation.Command, cfg.Dictation.Timeout),
			Logger:       log,
		})
		defer app.Shutdown()

		p := tea.NewProgram(&app, tea.WithAltScreen())
		finalModel, err := p.Run()
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
		if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
			return m.Err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
