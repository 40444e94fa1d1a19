package cli

import (
	"fmt"
	"time"

	"replydesk/internal/model"
	"replydesk/internal/service"
	"replydesk/internal/util"

	"github.com/spf13/cobra"
)

var seedCount int

// sampleMessages are demo customer emails with first drafts.
var sampleMessages = []struct {
	from, subject, body, summary, reply string
}{
	{
		"Jane Doe <jane.doe@example.com>", "Where is my order?",
		"Hi, I ordered a lamp two weeks ago (order #1042) and it still has not arrived. Can you check?",
		"Order #1042 has not arrived after two weeks.",
		"Hi Jane,\n\nThanks for reaching out. I checked order #1042 and it is on its way; you should receive it within three business days.\n\nBest regards",
	},
	{
		"Bob <bob@example.org>", "Refund request",
		"The headphones I bought stopped working after a week. I'd like a refund please.",
		"Wants a refund for headphones that broke after a week.",
		"Hi Bob,\n\nI'm sorry the headphones stopped working. I've started a refund; you will see it on your statement in 5-7 days.\n\nBest regards",
	},
	{
		"carla@example.net", "",
		"Do you ship to Canada? And how long does it usually take?",
		"Asks about shipping to Canada and delivery time.",
		"Hi Carla,\n\nYes, we ship to Canada. Delivery usually takes 7-10 business days.\n\nBest regards",
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample pending messages for a demo",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		msgs := sampleBatch(seedCount, time.Now().UTC())
		inserted, err := service.New(st, nil, service.Options{}).Ingest(cmd.Context(), msgs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d pending message(s)\n", len(inserted))
		return nil
	},
}

func sampleBatch(n int, now time.Time) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		s := sampleMessages[i%len(sampleMessages)]
		sender := util.NormalizeSender(s.from)
		msgs = append(msgs, model.Message{
			Sender:     sender,
			SenderName: util.SenderName(sender),
			Subject:    util.SubjectOrDefault(s.subject),
			Body:       s.body,
			Summary:    s.summary,
			Reply:      s.reply,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", len(sampleMessages), "number of messages to insert")
	rootCmd.AddCommand(seedCmd)
}
