package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/schoolhealth/pkg/messaging"
)

func eventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Activity published by the BFF",
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print status changes as they are accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, _ := cmd.Flags().GetString("domain")

			broker, channel, err := a.eventBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Close()

			msgs, err := broker.Subscribe(cmd.Context(), channel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for raw := range msgs {
				var evt messaging.ActionEvent
				if err := json.Unmarshal(raw, &evt); err != nil {
					a.log.Warn("skipping malformed event", "error", err.Error())
					continue
				}
				if domain != "" && evt.Domain != domain {
					continue
				}
				fmt.Fprintf(out, "%s  %-20s %-12s %s -> %s  by %s",
					evt.CreatedAt.In(a.location()).Format("2006-01-02 15:04:05"),
					evt.Domain, evt.EntityID, evt.From, evt.To, evt.ActorID)
				if evt.Reason != "" {
					fmt.Fprintf(out, "  (%s)", evt.Reason)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	tailCmd.Flags().String("domain", "", "Only events of this domain (submission, confirmation, schedule, ...)")
	cmd.AddCommand(tailCmd)

	return cmd
}
