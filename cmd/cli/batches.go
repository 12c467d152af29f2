package main

import (
	"github.com/spf13/cobra"

	"github.com/jwalitptl/schoolhealth/internal/model"
	batchService "github.com/jwalitptl/schoolhealth/internal/service/batch"
)

func batchesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Vaccination and health-check batch approvals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "list <vaccination|health-check>",
		Short:     "List batches of one kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.BatchVaccination), string(model.BatchHealthCheck)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseBatchKind(args[0])
			if err != nil {
				return err
			}
			batches, err := a.batches.List(cmd.Context(), a.actor, kind)
			if err != nil {
				return err
			}
			return printBatches(cmd.OutOrStdout(), batches)
		},
	})

	setCmd := &cobra.Command{
		Use:   "set <vaccination|health-check> <batch-id>",
		Short: "Approve, complete or reject a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseBatchKind(args[0])
			if err != nil {
				return err
			}
			statusFlag, _ := cmd.Flags().GetString("status")
			reason, _ := cmd.Flags().GetString("reason")
			status, err := model.ParseBatchStatus(statusFlag)
			if err != nil {
				return err
			}
			batches, err := a.batches.UpdateStatus(cmd.Context(), a.actor, kind, batchService.Change{
				BatchID: args[1],
				Status:  status,
				Reason:  reason,
			}, a.confirmer)
			if err != nil {
				return err
			}
			return printBatches(cmd.OutOrStdout(), batches)
		},
	}
	setCmd.Flags().String("status", "", "Pending, Approved, Completed or Rejected (or the Vietnamese label)")
	setCmd.Flags().String("reason", "", "Reason recorded with the decision")
	_ = setCmd.MarkFlagRequired("status")
	cmd.AddCommand(setCmd)

	return cmd
}
