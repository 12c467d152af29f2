package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/schoolhealth/internal/model"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
)

func confirmationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirmations",
		Short: "Nurse disposition of whole submissions",
	}

	setCmd := &cobra.Command{
		Use:   "set <confirm-id>",
		Short: "Change a confirmation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statusFlag, _ := cmd.Flags().GetString("status")
			reason, _ := cmd.Flags().GetString("reason")
			status, err := model.ParseConfirmationStatus(statusFlag)
			if err != nil {
				return err
			}
			subs, err := a.medication.UpdateConfirmationStatus(cmd.Context(), a.actor, medicationService.ConfirmationChange{
				ConfirmID: args[0],
				Status:    status,
				Reason:    reason,
			}, a.confirmer)
			if err != nil {
				return err
			}
			return printSubmissions(cmd.OutOrStdout(), subs)
		},
	}
	setCmd.Flags().String("status", "", "Processing, Completed or Cancelled (or the Vietnamese label)")
	setCmd.Flags().String("reason", "", "Reason shown to the parent")
	_ = setCmd.MarkFlagRequired("status")
	cmd.AddCommand(setCmd)

	return cmd
}

func schedulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Nurse actions on individual schedule slots",
	}

	setCmd := &cobra.Command{
		Use:   "set <schedule-id>",
		Short: "Change a schedule slot status, optionally uploading evidence first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			submissionID, _ := flags.GetString("submission")
			statusFlag, _ := flags.GetString("status")
			note, _ := flags.GetString("note")
			evidencePath, _ := flags.GetString("evidence")

			status, err := model.ParseScheduleStatus(statusFlag)
			if err != nil {
				return err
			}
			change := medicationService.ScheduleChange{
				SubmissionID: submissionID,
				ScheduleID:   args[0],
				Status:       status,
				Note:         note,
			}
			if evidencePath != "" {
				data, err := os.ReadFile(evidencePath)
				if err != nil {
					return fmt.Errorf("failed to read evidence: %w", err)
				}
				change.Evidence = &model.Evidence{Filename: filepath.Base(evidencePath), Data: data}
			}

			slots, err := a.medication.UpdateScheduleStatus(cmd.Context(), a.actor, change, a.confirmer)
			if err != nil {
				return err
			}
			return printSchedules(cmd.OutOrStdout(), slots)
		},
	}
	setCmd.Flags().String("submission", "", "Submission the slot belongs to")
	setCmd.Flags().String("status", "", "AwaitingPickup, Dispensed or Rejected (or the Vietnamese label)")
	setCmd.Flags().String("note", "", "Note recorded on the slot")
	setCmd.Flags().String("evidence", "", "Photo uploaded before the status change")
	_ = setCmd.MarkFlagRequired("submission")
	_ = setCmd.MarkFlagRequired("status")
	cmd.AddCommand(setCmd)

	return cmd
}

func evidenceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Dispensing evidence photos",
	}
	getCmd := &cobra.Command{
		Use:   "get <schedule-id>",
		Short: "Download the evidence photo of a schedule slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			res, err := a.medication.GetEvidenceImage(cmd.Context(), a.actor, args[0])
			if err != nil {
				return err
			}
			return writeImage(cmd.OutOrStdout(), res, output)
		},
	}
	getCmd.Flags().StringP("output", "o", "", "File to write, - for stdout")
	cmd.AddCommand(getCmd)
	return cmd
}

func imageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Medicine photos attached to submissions",
	}
	getCmd := &cobra.Command{
		Use:   "get <submission-id>",
		Short: "Download the medicine photo of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			res, err := a.medication.GetMedicineImage(cmd.Context(), a.actor, args[0])
			if err != nil {
				return err
			}
			return writeImage(cmd.OutOrStdout(), res, output)
		},
	}
	getCmd.Flags().StringP("output", "o", "", "File to write, - for stdout")
	cmd.AddCommand(getCmd)
	return cmd
}
