package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/schoolhealth/internal/model"
)

const dayLayout = "2006-01-02"

func submissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submissions",
		Aliases: []string{"sub"},
		Short:   "List, create and cancel medication submissions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, optionally for one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dayFlag, _ := cmd.Flags().GetString("day")
			var day time.Time
			if dayFlag != "" {
				d, err := time.ParseInLocation(dayLayout, dayFlag, a.location())
				if err != nil {
					return fmt.Errorf("--day must be YYYY-MM-DD: %w", err)
				}
				day = d
			}
			subs, err := a.medication.ListSubmissions(cmd.Context(), a.actor, day)
			if err != nil {
				return err
			}
			return printSubmissions(cmd.OutOrStdout(), subs)
		},
	}
	listCmd.Flags().String("day", "", "Only submissions made on this day (YYYY-MM-DD)")
	cmd.AddCommand(listCmd)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Send a new submission to the school nurse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := createRequest(cmd, a.actor)
			if err != nil {
				return err
			}
			sub, err := a.medication.CreateSubmission(cmd.Context(), a.actor, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
	createCmd.Flags().String("file", "", "JSON submission (studentId, parentId, medicationDetails)")
	createCmd.Flags().String("student", "", "Student id")
	createCmd.Flags().String("parent", "", "Parent id (defaults to the acting parent)")
	createCmd.Flags().String("medicine", "", "Medicine name")
	createCmd.Flags().String("dosage", "", "Dosage")
	createCmd.Flags().StringSlice("times", nil, "Times of day: Sáng, Trưa, Chiều")
	createCmd.Flags().String("note", "", "Note for the nurse")
	createCmd.Flags().String("image", "", "Photo of the medicine, attached to the first medication")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <submission-id>",
		Short: "Cancel a submission the nurse has not acted on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := a.medication.CancelSubmission(cmd.Context(), a.actor, args[0], a.confirmer)
			if err != nil {
				return err
			}
			return printSubmissions(cmd.OutOrStdout(), subs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schedules <submission-id>",
		Short: "List the schedule slots of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := a.medication.ListSchedules(cmd.Context(), a.actor, args[0])
			if err != nil {
				return err
			}
			return printSchedules(cmd.OutOrStdout(), slots)
		},
	})

	return cmd
}

// createRequest reads --file when given, otherwise one medication from the flags.
func createRequest(cmd *cobra.Command, actor model.ActorContext) (model.CreateSubmissionRequest, error) {
	var req model.CreateSubmissionRequest
	flags := cmd.Flags()

	if file, _ := flags.GetString("file"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("failed to read submission file: %w", err)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("failed to parse submission file: %w", err)
		}
	} else {
		req.StudentID, _ = flags.GetString("student")
		req.ParentID, _ = flags.GetString("parent")

		var detail model.DetailInput
		detail.MedicineName, _ = flags.GetString("medicine")
		detail.Dosage, _ = flags.GetString("dosage")
		detail.Note, _ = flags.GetString("note")
		times, _ := flags.GetStringSlice("times")
		for _, t := range times {
			detail.TimeToUseList = append(detail.TimeToUseList, model.TimeOfDay(t))
		}
		req.Details = []model.DetailInput{detail}
	}

	if req.ParentID == "" && actor.Role == model.RoleParent {
		req.ParentID = actor.ActorID
	}

	if path, _ := flags.GetString("image"); path != "" && len(req.Details) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read image: %w", err)
		}
		req.Details[0].Image = data
	}
	return req, nil
}
