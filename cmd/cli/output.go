package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jwalitptl/schoolhealth/internal/model"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSubmissions(w io.Writer, subs []model.Submission) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTUDENT\tDATE\tSTATUS\tMEDICINES")
	for i := range subs {
		sub := &subs[i]
		names := make([]string, 0, len(sub.MedicationDetails))
		for _, d := range sub.MedicationDetails {
			names = append(names, d.MedicineName)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			sub.ID, sub.StudentID, sub.SubmissionDate.Format("2006-01-02"),
			sub.DisplayStatus().Label(), strings.Join(names, ", "))
	}
	return tw.Flush()
}

func printSchedules(w io.Writer, slots []model.ScheduleSlot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEDULE\tTIME\tMEDICINE\tSTATUS\tEVIDENCE\tNOTE")
	for _, s := range slots {
		evidence := "-"
		if s.HasEvidence {
			evidence = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.MedicationScheduleID, s.TimeToUse, s.MedicationDetail.MedicineName,
			s.Status.Label(), evidence, s.NoteSchedule)
	}
	return tw.Flush()
}

func printBatches(w io.Writer, batches []model.Batch) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tSTATUS")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.ScheduledDate.Format("2006-01-02"), b.Status.Label())
	}
	return tw.Flush()
}

// writeImage saves a found image to path, or prints the absence message.
func writeImage(w io.Writer, res *medicationService.ImageResult, path string) error {
	if res.Outcome != medicationService.ImageFound {
		fmt.Fprintln(w, res.Message)
		return nil
	}
	if path == "" || path == "-" {
		_, err := w.Write(res.Image.Data)
		return err
	}
	if err := os.WriteFile(path, res.Image.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Fprintf(w, "saved %s (%s, %d bytes)\n", path, res.Image.ContentType, len(res.Image.Data))
	return nil
}
