package model

// ScheduleSlot is one (medicine, time of day) unit a nurse dispenses.
type ScheduleSlot struct {
	MedicationScheduleID string           `json:"medicationScheduleId"`
	SubmissionID         string           `json:"submissionId,omitempty"`
	TimeToUse            TimeOfDay        `json:"timeToUse"`
	Status               ScheduleStatus   `json:"status"`
	NoteSchedule         string           `json:"noteSchedule,omitempty"`
	MedicationDetail     MedicationDetail `json:"medicationDetails"`
	HasEvidence          bool             `json:"hasEvidence,omitempty"`
}

// Evidence is an image queued for upload against a schedule slot.
type Evidence struct {
	Filename string
	Data     []byte
}

// ConfirmationStatusPayload is the body of PUT /medication-confirmations/{confirmId}/status.
type ConfirmationStatusPayload struct {
	Status  ConfirmationStatus `json:"status"`
	NurseID string             `json:"nurseId"`
	Reason  string             `json:"reason"`
}

type ScheduleStatusPayload struct {
	Status       ScheduleStatus `json:"status"`
	NoteSchedule string         `json:"noteSchedule"`
}

type CancelSubmissionPayload struct {
	SubmissionID string `json:"submissionId"`
}

// Image is a binary image fetched from the backend.
type Image struct {
	ContentType string
	Data        []byte
}
