package model

import (
	"time"
)

// TimeOfDay is a time-of-day token a medicine is taken at.
type TimeOfDay string

const (
	Morning TimeOfDay = "Sáng"
	Noon    TimeOfDay = "Trưa"
	Evening TimeOfDay = "Chiều"
)

var TimesOfDay = []TimeOfDay{Morning, Noon, Evening}

// Submission is one parent-initiated request to administer medicine to a student.
type Submission struct {
	ID                string             `json:"id"`
	StudentID         string             `json:"studentId"`
	ParentID          string             `json:"parentId"`
	SubmissionDate    time.Time          `json:"submissionDate"`
	Status            ConfirmationStatus `json:"status,omitempty"`
	MedicationDetails []MedicationDetail `json:"medicationDetails"`
	Confirmation      *Confirmation      `json:"confirmation,omitempty"`
}

// DisplayStatus is the confirmation status, or Processing until a nurse has acted.
func (s *Submission) DisplayStatus() ConfirmationStatus {
	if s.Confirmation != nil && s.Confirmation.Status.Valid() {
		return s.Confirmation.Status
	}
	if s.Status.Valid() {
		return s.Status
	}
	return ConfirmationProcessing
}

// NurseActed reports whether a confirmation record exists and has left Processing.
func (s *Submission) NurseActed() bool {
	return s.Confirmation != nil && s.Confirmation.Status != ConfirmationProcessing
}

// MedicationDetail is one named drug within a submission.
type MedicationDetail struct {
	MedicineName  string      `json:"medicineName" validate:"required,notblank"`
	Dosage        string      `json:"dosage" validate:"required,notblank"`
	TimeToUseList []TimeOfDay `json:"timeToUseList" validate:"required,min=1,unique,dive,oneof=Sáng Trưa Chiều"`
	Note          string      `json:"note,omitempty"`
	// MedicineImage is base64 encoded; only the first detail of a submission carries one.
	MedicineImage string `json:"medicineImage,omitempty"`
}

// Confirmation is the nurse's overall disposition record for a submission.
type Confirmation struct {
	ConfirmID string             `json:"confirmId"`
	Status    ConfirmationStatus `json:"status"`
	Reason    string             `json:"reason,omitempty"`
	NurseID   string             `json:"nurseId,omitempty"`
}

// DetailInput is a medication detail as entered by a parent, before encoding.
type DetailInput struct {
	MedicineName  string      `json:"medicineName" validate:"required,notblank"`
	Dosage        string      `json:"dosage" validate:"required,notblank"`
	TimeToUseList []TimeOfDay `json:"timeToUseList" validate:"required,min=1,unique,dive,oneof=Sáng Trưa Chiều"`
	Note          string      `json:"note,omitempty"`
	Image         []byte      `json:"-"`
}

type CreateSubmissionRequest struct {
	StudentID string        `json:"studentId" validate:"required"`
	ParentID  string        `json:"parentId" validate:"required"`
	Details   []DetailInput `json:"medicationDetails"`
}

// SubmitPayload is the body of POST /medication-submission/submit.
type SubmitPayload struct {
	ParentID          string             `json:"parentId"`
	StudentID         string             `json:"studentId"`
	MedicationDetails []MedicationDetail `json:"medicationDetails"`
}

// SameDay reports whether t falls on day in day's location. A zero day matches everything.
func SameDay(t, day time.Time) bool {
	if day.IsZero() {
		return true
	}
	t = t.In(day.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
