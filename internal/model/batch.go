package model

import (
	"fmt"
	"time"
)

// BatchKind selects which batch approval domain a request targets.
type BatchKind string

const (
	BatchVaccination BatchKind = "vaccination"
	BatchHealthCheck BatchKind = "health-check"
)

func ParseBatchKind(v string) (BatchKind, error) {
	switch BatchKind(v) {
	case BatchVaccination, BatchHealthCheck:
		return BatchKind(v), nil
	}
	return "", fmt.Errorf("unknown batch kind %q", v)
}

// Batch is a vaccination or health-check campaign awaiting approval.
type Batch struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	ScheduledDate time.Time   `json:"scheduledDate"`
	Status        BatchStatus `json:"status"`
	Reason        string      `json:"reason,omitempty"`
}

type BatchStatusPayload struct {
	Status  BatchStatus `json:"status"`
	NurseID string      `json:"nurseId"`
	Reason  string      `json:"reason"`
}
