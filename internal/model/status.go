package model

import (
	"encoding/json"
	"fmt"
)

// ConfirmationStatus is the nurse's overall disposition of a submission.
// Values are the backend's wire labels.
type ConfirmationStatus string

const (
	ConfirmationProcessing ConfirmationStatus = "Đang xử lí"
	ConfirmationCompleted  ConfirmationStatus = "Đã hoàn thành"
	ConfirmationCancelled  ConfirmationStatus = "Đã Hủy"
)

// ConfirmationStatuses lists the whole domain in display order.
var ConfirmationStatuses = []ConfirmationStatus{
	ConfirmationProcessing,
	ConfirmationCompleted,
	ConfirmationCancelled,
}

func (s ConfirmationStatus) String() string {
	switch s {
	case ConfirmationProcessing:
		return "Processing"
	case ConfirmationCompleted:
		return "Completed"
	case ConfirmationCancelled:
		return "Cancelled"
	}
	return string(s)
}

func (s ConfirmationStatus) Label() string { return string(s) }

func (s ConfirmationStatus) Valid() bool {
	return s == ConfirmationProcessing || s == ConfirmationCompleted || s == ConfirmationCancelled
}

func (s *ConfirmationStatus) UnmarshalJSON(data []byte) error {
	return unmarshalStatus(data, s, ConfirmationStatuses)
}

// ScheduleStatus is the state of one schedule slot.
type ScheduleStatus string

const (
	ScheduleAwaitingPickup ScheduleStatus = "Chờ nhận thuốc"
	ScheduleDispensed      ScheduleStatus = "Đã phát thuốc"
	ScheduleRejected       ScheduleStatus = "Từ chối"
)

var ScheduleStatuses = []ScheduleStatus{
	ScheduleAwaitingPickup,
	ScheduleDispensed,
	ScheduleRejected,
}

func (s ScheduleStatus) String() string {
	switch s {
	case ScheduleAwaitingPickup:
		return "AwaitingPickup"
	case ScheduleDispensed:
		return "Dispensed"
	case ScheduleRejected:
		return "Rejected"
	}
	return string(s)
}

func (s ScheduleStatus) Label() string { return string(s) }

func (s ScheduleStatus) Valid() bool {
	return s == ScheduleAwaitingPickup || s == ScheduleDispensed || s == ScheduleRejected
}

func (s *ScheduleStatus) UnmarshalJSON(data []byte) error {
	return unmarshalStatus(data, s, ScheduleStatuses)
}

// BatchStatus is the approval state of a vaccination or health-check batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "Chờ duyệt"
	BatchApproved  BatchStatus = "Đã duyệt"
	BatchCompleted BatchStatus = "Đã hoàn thành"
	BatchRejected  BatchStatus = "Từ chối"
)

var BatchStatuses = []BatchStatus{
	BatchPending,
	BatchApproved,
	BatchCompleted,
	BatchRejected,
}

func (s BatchStatus) String() string {
	switch s {
	case BatchPending:
		return "Pending"
	case BatchApproved:
		return "Approved"
	case BatchCompleted:
		return "Completed"
	case BatchRejected:
		return "Rejected"
	}
	return string(s)
}

func (s BatchStatus) Label() string { return string(s) }

func (s BatchStatus) Valid() bool {
	for _, v := range BatchStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s *BatchStatus) UnmarshalJSON(data []byte) error {
	return unmarshalStatus(data, s, BatchStatuses)
}

// ParseConfirmationStatus accepts either the wire label or the English name.
func ParseConfirmationStatus(v string) (ConfirmationStatus, error) {
	return parseStatus(v, ConfirmationStatuses)
}

func ParseScheduleStatus(v string) (ScheduleStatus, error) {
	return parseStatus(v, ScheduleStatuses)
}

func ParseBatchStatus(v string) (BatchStatus, error) {
	return parseStatus(v, BatchStatuses)
}

type labeled interface {
	~string
	fmt.Stringer
}

func parseStatus[S labeled](v string, domain []S) (S, error) {
	for _, s := range domain {
		if string(s) == v || s.String() == v {
			return s, nil
		}
	}
	var zero S
	return zero, fmt.Errorf("unknown status %q", v)
}

func unmarshalStatus[S labeled](data []byte, dst *S, domain []S) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := parseStatus(raw, domain)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}
