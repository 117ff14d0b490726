package models

import (
	"fmt"
	"strings"
	"time"

	"rdv-service/internal/apperr"
)

// DateLayout is the ISO calendar date used by Appointment.Date.
const DateLayout = "2006-01-02"

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusArrived    AppointmentStatus = "arrived"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
)

// legacyStatuses maps the values written by the first release of the tool.
var legacyStatuses = map[AppointmentStatus]AppointmentStatus{
	"prevu":   StatusScheduled,
	"arrive":  StatusArrived,
	"encours": StatusInProgress,
	"termine": StatusCompleted,
}

// Canonical resolves legacy aliases. Unknown values are returned unchanged.
func (s AppointmentStatus) Canonical() AppointmentStatus {
	if c, ok := legacyStatuses[s]; ok {
		return c
	}
	return s
}

// Open reports whether the appointment still needs attention.
func (s AppointmentStatus) Open() bool {
	switch s.Canonical() {
	case StatusScheduled, StatusArrived, StatusInProgress:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Appointment is one rendez-vous record. The same struct is stored in the
// local key-value blob (json tags) and in the remote collection (firestore tags).
type Appointment struct {
	ID            string            `json:"id" firestore:"-"`
	Date          string            `json:"date" firestore:"date"`
	Time          string            `json:"time" firestore:"time"`
	ClientName    string            `json:"clientName" firestore:"clientName"`
	ClientPhone   string            `json:"clientPhone,omitempty" firestore:"clientPhone,omitempty"`
	Notes         string            `json:"notes,omitempty" firestore:"notes,omitempty"`
	Status        AppointmentStatus `json:"status" firestore:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus" firestore:"paymentStatus"`
	CreatedAt     time.Time         `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt" firestore:"updatedAt"`
	// SyncPending marks a record that only exists locally and still has to be
	// pushed to the remote store. Never persisted remotely.
	SyncPending bool `json:"syncPending,omitempty" firestore:"-"`
}

// AppointmentRequest is the caller supplied part of a new appointment.
type AppointmentRequest struct {
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	ClientName    string            `json:"clientName"`
	ClientPhone   string            `json:"clientPhone,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Status        AppointmentStatus `json:"status,omitempty"`
	PaymentStatus PaymentStatus     `json:"paymentStatus,omitempty"`
}

func (r AppointmentRequest) Validate() error {
	if strings.TrimSpace(r.ClientName) == "" {
		return fmt.Errorf("%w: clientName is required", apperr.ErrInvalidInput)
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", apperr.ErrInvalidInput, r.Date)
	}
	if strings.TrimSpace(r.Time) == "" {
		return fmt.Errorf("%w: time is required", apperr.ErrInvalidInput)
	}
	return nil
}

func (r AppointmentRequest) build(now time.Time) Appointment {
	status := r.Status
	if status == "" {
		status = StatusScheduled
	}
	payment := r.PaymentStatus
	if payment == "" {
		payment = PaymentUnpaid
	}
	return Appointment{
		Date:          r.Date,
		Time:          r.Time,
		ClientName:    r.ClientName,
		ClientPhone:   r.ClientPhone,
		Notes:         r.Notes,
		Status:        status,
		PaymentStatus: payment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewLocalAppointment builds a record created while the remote store could not
// be used. It always carries the sync marker.
func NewLocalAppointment(id string, r AppointmentRequest, now time.Time) Appointment {
	a := r.build(now)
	a.ID = id
	a.SyncPending = true
	return a
}

// NewRemoteAppointment builds a record destined for the remote store. The id is
// assigned by the store.
func NewRemoteAppointment(r AppointmentRequest, now time.Time) Appointment {
	return r.build(now)
}

// ForRemote strips local-only metadata so a pending record can be pushed.
// createdAt is kept, updatedAt is restamped.
func (a Appointment) ForRemote(now time.Time) Appointment {
	a.ID = ""
	a.SyncPending = false
	a.UpdatedAt = now
	return a
}

// Before orders by date then time, both compared lexically.
func (a Appointment) Before(b Appointment) bool {
	if a.Date == b.Date {
		return a.Time < b.Time
	}
	return a.Date < b.Date
}

// AppointmentPatch is a partial update. Nil fields are left untouched.
type AppointmentPatch struct {
	Date          *string            `json:"date,omitempty"`
	Time          *string            `json:"time,omitempty"`
	ClientName    *string            `json:"clientName,omitempty"`
	ClientPhone   *string            `json:"clientPhone,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	Status        *AppointmentStatus `json:"status,omitempty"`
	PaymentStatus *PaymentStatus     `json:"paymentStatus,omitempty"`
}

func (p AppointmentPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

func (p AppointmentPatch) Validate() error {
	if p.ClientName != nil && strings.TrimSpace(*p.ClientName) == "" {
		return fmt.Errorf("%w: clientName cannot be empty", apperr.ErrInvalidInput)
	}
	if p.Date != nil {
		if _, err := time.Parse(DateLayout, *p.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", apperr.ErrInvalidInput, *p.Date)
		}
	}
	return nil
}

// Apply merges the patch into a and refreshes UpdatedAt.
func (p AppointmentPatch) Apply(a *Appointment, now time.Time) {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.ClientName != nil {
		a.ClientName = *p.ClientName
	}
	if p.ClientPhone != nil {
		a.ClientPhone = *p.ClientPhone
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		a.PaymentStatus = *p.PaymentStatus
	}
	a.UpdatedAt = now
}

// Fields returns the patch keyed by remote document field name.
func (p AppointmentPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Date != nil {
		fields["date"] = *p.Date
	}
	if p.Time != nil {
		fields["time"] = *p.Time
	}
	if p.ClientName != nil {
		fields["clientName"] = *p.ClientName
	}
	if p.ClientPhone != nil {
		fields["clientPhone"] = *p.ClientPhone
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.PaymentStatus != nil {
		fields["paymentStatus"] = string(*p.PaymentStatus)
	}
	return fields
}

func StatusPatch(s AppointmentStatus) AppointmentPatch {
	return AppointmentPatch{Status: &s}
}

func PaymentPatch(p PaymentStatus) AppointmentPatch {
	return AppointmentPatch{PaymentStatus: &p}
}
