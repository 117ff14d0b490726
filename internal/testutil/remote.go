// Package testutil provides in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"rdv-service/internal/apperr"
	"rdv-service/pkg/models"
)

// FakeRemote is an in-memory remote.Store with switchable failures.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRemote struct {
	mu   sync.Mutex
	docs map[string]models.Appointment
	seq  int

	// Fail makes every data call return ErrRemoteUnavailable.
	Fail bool
	// FailCreateFor makes Create fail for appointments with these client names.
	FailCreateFor map[string]bool
	// PingErr is returned by Ping.
	PingErr error

	// NetworkErr is returned by EnableNetwork and DisableNetwork.
	NetworkErr error

	Enabled     int
	Disabled    int
	CreateCalls int
}

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{docs: map[string]models.Appointment{}, FailCreateFor: map[string]bool{}}
}

func (f *FakeRemote) unavailable() error {
	return fmt.Errorf("%w: fake outage", apperr.ErrRemoteUnavailable)
}

func (f *FakeRemote) Create(_ context.Context, a models.Appointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.Fail || f.FailCreateFor[a.ClientName] {
		return "", f.unavailable()
	}
	f.seq++
	id := "doc" + strconv.Itoa(f.seq)
	a.ID = id
	f.docs[id] = a
	return id, nil
}

func (f *FakeRemote) List(ctx context.Context) ([]models.Appointment, error) {
	all, err := f.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Before(all[j]) })
	return all, nil
}

func (f *FakeRemote) ListByDate(ctx context.Context, date string) ([]models.Appointment, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Appointment{}
	for _, a := range all {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *FakeRemote) ListAll(_ context.Context) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return nil, f.unavailable()
	}
	out := make([]models.Appointment, 0, len(f.docs))
	for _, a := range f.docs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeRemote) Update(_ context.Context, id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return f.unavailable()
	}
	a, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, id)
	}
	for k, v := range fields {
		switch k {
		case "date":
			a.Date = v.(string)
		case "time":
			a.Time = v.(string)
		case "clientName":
			a.ClientName = v.(string)
		case "clientPhone":
			a.ClientPhone = v.(string)
		case "notes":
			a.Notes = v.(string)
		case "status":
			a.Status = models.AppointmentStatus(v.(string))
		case "paymentStatus":
			a.PaymentStatus = models.PaymentStatus(v.(string))
		}
	}
	f.docs[id] = a
	return nil
}

func (f *FakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return f.unavailable()
	}
	delete(f.docs, id)
	return nil
}

func (f *FakeRemote) EnableNetwork(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled++
	return f.NetworkErr
}

func (f *FakeRemote) DisableNetwork(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disabled++
	return f.NetworkErr
}

func (f *FakeRemote) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// SetFail toggles the outage flag under the lock.
func (f *FakeRemote) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail = fail
}

func (f *FakeRemote) SetPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PingErr = err
}

// Docs returns a copy of the stored documents keyed by id.
func (f *FakeRemote) Docs() map[string]models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.Appointment, len(f.docs))
	for k, v := range f.docs {
		out[k] = v
	}
	return out
}
