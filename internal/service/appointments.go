package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rdv-service/internal/apperr"
	"rdv-service/internal/localstore"
	"rdv-service/internal/mode"
	"rdv-service/internal/remote"
	"rdv-service/pkg/models"
)

// Source tells the caller which store answered.
type Source string

const (
	// SourceRemote: the remote store answered; the result is authoritative.
	SourceRemote Source = "remote"
	// SourceLocal: remote access is not permitted, the local store is authoritative.
	SourceLocal Source = "local"
	// SourceOffline: the remote store failed and the local store answered instead.
	SourceOffline Source = "offline"
)

type AddResult struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
}

type ListResult struct {
	Appointments []models.Appointment `json:"data"`
	Source       Source               `json:"source"`
}

// Offline reports a degraded read served by the local fallback.
func (r ListResult) Offline() bool { return r.Source == SourceOffline }

type SyncResult struct {
	Synced int `json:"synced"`
	Total  int `json:"total"`
}

type DataStats struct {
	Local           int  `json:"local"`
	PendingSync     int  `json:"pendingSync"`
	Online          bool `json:"isOnline"`
	RemoteAvailable bool `json:"remoteAvailable"`
}

// AppointmentService is the dual-mode appointment repository. Every operation
// asks the mode selector first, tries the remote store when permitted and
// falls back to the local store on failure.
type AppointmentService struct {
	local  *localstore.Store
	remote remote.Store
	mode   *mode.Selector
	logger *zap.Logger
	now    func() time.Time
}

// NewAppointmentService wires the repository. remoteStore may be nil when the
// remote client could not be built.
func NewAppointmentService(local *localstore.Store, remoteStore remote.Store, selector *mode.Selector, logger *zap.Logger) *AppointmentService {
	return &AppointmentService{
		local:  local,
		remote: remoteStore,
		mode:   selector,
		logger: logger.Named("appointments"),
		now:    time.Now,
	}
}

// WithClock overrides time.Now, for tests.
func (s *AppointmentService) WithClock(now func() time.Time) *AppointmentService {
	s.now = now
	return s
}

func (s *AppointmentService) Local() *localstore.Store { return s.local }
func (s *AppointmentService) Mode() *mode.Selector      { return s.mode }

func (s *AppointmentService) remotePermitted() bool {
	return s.remote != nil && s.mode.RemotePermitted()
}

func (s *AppointmentService) Add(ctx context.Context, req models.AppointmentRequest) (AddResult, error) {
	if err := req.Validate(); err != nil {
		return AddResult{}, err
	}
	if !s.remotePermitted() {
		id, err := s.local.Add(ctx, req)
		return AddResult{ID: id, Source: SourceLocal}, err
	}

	id, err := s.remote.Create(ctx, models.NewRemoteAppointment(req, s.now().UTC()))
	if err == nil {
		return AddResult{ID: id, Source: SourceRemote}, nil
	}

	s.logger.Warn("❌ [REMOTE] add failed, falling back to local store", zap.Error(err))
	id, lerr := s.local.Add(ctx, req)
	if lerr != nil {
		return AddResult{}, fmt.Errorf("local fallback failed: %w", lerr)
	}
	return AddResult{ID: id, Source: SourceOffline}, nil
}

func (s *AppointmentService) GetAll(ctx context.Context) (ListResult, error) {
	if !s.remotePermitted() {
		return ListResult{Appointments: s.local.ListSorted(ctx), Source: SourceLocal}, nil
	}
	list, err := s.remote.List(ctx)
	if err != nil {
		s.logger.Warn("❌ [REMOTE] list failed, serving local data", zap.Error(err))
		return ListResult{Appointments: s.local.ListSorted(ctx), Source: SourceOffline}, nil
	}
	return ListResult{Appointments: list, Source: SourceRemote}, nil
}

func (s *AppointmentService) GetByDate(ctx context.Context, date string) (ListResult, error) {
	if !s.remotePermitted() {
		return ListResult{Appointments: s.local.ListByDate(ctx, date), Source: SourceLocal}, nil
	}
	list, err := s.remote.ListByDate(ctx, date)
	if err != nil {
		s.logger.Warn("❌ [REMOTE] list by date failed, serving local data", zap.String("date", date), zap.Error(err))
		return ListResult{Appointments: s.local.ListByDate(ctx, date), Source: SourceOffline}, nil
	}
	return ListResult{Appointments: list, Source: SourceRemote}, nil
}

// Search matches the client name only when the remote store answers; the
// local store also matches phone and notes.
func (s *AppointmentService) Search(ctx context.Context, term string) (ListResult, error) {
	if !s.remotePermitted() {
		return ListResult{Appointments: s.local.Search(ctx, term), Source: SourceLocal}, nil
	}
	all, err := s.remote.ListAll(ctx)
	if err != nil {
		s.logger.Warn("❌ [REMOTE] search failed, searching local data", zap.Error(err))
		return ListResult{Appointments: s.local.Search(ctx, term), Source: SourceOffline}, nil
	}
	needle := strings.ToLower(term)
	out := []models.Appointment{}
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.ClientName), needle) {
			out = append(out, a)
		}
	}
	localstore.SortAppointments(out)
	return ListResult{Appointments: out, Source: SourceRemote}, nil
}

// Update routes to whichever store holds the authoritative copy: a record
// present locally is still pending and is updated in place.
func (s *AppointmentService) Update(ctx context.Context, id string, patch models.AppointmentPatch) (Source, error) {
	if err := patch.Validate(); err != nil {
		return "", err
	}
	if patch.IsEmpty() {
		return "", fmt.Errorf("%w: nothing to update", apperr.ErrInvalidInput)
	}
	if !s.remotePermitted() {
		return SourceLocal, s.local.Update(ctx, id, patch)
	}
	if s.local.Has(ctx, id) {
		return SourceLocal, s.local.Update(ctx, id, patch)
	}

	fields := patch.Fields()
	fields["updatedAt"] = s.now().UTC()
	err := s.remote.Update(ctx, id, fields)
	if err == nil {
		return SourceRemote, nil
	}
	s.logger.Warn("❌ [REMOTE] update failed, falling back to local store", zap.String("id", id), zap.Error(err))
	if lerr := s.local.Update(ctx, id, patch); lerr != nil {
		return SourceOffline, fallbackError(err, lerr)
	}
	return SourceOffline, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id string) (Source, error) {
	if !s.remotePermitted() {
		return SourceLocal, s.local.Delete(ctx, id)
	}
	if s.local.Has(ctx, id) {
		return SourceLocal, s.local.Delete(ctx, id)
	}

	err := s.remote.Delete(ctx, id)
	if err == nil {
		return SourceRemote, nil
	}
	s.logger.Warn("❌ [REMOTE] delete failed, falling back to local store", zap.String("id", id), zap.Error(err))
	if lerr := s.local.Delete(ctx, id); lerr != nil {
		return SourceOffline, fallbackError(err, lerr)
	}
	return SourceOffline, nil
}

func (s *AppointmentService) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) (Source, error) {
	return s.Update(ctx, id, models.StatusPatch(status))
}

func (s *AppointmentService) UpdatePaymentStatus(ctx context.Context, id string, payment models.PaymentStatus) (Source, error) {
	return s.Update(ctx, id, models.PaymentPatch(payment))
}

// SyncLocalToRemote pushes every pending local record to the remote store
// one at a time and removes the local copy after each successful push.
// A failed record is logged and left pending; the batch carries on.
func (s *AppointmentService) SyncLocalToRemote(ctx context.Context) (SyncResult, error) {
	if s.remote == nil || !s.mode.CanSync() {
		return SyncResult{}, apperr.ErrSyncUnavailable
	}

	pending, err := s.local.Pending(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if len(pending) == 0 {
		return SyncResult{}, nil
	}

	synced := 0
	for _, a := range pending {
		remoteID, err := s.remote.Create(ctx, a.ForRemote(s.now().UTC()))
		if err != nil {
			s.logger.Error("❌ [SYNC] push failed", zap.String("id", a.ID), zap.Error(err))
			continue
		}
		if err := s.local.Delete(ctx, a.ID); err != nil {
			// the record now exists in both stores; it will be pushed again next pass
			s.logger.Error("⚠️ [SYNC] pushed but local copy not removed", zap.String("id", a.ID), zap.String("remote_id", remoteID), zap.Error(err))
			continue
		}
		synced++
		s.logger.Info("🔄 [SYNC] appointment synchronized", zap.String("id", a.ID), zap.String("remote_id", remoteID))
	}

	s.logger.Info("✅ [SYNC] synchronization finished", zap.Int("synced", synced), zap.Int("total", len(pending)))
	return SyncResult{Synced: synced, Total: len(pending)}, nil
}

func (s *AppointmentService) DataStats(ctx context.Context) DataStats {
	pending, err := s.local.Pending(ctx)
	if err != nil {
		s.logger.Error("❌ [LOCAL] pending count unavailable", zap.Error(err))
	}
	return DataStats{
		Local:           len(s.local.GetAll(ctx)),
		PendingSync:     len(pending),
		Online:          s.mode.Online(),
		RemoteAvailable: s.remotePermitted(),
	}
}

// fallbackError keeps the local error kind (not-found, quota) in front and
// the remote cause alongside it.
func fallbackError(remoteErr, localErr error) error {
	if errors.Is(localErr, apperr.ErrNotFound) {
		return fmt.Errorf("%w (remote: %v)", localErr, remoteErr)
	}
	return fmt.Errorf("local fallback failed: %w (remote: %v)", localErr, remoteErr)
}
