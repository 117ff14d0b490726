// internal/sync/reconciler.go
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rdv-service/internal/apperr"
	"rdv-service/internal/kv"
	"rdv-service/internal/remote"
	"rdv-service/internal/service"
)

// LastSyncKey holds the RFC3339 time of the last reconciliation that pushed
// every pending record.
const LastSyncKey = "lvn_last_sync"

// Uploader ships an export document off-site.
type Uploader interface {
	UploadExport(ctx context.Context, blob []byte) (string, error)
}

type Options struct {
	ProbeInterval   time.Duration
	RetentionDays   int
	MaintenanceHour int
}

// MaintenanceReport is the outcome of one maintenance pass.
type MaintenanceReport struct {
	Removed   int    `json:"removed"`
	BackedUp  bool   `json:"backedUp"`
	UploadURL string `json:"uploadUrl,omitempty"`
}

// ReconcileService reacts to connectivity changes and runs the daily
// maintenance of the local store.
type ReconcileService struct {
	repo     *service.AppointmentService
	pinger   remote.Pinger
	uploader Uploader
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	// syncing prevents two reconciliation passes from pushing the same record.
	syncing atomic.Bool
}

// NewReconcileService does not start anything; call Start for the loops.
// pinger and uploader may be nil.
func NewReconcileService(repo *service.AppointmentService, pinger remote.Pinger, uploader Uploader, opts Options, logger *zap.Logger) *ReconcileService {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 30 * time.Second
	}
	return &ReconcileService{
		repo:     repo,
		pinger:   pinger,
		uploader: uploader,
		opts:     opts,
		logger:   logger.Named("sync"),
		now:      time.Now,
	}
}

// Start launches the probe loop and the maintenance scheduler. Both stop
// when ctx is cancelled.
func (s *ReconcileService) Start(ctx context.Context) {
	go s.scheduleMaintenance(ctx)
	if s.pinger != nil && !s.repo.Mode().Locked() {
		go s.scheduleProbe(ctx)
	}
}

// HandleOnline records the transition then pushes pending records.
func (s *ReconcileService) HandleOnline(ctx context.Context) (service.SyncResult, error) {
	s.repo.Mode().GoOnline(ctx)
	return s.Reconcile(ctx)
}

func (s *ReconcileService) HandleOffline(ctx context.Context) {
	s.repo.Mode().GoOffline(ctx)
}

// Reconcile runs one synchronization pass. A pass already in flight makes
// this call a no-op.
func (s *ReconcileService) Reconcile(ctx context.Context) (service.SyncResult, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		s.logger.Info("⏳ [SYNC] pass already running, skipping")
		return service.SyncResult{}, nil
	}
	defer s.syncing.Store(false)

	res, err := s.repo.SyncLocalToRemote(ctx)
	if errors.Is(err, apperr.ErrSyncUnavailable) {
		s.logger.Info("💤 [SYNC] synchronization not possible in the current mode")
		return res, err
	}
	if err != nil {
		s.logger.Error("❌ [SYNC] pass failed", zap.Error(err))
		return res, err
	}

	if res.Synced == res.Total {
		if err := s.updateLastSyncTime(ctx, s.now()); err != nil {
			s.logger.Warn("⚠️ [SYNC] failed to record last sync time", zap.Error(err))
		}
	}
	return res, nil
}

// Probe pings the remote store once and fires the matching transition.
func (s *ReconcileService) Probe(ctx context.Context) {
	if s.pinger == nil {
		return
	}
	mode := s.repo.Mode()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := s.pinger.Ping(pingCtx)
	cancel()

	switch {
	case err == nil && !mode.Online():
		s.logger.Info("🌐 [PROBE] remote reachable again")
		if _, err := s.HandleOnline(ctx); err != nil && !errors.Is(err, apperr.ErrSyncUnavailable) {
			s.logger.Error("❌ [PROBE] reconciliation after reconnect failed", zap.Error(err))
		}
	case err != nil && mode.Online():
		s.logger.Warn("📴 [PROBE] remote unreachable", zap.Error(err))
		s.HandleOffline(ctx)
	}
}

func (s *ReconcileService) scheduleProbe(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// scheduleMaintenance runs RunMaintenance every day at MaintenanceHour local time.
func (s *ReconcileService) scheduleMaintenance(ctx context.Context) {
	for {
		next := NextMaintenance(s.now(), s.opts.MaintenanceHour)
		wait := next.Sub(s.now())
		s.logger.Info("⏰ [MAINTENANCE] scheduled", zap.Time("at", next), zap.Duration("in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunMaintenance(ctx); err != nil {
			s.logger.Error("❌ [MAINTENANCE] pass failed", zap.Error(err))
		}
	}
}

// NextMaintenance returns the first hour:00 strictly after now.
func NextMaintenance(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunMaintenance removes old completed appointments, refreshes the backup
// slot and, when an uploader is configured, ships an export off-site.
// Cleanup and backup errors abort the pass; an upload failure does not.
func (s *ReconcileService) RunMaintenance(ctx context.Context) (MaintenanceReport, error) {
	local := s.repo.Local()
	var report MaintenanceReport

	s.logger.Info("🧹 [MAINTENANCE] starting")
	removed, err := local.Cleanup(ctx, s.opts.RetentionDays)
	if err != nil {
		return report, fmt.Errorf("cleanup failed: %w", err)
	}
	report.Removed = removed

	if err := local.CreateBackup(ctx); err != nil {
		return report, fmt.Errorf("backup failed: %w", err)
	}
	report.BackedUp = true

	if s.uploader != nil {
		url, err := s.UploadExport(ctx)
		if err != nil {
			s.logger.Error("❌ [MAINTENANCE] off-site upload failed", zap.Error(err))
		} else {
			report.UploadURL = url
		}
	}

	s.logger.Info("✅ [MAINTENANCE] completed", zap.Int("removed", report.Removed), zap.String("upload_url", report.UploadURL))
	return report, nil
}

// UploadExport exports the local store and uploads the document.
func (s *ReconcileService) UploadExport(ctx context.Context) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: off-site backups", apperr.ErrNotConfigured)
	}
	blob, err := s.repo.Local().Export(ctx)
	if err != nil {
		return "", err
	}
	url, err := s.uploader.UploadExport(ctx, blob)
	if err != nil {
		return "", err
	}
	s.logger.Info("☁️ [BACKUP] export uploaded", zap.String("url", url))
	return url, nil
}

// LastSyncTime returns the zero time when no pass completed yet.
func (s *ReconcileService) LastSyncTime(ctx context.Context) (time.Time, error) {
	raw, found, err := s.kvStore().Get(ctx, LastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse sync time: %w", err)
	}
	return parsed, nil
}

func (s *ReconcileService) updateLastSyncTime(ctx context.Context, t time.Time) error {
	return s.kvStore().Set(ctx, LastSyncKey, []byte(t.UTC().Format(time.RFC3339)))
}

func (s *ReconcileService) kvStore() kv.Store {
	return s.repo.Local().KV()
}
