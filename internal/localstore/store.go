// Package localstore persists appointments as one JSON blob in a key-value
// byte store, with a backup slot used to recover from a corrupt blob.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rdv-service/internal/apperr"
	"rdv-service/internal/kv"
	"rdv-service/pkg/models"
)

const (
	StorageKey = "lvn_rendez_vous"
	BackupKey  = "lvn_backup"
	AuthKey    = "lvn_logged_in"
	SessionKey = "lvn_session"
)

// Records maps appointment id to appointment.
type Records map[string]models.Appointment

// Sorted returns the records ordered by date then time.
func (r Records) Sorted() []models.Appointment {
	out := make([]models.Appointment, 0, len(r))
	for _, a := range r {
		out = append(out, a)
	}
	SortAppointments(out)
	return out
}

// SortAppointments orders by date then time. Ties are broken by id so the
// order is stable across calls on unchanged data.
func SortAppointments(list []models.Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date == list[j].Date && list[i].Time == list[j].Time {
			return list[i].ID < list[j].ID
		}
		return list[i].Before(list[j])
	})
}

type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	kv     kv.Store
	logger *zap.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles on the primary blob.
	mu sync.Mutex
}

func New(store kv.Store, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		logger: logger.Named("localstore"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init writes an empty mapping when nothing is stored yet, then snapshots
// the current data into the backup slot.
func (s *Store) Init(ctx context.Context) error {
	_, found, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return err
	}
	if !found {
		if err := s.SaveAll(ctx, Records{}); err != nil {
			return err
		}
		s.logger.Info("💾 [LOCAL] storage initialized")
	}
	return s.CreateBackup(ctx)
}

// KV exposes the underlying byte store so the auth flag can share it.
func (s *Store) KV() kv.Store {
	return s.kv
}

// GetAll never fails. A corrupt blob is replaced by the backup snapshot; a
// read error also serves the snapshot, so only read-only callers may use it.
func (s *Store) GetAll(ctx context.Context) Records {
	records, err := s.load(ctx)
	if err != nil {
		s.logger.Error("❌ [LOCAL] read failed, serving backup", zap.Error(err))
		return s.RestoreFromBackup(ctx)
	}
	return records
}

// load reads the primary blob for a read-modify-write cycle. A read error is
// returned as ErrStorage so the caller never writes a substitute mapping over
// live data; only a corrupt blob falls back to the backup.
func (s *Store) load(ctx context.Context) (Records, error) {
	raw, found, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	if !found || len(raw) == 0 {
		return Records{}, nil
	}
	var records Records
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Error("❌ [LOCAL] corrupt data, using backup", zap.Error(err))
		return s.RestoreFromBackup(ctx), nil
	}
	if records == nil {
		records = Records{}
	}
	return records, nil
}

// SaveAll serializes and writes the whole mapping.
func (s *Store) SaveAll(ctx context.Context, records Records) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSerialization, err)
	}
	if err := s.kv.Set(ctx, StorageKey, raw); err != nil {
		s.logger.Error("❌ [LOCAL] save failed", zap.Error(err))
		return err
	}
	return nil
}

// Add stores a new pending appointment and returns its generated id.
func (s *Store) Add(ctx context.Context, req models.AppointmentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	id := newID(now)
	for _, taken := records[id]; taken; _, taken = records[id] {
		id = newID(now)
	}

	records[id] = models.NewLocalAppointment(id, req, now)
	if err := s.SaveAll(ctx, records); err != nil {
		return "", err
	}
	s.logger.Info("✅ [LOCAL] appointment added", zap.String("id", id))
	return id, nil
}

// Insert stores a fully built record under its own id, keeping its flags.
func (s *Store) Insert(ctx context.Context, a models.Appointment) error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", apperr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	records[a.ID] = a
	return s.SaveAll(ctx, records)
}

func (s *Store) Get(ctx context.Context, id string) (models.Appointment, bool) {
	a, ok := s.GetAll(ctx)[id]
	return a, ok
}

func (s *Store) Has(ctx context.Context, id string) bool {
	_, ok := s.Get(ctx, id)
	return ok
}

func (s *Store) Update(ctx context.Context, id string, patch models.AppointmentPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	a, ok := records[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, id)
	}
	patch.Apply(&a, s.now().UTC())
	records[id] = a

	if err := s.SaveAll(ctx, records); err != nil {
		return err
	}
	s.logger.Info("✅ [LOCAL] appointment updated", zap.String("id", id))
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, id)
	}
	delete(records, id)

	if err := s.SaveAll(ctx, records); err != nil {
		return err
	}
	s.logger.Info("✅ [LOCAL] appointment deleted", zap.String("id", id))
	return nil
}

func (s *Store) ListSorted(ctx context.Context) []models.Appointment {
	return s.GetAll(ctx).Sorted()
}

func (s *Store) ListByDate(ctx context.Context, date string) []models.Appointment {
	out := []models.Appointment{}
	for _, a := range s.GetAll(ctx) {
		if a.Date == date {
			out = append(out, a)
		}
	}
	SortAppointments(out)
	return out
}

// Search matches term case-insensitively against client name, phone and notes.
func (s *Store) Search(ctx context.Context, term string) []models.Appointment {
	needle := strings.ToLower(term)
	out := []models.Appointment{}
	for _, a := range s.GetAll(ctx) {
		if strings.Contains(strings.ToLower(a.ClientName), needle) ||
			strings.Contains(strings.ToLower(a.ClientPhone), needle) ||
			strings.Contains(strings.ToLower(a.Notes), needle) {
			out = append(out, a)
		}
	}
	SortAppointments(out)
	return out
}

// Pending returns the records still waiting to be pushed remotely. It reads
// the live blob only; a read error is returned rather than a stale snapshot.
func (s *Store) Pending(ctx context.Context) ([]models.Appointment, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Appointment{}
	for _, a := range records {
		if a.SyncPending {
			out = append(out, a)
		}
	}
	SortAppointments(out)
	return out, nil
}

// newID is rdv_<unix millis>_<9 random characters>.
func newID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "rdv_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}
