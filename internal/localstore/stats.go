package localstore

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"rdv-service/pkg/models"
)

type Stats struct {
	Total     int `json:"total"`
	DueToday  int `json:"dueToday"`
	Paid      int `json:"paidCount"`
	Unpaid    int `json:"unpaidCount"`
	Completed int `json:"completedCount"`
	Pending   int `json:"pendingCount"`
}

// Stats counts records in one pass. "Today" is the current UTC calendar date.
func (s *Store) Stats(ctx context.Context) Stats {
	today := s.now().UTC().Format(models.DateLayout)
	var st Stats
	for _, a := range s.GetAll(ctx) {
		st.Total++
		if a.Date == today {
			st.DueToday++
		}
		switch a.PaymentStatus {
		case models.PaymentPaid:
			st.Paid++
		case models.PaymentUnpaid:
			st.Unpaid++
		}
		if a.Status.Canonical() == models.StatusCompleted {
			st.Completed++
		} else if a.Status.Open() {
			st.Pending++
		}
	}
	return st
}

// Cleanup removes completed appointments dated before now - retentionDays.
// Records with an unparsable date are kept.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for id, a := range records {
		if a.Status.Canonical() != models.StatusCompleted {
			continue
		}
		d, err := time.Parse(models.DateLayout, a.Date)
		if err != nil {
			continue
		}
		if d.Before(cutoff) {
			delete(records, id)
			removed++
		}
	}

	if removed > 0 {
		if err := s.SaveAll(ctx, records); err != nil {
			return 0, err
		}
		s.logger.Info("🧹 [CLEANUP] old appointments removed", zap.Int("removed", removed), zap.Int("retention_days", retentionDays))
	}
	return removed, nil
}

type StorageSize struct {
	Bytes    int    `json:"bytes"`
	Readable string `json:"readable"`
}

// Size reports the serialized size of the primary mapping.
func (s *Store) Size(ctx context.Context) StorageSize {
	raw, err := json.Marshal(s.GetAll(ctx))
	if err != nil {
		return StorageSize{Bytes: 0, Readable: FormatBytes(0, 2)}
	}
	return StorageSize{Bytes: len(raw), Readable: FormatBytes(len(raw), 2)}
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders n with base-1024 units, trimming trailing zeros.
func FormatBytes(n int, decimals int) string {
	if n <= 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	value := float64(n) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(roundTo(value, decimals), 'f', -1, 64) + " " + byteUnits[i]
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
