package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rdv-service/internal/apperr"
)

const BackupVersion = "1.0"

// Backup is the snapshot kept under BackupKey.
type Backup struct {
	Data      Records   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Export is the document produced by Export and accepted by Import.
type Export struct {
	Data         Records   `json:"data"`
	ExportDate   time.Time `json:"exportDate"`
	TotalRecords int       `json:"totalRecords"`
}

// CreateBackup snapshots the live mapping. A failed read leaves the existing
// snapshot untouched.
func (s *Store) CreateBackup(ctx context.Context) error {
	data, err := s.load(ctx)
	if err != nil {
		s.logger.Error("❌ [BACKUP] read failed, snapshot kept", zap.Error(err))
		return err
	}
	backup := Backup{
		Data:      data,
		Timestamp: s.now().UTC(),
		Version:   BackupVersion,
	}
	raw, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSerialization, err)
	}
	if err := s.kv.Set(ctx, BackupKey, raw); err != nil {
		s.logger.Error("❌ [BACKUP] create failed", zap.Error(err))
		return err
	}
	s.logger.Info("💾 [BACKUP] snapshot created", zap.Int("records", len(backup.Data)))
	return nil
}

// RestoreFromBackup returns the backup mapping, or an empty one when the
// backup is absent or unreadable.
func (s *Store) RestoreFromBackup(ctx context.Context) Records {
	raw, found, err := s.kv.Get(ctx, BackupKey)
	if err != nil {
		s.logger.Error("❌ [BACKUP] read failed", zap.Error(err))
		return Records{}
	}
	if !found {
		return Records{}
	}
	var backup Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		s.logger.Error("❌ [BACKUP] corrupt snapshot", zap.Error(err))
		return Records{}
	}
	s.logger.Warn("🔄 [BACKUP] restoring from snapshot", zap.Time("timestamp", backup.Timestamp))
	if backup.Data == nil {
		return Records{}
	}
	return backup.Data
}

// Export serializes the whole mapping as indented JSON.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(Export{
		Data:         data,
		ExportDate:   s.now().UTC(),
		TotalRecords: len(data),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSerialization, err)
	}
	return raw, nil
}

// Import replaces the stored mapping with blob. Both the Export document and
// a bare id->record mapping are accepted. Nothing is written on error.
func (s *Store) Import(ctx context.Context, blob []byte) (int, error) {
	records, err := decodeImport(blob)
	if err != nil {
		s.logger.Error("❌ [IMPORT] rejected", zap.Error(err))
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SaveAll(ctx, records); err != nil {
		return 0, err
	}
	s.logger.Info("✅ [IMPORT] data imported", zap.Int("records", len(records)))
	return len(records), nil
}

func decodeImport(blob []byte) (Records, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(blob, &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", apperr.ErrInvalidImport)
	}

	payload := json.RawMessage(blob)
	if data, ok := top["data"]; ok && isObject(data) {
		payload = data
	}

	var records Records
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidImport, err)
	}
	if records == nil {
		records = Records{}
	}
	for id, a := range records {
		if a.ID == "" {
			a.ID = id
			records[id] = a
		}
	}
	return records, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
