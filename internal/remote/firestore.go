// internal/remote/firestore.go
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rdv-service/internal/apperr"
	"rdv-service/pkg/models"
)

// FirestoreStore keeps appointments in one Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
	// disabled gates every data call while the host reports being offline.
	disabled atomic.Bool
}

func NewFirestoreStore(ctx context.Context, projectID string, credentialsJSON []byte, collection string, logger *zap.Logger) (*FirestoreStore, error) {
	conf := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client init failed: %w", err)
	}

	return &FirestoreStore{client: client, collection: collection, logger: logger.Named("firestore")}, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func (f *FirestoreStore) col() *firestore.CollectionRef {
	return f.client.Collection(f.collection)
}

func (f *FirestoreStore) ready() error {
	if f.disabled.Load() {
		return fmt.Errorf("%w: network disabled", apperr.ErrRemoteUnavailable)
	}
	return nil
}

func (f *FirestoreStore) Create(ctx context.Context, a models.Appointment) (string, error) {
	if err := f.ready(); err != nil {
		return "", err
	}
	ref, _, err := f.col().Add(ctx, a)
	if err != nil {
		return "", classify("create", err)
	}
	f.logger.Info("✅ [REMOTE] appointment created", zap.String("id", ref.ID))
	return ref.ID, nil
}

func (f *FirestoreStore) List(ctx context.Context) ([]models.Appointment, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	q := f.col().OrderBy("date", firestore.Asc).OrderBy("time", firestore.Asc)
	return collect("list", q.Documents(ctx))
}

func (f *FirestoreStore) ListByDate(ctx context.Context, date string) ([]models.Appointment, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	q := f.col().Where("date", "==", date).OrderBy("time", firestore.Asc)
	return collect("list by date", q.Documents(ctx))
}

func (f *FirestoreStore) ListAll(ctx context.Context) ([]models.Appointment, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return collect("list all", f.col().Documents(ctx))
}

func (f *FirestoreStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := f.ready(); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	if _, err := f.col().Doc(id).Update(ctx, updates); err != nil {
		return classify("update "+id, err)
	}
	f.logger.Info("✅ [REMOTE] appointment updated", zap.String("id", id))
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, id string) error {
	if err := f.ready(); err != nil {
		return err
	}
	if _, err := f.col().Doc(id).Delete(ctx); err != nil {
		return classify("delete "+id, err)
	}
	f.logger.Info("✅ [REMOTE] appointment deleted", zap.String("id", id))
	return nil
}

// EnableNetwork lifts the offline gate. The Go client has no persistent
// connection to reopen, so this is all there is to it.
func (f *FirestoreStore) EnableNetwork(_ context.Context) error {
	if f.disabled.Swap(false) {
		f.logger.Info("🌐 [REMOTE] network enabled")
	}
	return nil
}

func (f *FirestoreStore) DisableNetwork(_ context.Context) error {
	if !f.disabled.Swap(true) {
		f.logger.Info("📴 [REMOTE] network disabled")
	}
	return nil
}

// Ping reads at most one document. It ignores the offline gate so that the
// connectivity probe can notice the service coming back.
func (f *FirestoreStore) Ping(ctx context.Context) error {
	it := f.col().Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return classify("ping", err)
	}
	return nil
}

func collect(op string, it *firestore.DocumentIterator) ([]models.Appointment, error) {
	defer it.Stop()
	out := []models.Appointment{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(op, err)
		}
		var a models.Appointment
		if err := snap.DataTo(&a); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", apperr.ErrRemoteOperation, snap.Ref.ID, err)
		}
		a.ID = snap.Ref.ID
		out = append(out, a)
	}
	return out, nil
}

// classify maps gRPC failures onto the shared error kinds.
func classify(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s: %v", apperr.ErrNotFound, op, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", apperr.ErrRemoteUnavailable, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", apperr.ErrRemoteOperation, op, err)
	}
}
