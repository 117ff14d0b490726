// Package remote talks to the hosted document store holding the
// authoritative copy of appointments.
package remote

import (
	"context"

	"rdv-service/pkg/models"
)

// Store is the remote appointment collection.
type Store interface {
	// Create adds a document and returns the id assigned by the store.
	Create(ctx context.Context, a models.Appointment) (string, error)
	// List returns every document ordered by date then time.
	List(ctx context.Context) ([]models.Appointment, error)
	// ListByDate returns the documents of one day ordered by time.
	ListByDate(ctx context.Context, date string) ([]models.Appointment, error)
	// ListAll returns the whole collection in no particular order.
	ListAll(ctx context.Context) ([]models.Appointment, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// Network is implemented by stores whose transport can be switched on and off.
type Network interface {
	EnableNetwork(ctx context.Context) error
	DisableNetwork(ctx context.Context) error
}

// Pinger is implemented by stores that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
