// Package mode decides whether the remote store may be used.
package mode

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Network is the optional transport switch of the remote client.
type Network interface {
	EnableNetwork(ctx context.Context) error
	DisableNetwork(ctx context.Context) error
}

// Selector holds the three inputs of the remote/local decision.
//
// locked is fixed at construction. remoteHealthy and online change at
// runtime and are safe for concurrent use.
type Selector struct {
	locked        bool
	remoteHealthy atomic.Bool
	online        atomic.Bool
	network       Network
	logger        *zap.Logger
}

// New starts in the online state. network may be nil.
func New(locked, remoteHealthy bool, network Network, logger *zap.Logger) *Selector {
	s := &Selector{locked: locked, network: network, logger: logger.Named("mode")}
	s.remoteHealthy.Store(remoteHealthy)
	s.online.Store(true)

	switch {
	case locked:
		s.logger.Info("📁 [MODE] local mode forced by environment")
	case remoteHealthy:
		s.logger.Info("🔥 [MODE] remote mode enabled")
	default:
		s.logger.Info("💾 [MODE] local mode (remote store unavailable)")
	}
	return s
}

// RemotePermitted ignores the network state on purpose: offline remote calls
// fail on their own and fall back to the local store.
func (s *Selector) RemotePermitted() bool {
	return !s.locked && s.remoteHealthy.Load()
}

// CanSync additionally requires the network to be online.
func (s *Selector) CanSync() bool {
	return s.RemotePermitted() && s.online.Load()
}

func (s *Selector) Locked() bool        { return s.locked }
func (s *Selector) RemoteHealthy() bool { return s.remoteHealthy.Load() }
func (s *Selector) Online() bool        { return s.online.Load() }

func (s *Selector) SetRemoteHealthy(healthy bool) {
	s.remoteHealthy.Store(healthy)
}

// GoOnline records an online transition and re-enables the remote transport.
// Transport errors are logged, never returned.
func (s *Selector) GoOnline(ctx context.Context) {
	s.online.Store(true)
	s.logger.Info("🌐 [MODE] connection restored")
	if s.network == nil || s.locked {
		return
	}
	if err := s.network.EnableNetwork(ctx); err != nil {
		s.logger.Warn("⚠️ [MODE] enable network failed", zap.Error(err))
	}
}

// GoOffline records an offline transition and disables the remote transport.
func (s *Selector) GoOffline(ctx context.Context) {
	s.online.Store(false)
	s.logger.Info("📴 [MODE] offline")
	if s.network == nil || s.locked {
		return
	}
	if err := s.network.DisableNetwork(ctx); err != nil {
		s.logger.Warn("⚠️ [MODE] disable network failed", zap.Error(err))
	}
}
