package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rdv-service/internal/config"
	"rdv-service/internal/kv"
	"rdv-service/internal/localstore"
	"rdv-service/internal/logging"
	"rdv-service/internal/mode"
	"rdv-service/internal/remote"
	"rdv-service/internal/service"
	rdvsync "rdv-service/internal/sync"
	"rdv-service/utils"
)

// App is the wired object graph shared by every command.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	KV           kv.Store
	Local        *localstore.Store
	Firestore    *remote.FirestoreStore // nil in local mode
	Mode         *mode.Selector
	Appointments *service.AppointmentService
	Auth         *service.AuthGate
	Reconciler   *rdvsync.ReconcileService
}

// Bootstrap loads the configuration and builds every component. A remote
// store or R2 bucket that cannot be reached only degrades the app.
func Bootstrap(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.Local {
		cfg.LocalOnly = true
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open local store (%s): %w", cfg.LocalStore, err)
	}
	logger.Info("✅ [LOCAL] store opened", zap.String("backend", cfg.LocalStore))

	local := localstore.New(store, logger)
	if err := local.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init local store: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, KV: store, Local: local}

	var (
		remoteStore remote.Store
		network     mode.Network
		pinger      remote.Pinger
	)
	switch {
	case cfg.LocalOnly:
		logger.Info("📁 [REMOTE] disabled by LOCAL_ONLY")
	case cfg.FirebaseCredentialsJSON == "" || cfg.FirebaseProjectID == "":
		logger.Warn("⚠️ [REMOTE] Firestore disabled (no FIREBASE_CREDENTIALS_JSON or FIREBASE_PROJECT_ID)")
	default:
		fs, err := remote.NewFirestoreStore(ctx, cfg.FirebaseProjectID, []byte(cfg.FirebaseCredentialsJSON), cfg.FirestoreCollection, logger)
		if err != nil {
			logger.Error("❌ [REMOTE] Firestore init failed, running locally", zap.Error(err))
			break
		}
		logger.Info("✅ [REMOTE] Firestore client initialized", zap.String("collection", cfg.FirestoreCollection))
		app.Firestore = fs
		remoteStore, network, pinger = fs, fs, fs
	}

	app.Mode = mode.New(cfg.LocalOnly, remoteStore != nil, network, logger)
	app.Appointments = service.NewAppointmentService(local, remoteStore, app.Mode, logger)

	app.Auth, err = service.NewAuthGate(store, cfg.AdminPassword, cfg.AdminPasswordHash, cfg.Env, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	var uploader rdvsync.Uploader
	if cfg.R2Enabled() {
		up, err := utils.NewBackupUploader(ctx, utils.BackupR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			logger.Error("❌ [R2] backup uploader init failed", zap.Error(err))
		} else {
			logger.Info("✅ [R2] backup uploader initialized", zap.String("bucket", cfg.R2BucketName))
			uploader = up
		}
	}

	app.Reconciler = rdvsync.NewReconcileService(app.Appointments, pinger, uploader, rdvsync.Options{
		ProbeInterval:   cfg.ProbeInterval,
		RetentionDays:   cfg.RetentionDays,
		MaintenanceHour: cfg.MaintenanceHour,
	}, logger)

	return app, nil
}

func (a *App) Close() {
	if a.Firestore != nil {
		if err := a.Firestore.Close(); err != nil {
			a.Logger.Warn("⚠️ [REMOTE] close failed", zap.Error(err))
		}
	}
	if err := a.KV.Close(); err != nil {
		a.Logger.Warn("⚠️ [LOCAL] close failed", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
