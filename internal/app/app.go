// Package app wires the sync daemon together: databases, key stores, the
// cipher box, the sync engine and its periodic loops, plus graceful shutdown
// on OS signals.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/remindsafe/internal/config"
	"github.com/dmitrijs2005/remindsafe/internal/cryptox"
	"github.com/dmitrijs2005/remindsafe/internal/keyring"
	"github.com/dmitrijs2005/remindsafe/internal/logging"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/metadata"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/reminders"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/remote"
	"github.com/dmitrijs2005/remindsafe/internal/storage"
	"github.com/dmitrijs2005/remindsafe/internal/syncx"
)

type App struct {
	config *config.Config
	logger logging.Logger

	localDB  *sql.DB
	remoteDB *sql.DB

	Engine *syncx.Engine
	Locks  *syncx.LockManager
	Queue  *syncx.RetryQueue

	LocalKeys  *keyring.SQLiteStore
	RemoteKeys *keyring.S3Store
	MemoryKeys *keyring.MemoryStore

	Accounts *remote.PostgresAccountRepository
	Audit    *remote.PostgresAuditRepository
	Local    *reminders.SQLiteRepository
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	localDB, err := storage.OpenLocal(ctx, cfg.LocalDatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("local db init error: %w", err)
	}

	remoteDB, err := storage.OpenRemote(ctx, cfg.RemoteDatabaseDSN)
	if err != nil {
		localDB.Close()
		return nil, fmt.Errorf("remote db init error: %w", err)
	}

	escrow, err := keyring.NewS3Store(ctx, keyring.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		localDB.Close()
		remoteDB.Close()
		return nil, fmt.Errorf("key escrow init error: %w", err)
	}

	localKeys := keyring.NewSQLiteStore(localDB)
	memoryKeys := keyring.NewMemoryStore()

	box := cryptox.NewAESBox(&keyring.MasterKeySource{Store: localKeys})

	locks := syncx.NewLockManager(cfg.LockTimeout)
	queue := syncx.NewRetryQueue(syncx.RetryQueueConfig{
		BaseDelay:    cfg.RetryBaseDelay,
		MaxRetries:   cfg.RetryMaxRetries,
		MaxQueueSize: cfg.RetryMaxQueueSize,
		MaxAge:       cfg.RetryQueueMaxAge,
	}, logger)
	helper := syncx.NewEncryptionHelper(box, queue, logger)

	localRepo := reminders.NewSQLiteRepository(localDB)
	metaRepo := metadata.NewSQLiteRepository(localDB)
	remoteRepo := remote.NewPostgresReminderRepository(remoteDB)

	engine := syncx.NewEngine(localRepo, remoteRepo, metaRepo, locks, helper, queue,
		syncx.EngineConfig{UserID: cfg.UserID}, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		localDB:    localDB,
		remoteDB:   remoteDB,
		Engine:     engine,
		Locks:      locks,
		Queue:      queue,
		LocalKeys:  localKeys,
		RemoteKeys: escrow,
		MemoryKeys: memoryKeys,
		Accounts:   remote.NewPostgresAccountRepository(remoteDB),
		Audit:      remote.NewPostgresAuditRepository(remoteDB),
		Local:      localRepo,
	}, nil
}

func (a *App) Logger() logging.Logger { return a.logger }

func (a *App) Close() {
	if a.localDB != nil {
		a.localDB.Close()
	}
	if a.remoteDB != nil {
		a.remoteDB.Close()
	}
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the periodic sync and retry loops and blocks until a signal or
// ctx cancellation stops them.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting sync daemon",
		"user_id", a.config.UserID, "sync_interval", a.config.SyncInterval.String())

	a.initSignalHandler(cancelFunc)

	if err := a.Engine.Run(ctx, a.config.SyncInterval, a.config.RetryInterval); err != nil && ctx.Err() == nil {
		a.logger.Error(ctx, "engine stopped", "error", err)
	}
	a.logger.Info(ctx, "sync daemon stopped")
}
