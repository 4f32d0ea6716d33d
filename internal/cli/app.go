// Package cli is the interactive shell over the sync engine: a thin REPL
// dispatching to the workspace strategies, the runbook synchronizer and the
// sync manager.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/backend"
	"github.com/opsbookhq/opsbook/internal/config"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/sharedstate"
	"github.com/opsbookhq/opsbook/internal/store"
	"github.com/opsbookhq/opsbook/internal/store/oplog"
	"github.com/opsbookhq/opsbook/internal/store/runbooks"
	"github.com/opsbookhq/opsbook/internal/store/snapshots"
	"github.com/opsbookhq/opsbook/internal/store/workspaces"
	"github.com/opsbookhq/opsbook/internal/strategy"
	"github.com/opsbookhq/opsbook/internal/syncer"
)

type App struct {
	config *config.Config
	db     *sql.DB
	log    logging.Logger
	reader *bufio.Reader

	workspaces workspaces.Repository
	runbooks   runbooks.Repository
	snapshots  snapshots.Repository
	oplog      oplog.Repository
	shared     *sharedstate.Registry
	offline    *strategy.Offline

	// Populated by login, nil before it.
	api          api.Client
	online       *strategy.Online
	synchronizer *syncer.Synchronizer
	manager      *syncer.Manager
	stopSync     context.CancelFunc

	current *models.Workspace
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewDefault()

	db, err := store.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, err
	}

	wsRepo := workspaces.NewSQLiteRepository(db)
	rbRepo := runbooks.NewSQLiteRepository(db)

	return &App{
		config:     c,
		db:         db,
		log:        log,
		reader:     bufio.NewReader(os.Stdin),
		workspaces: wsRepo,
		runbooks:   rbRepo,
		snapshots:  snapshots.NewSQLiteRepository(db),
		oplog:      oplog.NewSQLiteRepository(db),
		shared:     sharedstate.NewRegistry(log),
		offline:    strategy.NewOffline(backend.NewFSBackend(log), wsRepo, rbRepo, log),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) Close() {
	if a.stopSync != nil {
		a.stopSync()
	}
	_ = a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.api != nil
}

func (a *App) status() string {
	parts := []string{"offline"}
	if a.isLoggedIn() {
		parts[0] = "online"
	}
	if a.current != nil {
		parts = append(parts, a.current.Name)
	}
	return strings.Join(parts, " ")
}

// Login prompts for an access token, builds the authenticated client and
// starts the background operation drain.
func (a *App) Login(ctx context.Context) error {
	token, err := GetToken(os.Stdout)
	if err != nil {
		return err
	}

	client := api.NewHTTPClient(a.config.ServerURL, string(token), nil, a.log)
	a.api = client
	a.online = strategy.NewOnline(a.db, a.shared, a.adapterFactory(string(token)), client, a.log)
	a.synchronizer = syncer.NewSynchronizer(client, a.workspaces, a.runbooks, a.log)
	a.manager = syncer.NewManager(a.oplog, client, a.config.DrainInterval, a.log)

	syncCtx, cancel := context.WithCancel(context.Background())
	a.stopSync = cancel
	go func() {
		if err := a.manager.Run(syncCtx); err != nil && syncCtx.Err() == nil {
			a.log.Error(syncCtx, "sync manager stopped", "error", err)
		}
	}()

	return a.bootstrapWorkspaces(ctx)
}

func (a *App) Logout(ctx context.Context) error {
	if a.stopSync != nil {
		a.stopSync()
		a.stopSync = nil
	}
	a.api = nil
	a.online = nil
	a.synchronizer = nil
	a.manager = nil
	printlnFn("Logged out.")
	return nil
}

// adapterFactory wires workspace folder documents to the server's
// shared-state channel.
func (a *App) adapterFactory(token string) strategy.AdapterFactory {
	wsURL := strings.Replace(a.config.ServerURL, "http", "ws", 1) + "/api/sharedstate"
	return func(workspaceID string) sharedstate.Adapter {
		return sharedstate.NewWSAdapter(wsURL, strategy.FolderKey(workspaceID), token, a.log)
	}
}

// bootstrapWorkspaces materializes local rows for the server's workspace
// list. An unreachable server is not an error; local state carries on.
func (a *App) bootstrapWorkspaces(ctx context.Context) error {
	remote, err := a.api.GetWorkspaces(ctx)
	if err != nil {
		a.log.Warn(ctx, "cannot list remote workspaces, continuing with local state", "error", err)
		return nil
	}
	for _, rw := range remote {
		existing, err := a.workspaces.GetByID(ctx, rw.ID)
		if err == nil {
			if existing.Name != rw.Name {
				_ = a.workspaces.Rename(ctx, rw.ID, rw.Name)
			}
			continue
		}
		ws := &models.Workspace{
			ID:          rw.ID,
			Name:        rw.Name,
			Mode:        models.ModeOnline,
			OrgID:       rw.OrgID,
			Permissions: rw.Permissions,
		}
		if err := a.workspaces.CreateOrUpdate(ctx, ws); err != nil {
			return fmt.Errorf("failed to materialize workspace %s: %w", rw.ID, err)
		}
	}
	return nil
}

// strategyFor picks the variant for the current workspace.
func (a *App) strategyFor(ws *models.Workspace) (strategy.Strategy, error) {
	if ws.Online() && a.online == nil {
		return nil, fmt.Errorf("workspace %q needs a server session, run login first", ws.Name)
	}
	return strategy.Select(ws, a.online, a.offline), nil
}

func (a *App) requireWorkspace() (*models.Workspace, error) {
	if a.current == nil {
		return nil, fmt.Errorf("no workspace selected, run use <name> first")
	}
	return a.current, nil
}
