package cli

import (
	"context"
	"fmt"
)

func (a *App) ListRunbooks(ctx context.Context) error {
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	list, err := a.runbooks.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return err
	}
	for _, rb := range list {
		remote := ""
		if rb.Remote != nil {
			remote = "  -> " + rb.Remote.Slug
		}
		printlnFn(fmt.Sprintf("%s  %s%s", rb.ID, rb.Name, remote))
	}
	return nil
}

func (a *App) CreateRunbook(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: addrb <name> [folder]")
	}
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	folder := ""
	if len(args) > 1 {
		folder = args[1]
	}
	rb, err := s.CreateRunbook(ctx, ws, args[0], folder)
	if err != nil {
		return err
	}
	a.notifySync()
	printlnFn("Created runbook", rb.ID)
	return nil
}

func (a *App) DeleteRunbook(ctx context.Context, id string) error {
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	if err := s.DeleteRunbook(ctx, ws, id); err != nil {
		return err
	}
	a.notifySync()
	return nil
}

// SyncRunbook reconciles one runbook with the server on demand.
func (a *App) SyncRunbook(ctx context.Context, id string) error {
	if a.synchronizer == nil {
		return fmt.Errorf("sync needs a server session, run login first")
	}
	workspaceID := ""
	if a.current != nil {
		workspaceID = a.current.ID
	}
	action, err := a.synchronizer.Sync(ctx, id, workspaceID, a.config.User)
	if err != nil {
		return err
	}
	printlnFn("Sync result:", string(action))
	return nil
}

// Sync triggers an immediate operation drain pass.
func (a *App) Sync(ctx context.Context) error {
	if a.manager == nil {
		return fmt.Errorf("sync needs a server session, run login first")
	}
	a.manager.Notify()
	printlnFn("Drain requested.")
	return nil
}
