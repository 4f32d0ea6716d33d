package cli

import (
	"context"
	"fmt"
)

func (a *App) CreateFolder(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mkdir <name> [parent]")
	}
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	parent := ""
	if len(args) > 1 {
		parent = args[1]
	}
	folderID, err := s.CreateFolder(ctx, ws, parent, args[0])
	if err != nil {
		return err
	}
	a.notifySync()
	printlnFn("Created folder", folderID)
	return nil
}

func (a *App) RenameFolder(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: renamedir <folder> <name>")
	}
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	if err := s.RenameFolder(ctx, ws, args[0], args[1]); err != nil {
		return err
	}
	a.notifySync()
	return nil
}

func (a *App) DeleteFolder(ctx context.Context, folderID string) error {
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	if err := s.DeleteFolder(ctx, ws, folderID); err != nil {
		return err
	}
	a.notifySync()
	return nil
}

// MoveItems moves the listed items under a new parent: mv <parent> <id>...
// Use "" or "." as parent for the workspace root.
func (a *App) MoveItems(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: mv <parent> <id>...")
	}
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	parent := args[0]
	if parent == "." {
		parent = ""
	}
	if err := s.MoveItems(ctx, ws, args[1:], parent, 0); err != nil {
		return err
	}
	a.notifySync()
	return nil
}

func (a *App) notifySync() {
	if a.manager != nil {
		a.manager.Notify()
	}
}
