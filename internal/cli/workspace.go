package cli

import (
	"context"
	"fmt"

	"github.com/opsbookhq/opsbook/internal/models"
)

func (a *App) ListWorkspaces(ctx context.Context) error {
	list, err := a.workspaces.List(ctx)
	if err != nil {
		return err
	}
	for _, ws := range list {
		marker := " "
		if a.current != nil && ws.ID == a.current.ID {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s %s  [%s]  %s", marker, ws.Name, ws.Mode, ws.ID))
	}
	return nil
}

func (a *App) UseWorkspace(ctx context.Context, name string) error {
	list, err := a.workspaces.List(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].Name == name || list[i].ID == name {
			a.current = &list[i]
			printlnFn("Using workspace", a.current.Name)
			return nil
		}
	}
	return fmt.Errorf("no workspace named %q", name)
}

// CreateWorkspace makes an online workspace, or an offline one when a folder
// path is given as the second argument.
func (a *App) CreateWorkspace(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: addws <name> [folder]")
	}

	var ws *models.Workspace
	var err error
	if len(args) > 1 {
		ws, err = a.offline.CreateWorkspace(ctx, args[0], args[1])
	} else {
		if a.online == nil {
			return fmt.Errorf("online workspaces need a server session, run login first")
		}
		ws, err = a.online.CreateWorkspace(ctx, args[0], "")
	}
	if err != nil {
		return err
	}
	a.current = ws
	if a.manager != nil {
		a.manager.Notify()
	}
	printlnFn("Created workspace", ws.Name)
	return nil
}

func (a *App) RenameWorkspace(ctx context.Context, name string) error {
	ws, err := a.requireWorkspace()
	if err != nil {
		return err
	}
	s, err := a.strategyFor(ws)
	if err != nil {
		return err
	}
	if err := s.RenameWorkspace(ctx, ws, name); err != nil {
		return err
	}
	if a.manager != nil {
		a.manager.Notify()
	}
	printlnFn("Renamed workspace to", name)
	return nil
}
