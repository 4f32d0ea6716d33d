package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. The real App type
// satisfies it; tests provide a stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ListWorkspaces(ctx context.Context) error
	UseWorkspace(ctx context.Context, name string) error
	CreateWorkspace(ctx context.Context, args []string) error
	RenameWorkspace(ctx context.Context, name string) error
	CreateFolder(ctx context.Context, args []string) error
	RenameFolder(ctx context.Context, args []string) error
	DeleteFolder(ctx context.Context, folderID string) error
	MoveItems(ctx context.Context, args []string) error
	ListRunbooks(ctx context.Context) error
	CreateRunbook(ctx context.Context, args []string) error
	DeleteRunbook(ctx context.Context, id string) error
	Publish(ctx context.Context, args []string) error
	Unpublish(ctx context.Context, args []string) error
	SyncRunbook(ctx context.Context, id string) error
	Sync(ctx context.Context) error
}

// runREPL reads a line, parses the first token as the command and dispatches
// to a. The loop exits on scanner EOF or "exit"/"quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ob> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printHelp(a.isLoggedIn())

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "ws", "workspaces":
			err = a.ListWorkspaces(ctx)

		case "use":
			err = withOneArg(args, "use <workspace>", func(name string) error {
				return a.UseWorkspace(ctx, name)
			})

		case "addws":
			err = a.CreateWorkspace(ctx, args)

		case "renamews":
			err = withOneArg(args, "renamews <name>", func(name string) error {
				return a.RenameWorkspace(ctx, name)
			})

		case "mkdir":
			err = a.CreateFolder(ctx, args)

		case "renamedir":
			err = a.RenameFolder(ctx, args)

		case "rmdir":
			err = withOneArg(args, "rmdir <folder>", func(id string) error {
				return a.DeleteFolder(ctx, id)
			})

		case "mv":
			err = a.MoveItems(ctx, args)

		case "rb", "runbooks":
			err = a.ListRunbooks(ctx)

		case "addrb":
			err = a.CreateRunbook(ctx, args)

		case "rmrb":
			err = withOneArg(args, "rmrb <runbook>", func(id string) error {
				return a.DeleteRunbook(ctx, id)
			})

		case "publish":
			err = a.Publish(ctx, args)

		case "unpublish":
			err = a.Unpublish(ctx, args)

		case "syncrb":
			err = withOneArg(args, "syncrb <runbook>", func(id string) error {
				return a.SyncRunbook(ctx, id)
			})

		case "sync":
			err = a.Sync(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err.Error())
		}
	}
}

func withOneArg(args []string, usage string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", usage)
	}
	return fn(args[0])
}

func printHelp(loggedIn bool) {
	printlnFn("Workspaces: ws, use <name>, addws <name> [folder], renamews <name>")
	printlnFn("Folders:    mkdir <name> [parent], renamedir <folder> <name>, rmdir <folder>, mv <parent> <id>...")
	printlnFn("Runbooks:   rb, addrb <name> [folder], rmrb <id>, syncrb <id>")
	printlnFn("Snapshots:  publish <runbook> <tag>, unpublish <runbook> <tag>")
	if loggedIn {
		printlnFn("Session:    sync, logout, exit")
	} else {
		printlnFn("Session:    login, exit")
	}
}
