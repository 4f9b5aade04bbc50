package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/watchloop/monitor/internal/registry"
	"github.com/watchloop/monitor/internal/sqliteregistry"
)

func openStore(dbFlag string) (*sqliteregistry.Store, error) {
	dbPath := dbFlag
	if dbPath == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		dbPath = defaultDBPath(dataDir)
	}
	return sqliteregistry.Open(dbPath)
}

func handleAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "session name")
	pane := fs.String("pane", "", "pane id (tmux pane id, or an arbitrary id for the pty driver)")
	dbPath := fs.String("db", "", "registry database path")
	fs.Parse(args)

	if *name == "" || *pane == "" {
		fmt.Fprintln(os.Stderr, "monitord add: --name and --pane are required")
		os.Exit(1)
	}

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord add: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	id, err := store.Create(context.Background(), *name, *pane)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord add: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created session %s (%s)\n", id, *name)
}

func handleList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "", "registry database path")
	fs.Parse(args)

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord list: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord list: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("no sessions")
		return
	}
	for _, rec := range records {
		fmt.Printf("%-36s %-20s %-10s pane=%s\n", rec.ID, rec.Name, rec.Status, rec.PaneID)
	}
}

func handleRemove(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	dbPath := fs.String("db", "", "registry database path")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "monitord remove: a session id or name is required")
		os.Exit(1)
	}

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord remove: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	id, err := resolveSessionID(store, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord remove: %v\n", err)
		os.Exit(1)
	}
	if err := store.Delete(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "monitord remove: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed %s\n", id)
}

func handleAttach(args []string) {
	fs := flag.NewFlagSet("attach", flag.ExitOnError)
	dbPath := fs.String("db", "", "registry database path")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "monitord attach: a session name is required")
		os.Exit(1)
	}

	store, err := openStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord attach: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	rec, err := registry.FindByName(context.Background(), store, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord attach: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\t%s\t%s\n", rec.ID, rec.Name, rec.PaneID)
}

// resolveSessionID accepts either a literal session ID or a fuzzy name and
// returns the ID, so remove works the same way whether the operator copies
// an ID from `list` or just types the name they remember.
func resolveSessionID(store *sqliteregistry.Store, query string) (string, error) {
	if _, err := store.Get(context.Background(), query); err == nil {
		return query, nil
	}
	rec, err := registry.FindByName(context.Background(), store, query)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}
