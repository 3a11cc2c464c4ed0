package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/susylPearl/eod-auto-reporter/internal/config"
	"github.com/susylPearl/eod-auto-reporter/internal/store"
)

// NoteCommand returns the note command
func NoteCommand() *cli.Command {
	return &cli.Command{
		Name:      "note",
		Usage:     "Add a manual update to today's report",
		ArgsUsage: "TEXT",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show pending manual updates",
				Action: runNoteList,
			},
			{
				Name:   "clear",
				Usage:  "Remove all pending manual updates",
				Action: runNoteClear,
			},
		},
		Action: runNoteAdd,
	}
}

func openStore(c *cli.Context) (*store.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return store.Open(cfg.Report.ManualUpdatesPath)
}

func runNoteAdd(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: note text")
	}
	text := strings.Join(c.Args().Slice(), " ")

	st, err := openStore(c)
	if err != nil {
		return err
	}
	if err := st.Append(text); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	fmt.Println("Note added")
	return nil
}

func runNoteList(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}

	updates := st.ManualUpdates()
	if len(updates) == 0 {
		fmt.Println("No pending manual updates")
		return nil
	}
	for _, u := range updates {
		fmt.Printf("- %s\n", u)
	}
	return nil
}

func runNoteClear(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	if err := st.Clear(); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	fmt.Println("Manual updates cleared")
	return nil
}
