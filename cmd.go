package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chxlky/event-calendar/database"
	"github.com/chxlky/event-calendar/integrations"
	"github.com/chxlky/event-calendar/internal/calendar"
	"github.com/chxlky/event-calendar/internal/config"
	"github.com/chxlky/event-calendar/internal/grid"
	"github.com/chxlky/event-calendar/internal/logger"
	"github.com/chxlky/event-calendar/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func SetupCommands(a *App) *cobra.Command {
	// root command; with no subcommand it serves
	rootCmd := &cobra.Command{
		Use:           "event-calendar",
		Short:         "Month calendar service with event storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the TOML config file (default ./config.toml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}

	// command for printing a month grid to the terminal
	gridCmd := &cobra.Command{
		Use:   "grid [year] [month]",
		Short: "Print a month grid with event counts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonthArgs(args)
			if err != nil {
				return err
			}
			return a.withEvents(func(events *database.EventRepository) error {
				m, err := calendar.Load(cmd.Context(), events, year, month, time.Now().In(a.cfg.Location()))
				if err != nil {
					return err
				}
				printGrid(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [year] [month]",
		Short: "Write a month as iCalendar to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonthArgs(args)
			if err != nil {
				return err
			}
			return a.withEvents(func(events *database.EventRepository) error {
				list, err := events.FindByMonth(cmd.Context(), year, time.Month(month), a.cfg.Location())
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), integrations.ExportICS(list, time.Now(), a.cfg.Location()))
				return err
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import the events of an .ics file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			parsed, err := integrations.ParseICS(f, a.cfg.Location())
			if err != nil {
				return err
			}
			return a.withEvents(func(events *database.EventRepository) error {
				imported := importEvents(cmd.Context(), events, parsed)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d events\n", imported, len(parsed))
				return nil
			})
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	return rootCmd
}

func (a *App) setup() error {
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = log
	zap.ReplaceGlobals(log)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		zap.L().Error("Error reading config", zap.Error(err))
		return err
	}
	a.cfg = cfg
	return nil
}

// withEvents opens the configured database for a one-shot command.
func (a *App) withEvents(fn func(events *database.EventRepository) error) error {
	db, err := database.Open(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	return fn(database.NewEventRepository(db))
}

func parseYearMonthArgs(args []string) (int, int, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q", args[1])
	}
	if err := grid.ValidMonth(month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

// importEvents stores every parsed event it can and returns how many were saved.
func importEvents(ctx context.Context, events *database.EventRepository, parsed []*models.Event) int {
	imported := 0
	for _, e := range parsed {
		if err := events.Save(ctx, e); err != nil {
			zap.L().Warn("Skipping event", zap.String("title", e.Title), zap.Error(err))
			continue
		}
		imported++
	}
	return imported
}

// printGrid writes the month as a Monday-first table; days with events carry
// their count in brackets and today is starred.
func printGrid(w io.Writer, m *calendar.Month) {
	fmt.Fprintf(w, "%s\n", m.CurrentDate.Format("January 2006"))
	fmt.Fprintln(w, strings.Join([]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, "\t"))

	for _, week := range m.Weeks {
		cells := make([]string, len(week))
		for i, cell := range week {
			if cell == nil {
				continue
			}
			label := strconv.Itoa(cell.Day)
			if n := len(cell.Events); n > 0 {
				label += fmt.Sprintf("[%d]", n)
			}
			if cell.IsToday {
				label += "*"
			}
			cells[i] = label
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}
