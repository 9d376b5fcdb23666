// main.go - Admin control tool for the portfolio site
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/karloscodes/cartridge"
	"golang.org/x/term"

	"portfolio/internal/admin"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/seeder"
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given environment and args
	Execute(ctx context.Context, env *Env, args []string) error
}

// Env gives commands lazy access to the database.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Stdin  *os.File
	Stdout io.Writer

	db *database.DBManager
}

// DB opens the database on first use.
func (e *Env) DB() (*database.DBManager, error) {
	if e.db != nil {
		return e.db, nil
	}
	manager := database.NewDBManager(e.Config, e.Logger)
	if err := manager.Init(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.db = manager
	return manager, nil
}

func (e *Env) close() {
	if e.db == nil {
		return
	}
	if err := e.db.Close(); err != nil {
		log.Printf("Warning: Cleanup error: %v", err)
	}
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&StatusCommand{},
	&PruneCommand{},
	&SeedCommand{},
	&HashPasswordCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	cfg := config.GetConfig()
	env := &Env{
		Config: cfg,
		Logger: cartridge.NewLogger(cfg, nil),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	err := cmd.Execute(ctx, env, args)
	env.close()
	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Creates missing tables and indexes" }

func (c *MigrateCommand) Execute(ctx context.Context, env *Env, args []string) error {
	db, err := env.DB()
	if err != nil {
		return err
	}

	log.Println("Running database migrations...")
	if err := db.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// StatusCommand prints row counts per table
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the database path and row counts" }

func (c *StatusCommand) Execute(ctx context.Context, env *Env, args []string) error {
	db, err := env.DB()
	if err != nil {
		return err
	}

	counts, err := database.TableCounts(db.GetConnection())
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	fmt.Fprintf(env.Stdout, "Database: %s\n", env.Config.GetDatabasePath())
	for _, table := range tables {
		fmt.Fprintf(env.Stdout, "  %-16s %d\n", table, counts[table])
	}
	return nil
}

// PruneCommand deletes analytics rows older than a number of days
type PruneCommand struct{}

func (c *PruneCommand) Name() string { return "prune" }
func (c *PruneCommand) Description() string {
	return "Deletes pageviews, events and sessions older than --days N (asks first unless --yes)"
}

func (c *PruneCommand) Execute(ctx context.Context, env *Env, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	days := fs.Int("days", 0, "delete rows older than this many days")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days <= 0 {
		return errors.New("usage: prune --days N [--yes], N must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	if !*yes && term.IsTerminal(int(env.Stdin.Fd())) {
		fmt.Fprintf(env.Stdout, "Delete analytics data recorded before %s? [y/N] ", cutoff.Format(time.RFC3339))
		answer, _ := bufio.NewReader(env.Stdin).ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(env.Stdout, "Aborted")
			return nil
		}
	}

	db, err := env.DB()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := database.Prune(db.Writer(), cutoff, env.Logger)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	fmt.Fprintf(env.Stdout, "Deleted %d pageviews, %d events, %d sessions\n",
		result.Pageviews, result.Events, result.Sessions)
	return nil
}

// SeedCommand fills the database with demo traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Generates demo traffic (--sessions N, --days N); refuses in production"
}

func (c *SeedCommand) Execute(ctx context.Context, env *Env, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("sessions", 200, "number of visits to generate")
	days := fs.Int("days", 30, "spread visits over this many days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if env.Config.IsProduction() {
		return errors.New("refusing to seed a production database")
	}

	db, err := env.DB()
	if err != nil {
		return err
	}
	if err := db.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	s := seeder.NewSeeder(db.Writer(), seeder.Options{
		Sessions: *count,
		Days:     *days,
		Secret:   env.Config.FingerprintSecret,
	}, env.Logger)
	result, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	fmt.Fprintf(env.Stdout, "Seeded %d visits: %d pageviews, %d events\n",
		result.Sessions, result.Pageviews, result.Events)
	return nil
}

// HashPasswordCommand prints a bcrypt hash for PORTFOLIO_ADMIN_PASSWORD_HASH
type HashPasswordCommand struct{}

func (c *HashPasswordCommand) Name() string { return "hash-password" }
func (c *HashPasswordCommand) Description() string {
	return "Reads a password and prints its bcrypt hash"
}

func (c *HashPasswordCommand) Execute(ctx context.Context, env *Env, args []string) error {
	password, err := readPassword(env)
	if err != nil {
		return err
	}

	hash, err := admin.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Stdout, string(hash))
	return nil
}

// readPassword reads a hidden password from a terminal, or one line from a pipe.
func readPassword(env *Env) (string, error) {
	fd := int(env.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(env.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(env.Stdout, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(env.Stdout)
	if err != nil {
		return "", err
	}
	fmt.Fprint(env.Stdout, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(env.Stdout)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, env *Env, args []string) error {
	printUsage(env.Stdout)
	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: portfolioctl [command] [args...]")
	fmt.Fprintln(w, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage(os.Stdout)
	os.Exit(1)
}
