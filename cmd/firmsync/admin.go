package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/firmsync/tenantcore/internal/adapter/dbaas"
	"github.com/firmsync/tenantcore/internal/adapter/postgres"
	"github.com/firmsync/tenantcore/internal/config"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/secrets"
	"github.com/firmsync/tenantcore/internal/service"
)

// runAdmin dispatches operator subcommands. These run against the central
// store directly, without going through the HTTP surface.
func runAdmin(args []string) {
	if err := dispatchAdmin(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func dispatchAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-firm":
		return runCreateFirm(args[1:])
	case "list-firms":
		return runListFirms(args[1:])
	case "provision":
		return runProvision(args[1:])
	case "create-user":
		return runCreateUser(args[1:])
	case "ghost-start":
		return runGhostStart(args[1:])
	case "ghost-end":
		return runGhostEnd(args[1:])
	case "migrate-fleet":
		return runMigrateFleet(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: firmsync <command> [options]

Commands:
  create-firm      Register a new firm
  list-firms       List all firms with their provisioning state
  provision        Provision the database for a firm
  create-user      Create a user in the central directory
  ghost-start      Start a ghost session for a platform admin
  ghost-end        End a ghost session
  migrate-fleet    Run pending tenant migrations on every ready firm
  help             Show this help message

Running without a command starts the HTTP server.

Examples:
  firmsync create-firm --name "Acme Legal" --code acme --plan professional
  firmsync provision --firm-id 4f1c...
  firmsync ghost-start --admin-id 77ab... --firm-id 4f1c... --reason "support ticket 4411"
  firmsync migrate-fleet
`)
}

type adminDeps struct {
	cfg     *config.Config
	store   *postgres.Store
	sealer  *secrets.Sealer
	manager *service.ConnectionManager
	ghosts  *service.GhostService
	firms   *service.FirmService
	cleanup func()
}

func loadAdminDeps(needProvisionerKey bool) (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.CentralDB)
	if err != nil {
		return nil, fmt.Errorf("connect to central database: %w", err)
	}

	sealer, err := secrets.NewSealer(cfg.Secrets.Key)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("secrets: %w", err)
	}

	// The DBaaS API key may be withheld from config on operator machines;
	// prompt for it so it never lands in shell history.
	if needProvisionerKey && cfg.Provisioner.APIKey == "" {
		key, err := promptSecret("DBaaS API key: ")
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("read api key: %w", err)
		}
		cfg.Provisioner.APIKey = key
	}

	store := postgres.NewStore(pool)
	manager := service.NewConnectionManager(
		store,
		postgres.NewTenantDialer(cfg.TenantPool),
		postgres.RunTenantBaseline,
		dbaas.NewClient(cfg.Provisioner),
		sealer,
		cfg.Migrate.MaxParallel,
		log,
		nil,
	)

	return &adminDeps{
		cfg:     cfg,
		store:   store,
		sealer:  sealer,
		manager: manager,
		ghosts:  service.NewGhostService(store, cfg.Ghost.TTL, log),
		firms:   service.NewFirmService(store, nil, log),
		cleanup: func() {
			manager.CloseAll()
			pool.Close()
		},
	}, nil
}

func runCreateFirm(args []string) error {
	fs := flag.NewFlagSet("create-firm", flag.ContinueOnError)
	name := fs.String("name", "", "firm display name (required)")
	code := fs.String("code", "", "firm code, used in URLs (required)")
	plan := fs.String("plan", "starter", "subscription plan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *code == "" {
		return fmt.Errorf("--name and --code are required")
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	f, err := deps.firms.Create(context.Background(), firm.CreateRequest{
		Name: *name,
		Code: *code,
		Plan: firm.Plan(*plan),
	})
	if err != nil {
		return fmt.Errorf("create firm: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Firm created: %s (id=%s, code=%s)\n", f.Name, f.ID, f.Code)
	fmt.Fprintf(os.Stderr, "Run 'firmsync provision --firm-id %s' to provision its database.\n", f.ID)
	return nil
}

func runListFirms(args []string) error {
	fs := flag.NewFlagSet("list-firms", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	firms, err := deps.firms.List(context.Background())
	if err != nil {
		return fmt.Errorf("list firms: %w", err)
	}
	if len(firms) == 0 {
		fmt.Println("No firms registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tSTATUS\tPLAN\tPROVISION\tDATABASE")
	for _, f := range firms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Code, f.Name, f.Status, f.Plan, f.ProvisionState, f.DatabaseName)
	}
	return w.Flush()
}

func runProvision(args []string) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	firmID := fs.String("firm-id", "", "firm ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *firmID == "" {
		return fmt.Errorf("--firm-id is required")
	}

	deps, err := loadAdminDeps(true)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	f, err := deps.manager.ProvisionFirmDatabase(context.Background(), *firmID)
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Provisioned %s: database %s on %s (state=%s)\n",
		f.Code, f.DatabaseName, f.DatabaseHost, f.ProvisionState)
	return nil
}

func runCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name (required)")
	role := fs.String("role", string(user.RoleAttorney), "role (paralegal, attorney, firm_admin, platform_admin, super_admin)")
	firmID := fs.String("firm-id", "", "home firm ID (required for firm-scoped roles)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return fmt.Errorf("--email and --name are required")
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	u, err := deps.firms.CreateUser(context.Background(), user.CreateRequest{
		Email:  *email,
		Name:   *name,
		Role:   user.Role(*role),
		FirmID: *firmID,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s, role=%s)\n", u.Email, u.ID, u.Role)
	return nil
}

func runGhostStart(args []string) error {
	fs := flag.NewFlagSet("ghost-start", flag.ContinueOnError)
	adminID := fs.String("admin-id", "", "platform admin user ID (required)")
	firmID := fs.String("firm-id", "", "target firm ID (required)")
	reason := fs.String("reason", "", "audit reason (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *adminID == "" || *firmID == "" || *reason == "" {
		return fmt.Errorf("--admin-id, --firm-id and --reason are required")
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	s, err := deps.ghosts.Start(context.Background(), ghost.StartRequest{
		AdminID:      *adminID,
		TargetFirmID: *firmID,
		Reason:       *reason,
	})
	if err != nil {
		return fmt.Errorf("start ghost session: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ghost session %s active until %s\n", s.ID, s.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func runGhostEnd(args []string) error {
	fs := flag.NewFlagSet("ghost-end", flag.ContinueOnError)
	adminID := fs.String("admin-id", "", "platform admin user ID (required)")
	firmID := fs.String("firm-id", "", "target firm ID (empty ends all of the admin's sessions)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *adminID == "" {
		return fmt.Errorf("--admin-id is required")
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	ctx := context.Background()
	if *firmID == "" {
		if err := deps.ghosts.EndAllForAdmin(ctx, *adminID); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "All ghost sessions ended.")
		return nil
	}
	if err := deps.ghosts.End(ctx, *adminID, *firmID); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Ghost session ended.")
	return nil
}

func runMigrateFleet(args []string) error {
	fs := flag.NewFlagSet("migrate-fleet", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps(false)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	res, err := deps.manager.RunMigrationOnAllFirms(context.Background())
	if err != nil {
		return fmt.Errorf("fleet migration: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Fleet migration: %d firms, %d succeeded, %d failed\n",
		res.Total, res.Succeeded, res.Failed)
	for code, detail := range res.Failures {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", code, detail)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d firms failed to migrate", res.Failed)
	}
	return nil
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
