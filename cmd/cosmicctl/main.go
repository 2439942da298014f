// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// cosmicctl is the command line client for the CosmicDeploy platform. It
// keeps a local session (bearer token in a SQLite state file), mirrors the
// server-owned collections through in-memory stores and can follow live
// deployment status over the updates socket.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/cosmicdeploy/cosmicdeploy-go/internal/api"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/config"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/localstate"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/logging"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/model"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/realtime"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/service"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/store"
	"github.com/cosmicdeploy/cosmicdeploy-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const usage = `Usage: cosmicctl <command> [arguments]

Commands:
  login <email>          Log in (password read from stdin or COSMIC_PASSWORD)
  logout                 Log out and discard the local session
  register <email>       Create an account
  whoami                 Show the current session
  sites                  Manage deployments (list, create, start, stop,
                         redeploy, delete, logs)
  reviews                Manage reviews (list, add, delete)
  users                  Admin: manage accounts (list, delete)
  events                 Show the local event log
  watch                  Follow live deployment status until interrupted
  version                Print version information
`

// app bundles everything a subcommand needs.
type app struct {
	cfg      *config.Config
	client   *api.Client
	state    *localstate.Store
	auth     *store.AuthStore
	websites *store.WebsiteStore
	reviews  *store.ReviewStore
	users    *service.UserService
	logger   *slog.Logger
}

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		fmt.Print(usage)
		return nil
	}
	if args[0] == "version" || args[0] == "--version" {
		fmt.Println(version.Info{
			Version:   appVersion,
			GitCommit: appGitCommit,
			BuildTime: appBuildTime,
		})
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := cfg.SlogLevel()
	if cfg.IsDevelopment() && logLevel > slog.LevelDebug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	state, err := localstate.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := state.Close(); err != nil {
			slog.Error("error closing state database", "error", err)
		}
	}()

	// Mirror warnings and errors into the local event log once the state
	// database is available.
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, state))
	slog.SetDefault(logger)

	client := api.New(cfg.APIURL, cfg.RequestTimeout(), logger)
	auth := store.NewAuthStore(service.NewAuthService(client), state, logger)

	a := &app{
		cfg:      cfg,
		client:   client,
		state:    state,
		auth:     auth,
		websites: store.NewWebsiteStore(service.NewWebsiteService(client), auth, logger),
		reviews:  store.NewReviewStore(service.NewReviewService(client), auth, logger),
		users:    service.NewUserService(client),
		logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.auth.Init(ctx); err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	switch args[0] {
	case "login":
		return a.cmdLogin(ctx, args[1:])
	case "logout":
		a.auth.Logout(ctx)
		fmt.Println("Logged out.")
		return nil
	case "register":
		return a.cmdRegister(ctx, args[1:])
	case "whoami":
		return a.cmdWhoami()
	case "sites":
		return a.cmdSites(ctx, args[1:])
	case "reviews":
		return a.cmdReviews(ctx, args[1:])
	case "users":
		return a.cmdUsers(ctx, args[1:])
	case "events":
		return a.cmdEvents(ctx, args[1:])
	case "watch":
		return a.cmdWatch(ctx)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cosmicctl login <email>")
	}
	password := os.Getenv("COSMIC_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	if err := a.auth.Login(ctx, args[0], password); err != nil {
		return err
	}
	user := a.auth.User()
	fmt.Printf("Logged in as %s", user.Email)
	if user.IsAdmin {
		fmt.Print(" (admin)")
	}
	fmt.Println()
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fullName := fs.String("name", "", "full name (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: cosmicctl register [-name NAME] <email>")
	}
	password := os.Getenv("COSMIC_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	payload := model.UserCreate{Email: fs.Arg(0), Password: password}
	if *fullName != "" {
		payload.FullName = fullName
	}
	svc := service.NewAuthService(a.client)
	user, err := svc.Register(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (id %d). Log in with: cosmicctl login %s\n", user.Email, user.ID, user.Email)
	return nil
}

func (a *app) cmdWhoami() error {
	user := a.auth.User()
	if user == nil {
		fmt.Println("Not logged in.")
		return nil
	}
	fmt.Printf("%s (id %d)\n", user.Email, user.ID)
	if user.FullName != nil {
		fmt.Printf("  name:  %s\n", *user.FullName)
	}
	fmt.Printf("  admin: %t\n", user.IsAdmin)
	fmt.Printf("  plan:  active=%t\n", user.HasActivePlan())
	return nil
}

func (a *app) cmdSites(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("sites list", flag.ContinueOnError)
		all := fs.Bool("all", false, "list every deployment (admin)")
		skip := fs.Int("skip", 0, "pagination offset")
		limit := fs.Int("limit", 10, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		a.websites.SetPagination(*skip, *limit)
		var err error
		if *all {
			err = a.websites.FetchAll(ctx)
		} else {
			err = a.websites.FetchMine(ctx)
		}
		if err != nil {
			return err
		}
		return printSites(a.websites.Websites())

	case "create":
		fs := flag.NewFlagSet("sites create", flag.ContinueOnError)
		name := fs.String("name", "", "site name")
		repo := fs.String("repo", "", "git repository URL")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		site, err := a.websites.Create(ctx, model.WebsiteCreate{Name: *name, GitRepo: *repo})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (id %d), status %s\n", site.Name, site.ID, site.Status)
		return nil

	case "start", "stop", "redeploy", "delete", "logs":
		if len(args) != 2 {
			return fmt.Errorf("usage: cosmicctl sites %s <id>", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid site id %q", args[1])
		}
		switch args[0] {
		case "start":
			err = a.websites.Start(ctx, id)
		case "stop":
			err = a.websites.Stop(ctx, id)
		case "redeploy":
			err = a.websites.Redeploy(ctx, id)
		case "delete":
			err = a.websites.Delete(ctx, id)
		case "logs":
			var site *model.Website
			site, err = a.websites.Get(ctx, id)
			if err == nil {
				if site.DeploymentLog != nil {
					fmt.Println(*site.DeploymentLog)
				}
				return nil
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s accepted for site %d\n", args[0], id)
		return nil

	default:
		return fmt.Errorf("unknown sites command %q", args[0])
	}
}

func (a *app) cmdReviews(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("reviews list", flag.ContinueOnError)
		public := fs.Bool("public", false, "list public reviews (no login needed)")
		all := fs.Bool("all", false, "list every review (admin)")
		siteID := fs.Int64("site", 0, "filter by website id (with -all)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		var err error
		switch {
		case *all:
			filter := service.AdminFilter{}
			if *siteID != 0 {
				filter.WebsiteID = siteID
			}
			err = a.reviews.FetchAll(ctx, 0, 0, filter)
		case *public:
			err = a.reviews.FetchPublic(ctx)
		default:
			err = a.reviews.FetchMine(ctx)
		}
		if err != nil {
			return err
		}
		return printReviews(a.reviews.Reviews())

	case "add":
		fs := flag.NewFlagSet("reviews add", flag.ContinueOnError)
		siteID := fs.Int64("site", 0, "website id")
		rating := fs.Int("rating", 0, "rating, 1 to 5")
		content := fs.String("content", "", "review text")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		review, err := a.reviews.Create(ctx, model.ReviewCreate{
			Content:   *content,
			Rating:    *rating,
			WebsiteID: *siteID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Posted review %d (%d stars)\n", review.ID, review.Rating)
		return nil

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: cosmicctl reviews delete <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid review id %q", args[1])
		}
		if err := a.reviews.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted review %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown reviews command %q", args[0])
	}
}

func (a *app) cmdUsers(ctx context.Context, args []string) error {
	token := a.auth.Token()
	if token == "" {
		return errors.New("not logged in")
	}
	if !a.auth.IsAdmin() {
		return errors.New("admin privileges required")
	}
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		users, err := a.users.List(ctx, token, 0, 0)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tACTIVE\tADMIN")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", u.ID, u.Email, u.IsActive, u.IsAdmin)
		}
		return w.Flush()

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: cosmicctl users delete <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		if err := a.users.Delete(ctx, token, id); err != nil {
			return err
		}
		fmt.Printf("Deleted user %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown users command %q", args[0])
	}
}

func (a *app) cmdEvents(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of entries")
	prune := fs.Duration("prune", 0, "drop entries older than this before listing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *prune > 0 {
		pruned, err := a.state.PruneEvents(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d entries.\n", pruned)
	}

	events, err := a.state.RecentEvents(ctx, *limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Printf("%s  %-7s %s  %s\n",
			e.CreatedAt.Local().Format(time.RFC3339), e.Level, e.Message, e.Metadata)
	}
	return nil
}

// cmdWatch opens the updates socket and prints status transitions as they
// arrive, until the context is cancelled by a signal.
func (a *app) cmdWatch(ctx context.Context) error {
	if a.auth.Token() == "" {
		return errors.New("not logged in")
	}
	if err := a.websites.FetchMine(ctx); err != nil {
		return err
	}

	reconnect := rate.Every(a.cfg.ReconnectInterval())
	watcher := realtime.New(a.client, a.auth, a.websites, reconnect, a.logger)
	watcher.Start(ctx)
	defer watcher.Stop()

	// The watcher only dials on session changes; replay the current session
	// so a watch started mid-session connects too.
	a.auth.Refresh()

	fmt.Println("Watching deployment status (Ctrl-C to stop)...")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	last := statusSnapshot(a.websites.Websites())
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			current := statusSnapshot(a.websites.Websites())
			for id, status := range current {
				if last[id] != status {
					fmt.Printf("site %d: %s -> %s\n", id, last[id], status)
				}
			}
			last = current
		}
	}
}

func statusSnapshot(sites []model.Website) map[int64]model.WebsiteStatus {
	snap := make(map[int64]model.WebsiteStatus, len(sites))
	for _, s := range sites {
		snap[s.ID] = s.Status
	}
	return snap
}

func printSites(sites []model.Website) error {
	if len(sites) == 0 {
		fmt.Println("No deployments.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tURL")
	for _, s := range sites {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Status, s.URL)
	}
	return w.Flush()
}

func printReviews(reviews []model.Review) error {
	if len(reviews) == 0 {
		fmt.Println("No reviews.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSITE\tRATING\tCONTENT")
	for _, r := range reviews {
		site := strconv.FormatInt(r.WebsiteID, 10)
		if r.WebsiteName != nil {
			site = *r.WebsiteName
		}
		fmt.Fprintf(w, "%d\t%s\t%d/5\t%s\n", r.ID, site, r.Rating, r.Content)
	}
	return w.Flush()
}
