package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/bootstrap"
	"github.com/yigit/unilife/internal/config"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/helpers"
	"github.com/yigit/unilife/internal/pkg/metrics"
	"github.com/yigit/unilife/internal/pkg/prefs"
)

const UnilifeCtlVersion = "0.1.0"

func main() {
	usage := `UniLife control.

The config path defaults to $UNILIFE_CONFIG, then configs/config.yaml.

Usage:
    unilifectl migrate [--config=<path>]
    unilifectl token <uid> <email> [--name=<name>] [--ttl=<duration>] [--config=<path>]
    unilifectl summarize <file> [--config=<path>]
    unilifectl plan <topic> [--config=<path>]
    unilifectl theme [light|dark] [--config=<path>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<path>      Configuration file.
    --name=<name>        Display name carried in the token.
    --ttl=<duration>     Token lifetime, for example 2h. Defaults to auth.tokenTTL.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], UnilifeCtlVersion)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate_, _ := opts.Bool("migrate"); migrate_ {
		err = migrate(ctx, opts)
	} else if token_, _ := opts.Bool("token"); token_ {
		err = token(opts)
	} else if summarize_, _ := opts.Bool("summarize"); summarize_ {
		err = summarize(ctx, opts)
	} else if plan_, _ := opts.Bool("plan"); plan_ {
		err = plan(ctx, opts)
	} else if theme_, _ := opts.Bool("theme"); theme_ {
		err = theme(opts)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "unilifectl: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts docopt.Opts) (*config.Config, zerolog.Logger, error) {
	path, _ := opts.String("--config")
	if path == "" {
		path = config.GetEnv("UNILIFE_CONFIG", bootstrap.DefaultConfigPath)
	}
	return bootstrap.LoadConfigAndSetupLogger(path)
}

// apply the postgres schema
func migrate(ctx context.Context, opts docopt.Opts) error {
	cfg, lgr, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Backend.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs backend.driver %q, config has %q", config.DriverPostgres, cfg.Backend.Driver)
	}

	database, err := bootstrap.ConnectPostgres(ctx, cfg, lgr)
	if err != nil {
		return err
	}
	database.Close()
	fmt.Println("migrations applied")
	return nil
}

// mint a development id token signed with the configured secret
func token(opts docopt.Opts) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}

	uid, _ := opts.String("<uid>")
	email, _ := opts.String("<email>")
	name, _ := opts.String("--name")

	identity := gateway.Identity{
		UID:         uid,
		Email:       email,
		DisplayName: name,
	}
	if ttl, _ := opts.String("--ttl"); ttl != "" {
		d := helpers.ParseDuration(ttl, 0)
		if d <= 0 {
			return fmt.Errorf("invalid --ttl %q", ttl)
		}
		identity.ExpiresAt = time.Now().Add(d)
	}

	signed, expiresAt, err := bootstrap.NewJWTService(cfg).IssueToken(identity)
	if err != nil {
		return err
	}
	fmt.Println(signed)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func summarize(ctx context.Context, opts docopt.Opts) error {
	cfg, lgr, err := loadConfig(opts)
	if err != nil {
		return err
	}

	file, _ := opts.String("<file>")
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	a := bootstrap.NewAssistant(ctx, cfg, metrics.New(), lgr)
	fmt.Println(a.Summarize(ctx, string(content)))
	return nil
}

func plan(ctx context.Context, opts docopt.Opts) error {
	cfg, lgr, err := loadConfig(opts)
	if err != nil {
		return err
	}

	topic, _ := opts.String("<topic>")
	a := bootstrap.NewAssistant(ctx, cfg, metrics.New(), lgr)
	fmt.Println(a.SuggestPlan(ctx, strings.TrimSpace(topic)))
	return nil
}

// print the stored theme, or store a new one
func theme(opts docopt.Opts) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}

	store, err := prefs.Open(cfg.Preferences.Path)
	if err != nil {
		return err
	}

	var next prefs.Theme
	if light_, _ := opts.Bool("light"); light_ {
		next = prefs.ThemeLight
	} else if dark_, _ := opts.Bool("dark"); dark_ {
		next = prefs.ThemeDark
	}
	if next != "" {
		if err := store.SetTheme(next); err != nil {
			return err
		}
	}

	fmt.Println(store.Theme())
	return nil
}
