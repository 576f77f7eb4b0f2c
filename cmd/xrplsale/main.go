// Command xrplsale is a small command line client for the XRPL.Sale API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/xrplsale/xrplsale-go"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "xrplsale",
		Usage:     "query the XRPL.Sale launchpad API",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; XRPLSALE_* variables override it",
				EnvVars: []string{"XRPLSALE_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv file to load before reading XRPLSALE_* variables",
			},
			&cli.BoolFlag{
				Name:  "testnet",
				Usage: "use the testnet API",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "custom API base URL",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log requests at debug level",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("debug") {
				level = slog.LevelDebug
			}
			c.App.Metadata = map[string]any{
				"logger": slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})),
			}
			return nil
		},
		Commands: []*cli.Command{
			projectsCommand(),
			investmentsCommand(),
			webhookCommand(),
		},
	}
}

func logger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata["logger"].(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func loadConfig(c *cli.Context) (xrplsale.Config, error) {
	var (
		cfg xrplsale.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = xrplsale.LoadConfigFile(path)
	} else {
		cfg, err = xrplsale.ConfigFromEnv(c.StringSlice("env-file")...)
	}
	if err != nil {
		return xrplsale.Config{}, err
	}

	if c.Bool("testnet") {
		cfg.Environment = xrplsale.Testnet
	}
	if u := c.String("base-url"); u != "" {
		cfg.Environment = xrplsale.Custom
		cfg.BaseURL = u
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}

	return cfg, nil
}

func newClient(c *cli.Context) (*xrplsale.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return xrplsale.New(cfg, xrplsale.WithLogger(logger(c)))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
		&cli.IntFlag{Name: "per-page", Value: 20, Usage: "items per page"},
		&cli.BoolFlag{Name: "all", Usage: "walk every page"},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "list and inspect token sale projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list projects",
				Flags: append(pageFlags(), &cli.StringFlag{Name: "status", Usage: "filter by status"}),
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}

					params := xrplsale.ListProjectsParams{
						PageParams: xrplsale.PageParams{Page: c.Int("page"), PerPage: c.Int("per-page")},
						Status:     xrplsale.ProjectStatus(c.String("status")),
					}

					if c.Bool("all") {
						var projects []xrplsale.Project
						for p, err := range client.Projects.All(c.Context, params) {
							if err != nil {
								return err
							}
							projects = append(projects, p)
						}
						return printJSON(c.App.Writer, projects)
					}

					page, err := client.Projects.List(c.Context, params)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, page)
				},
			},
			{
				Name:      "get",
				Usage:     "show a project",
				ArgsUsage: "PROJECT_ID",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "stats", Usage: "include sale statistics"}},
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return errors.New("project id is required")
					}

					client, err := newClient(c)
					if err != nil {
						return err
					}

					project, err := client.Projects.Get(c.Context, id)
					if err != nil {
						return err
					}
					if !c.Bool("stats") {
						return printJSON(c.App.Writer, project)
					}

					stats, err := client.Projects.Stats(c.Context, id)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, map[string]any{"project": project, "stats": stats})
				},
			},
		},
	}
}

func investmentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "investments",
		Usage: "list investments",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list investments",
				Flags: append(pageFlags(),
					&cli.StringFlag{Name: "project", Usage: "filter by project id"},
					&cli.StringFlag{Name: "investor", Usage: "filter by investor account"},
					&cli.StringFlag{Name: "status", Usage: "filter by status"},
				),
				Action: func(c *cli.Context) error {
					client, err := newClient(c)
					if err != nil {
						return err
					}

					params := xrplsale.ListInvestmentsParams{
						PageParams:      xrplsale.PageParams{Page: c.Int("page"), PerPage: c.Int("per-page")},
						ProjectID:       c.String("project"),
						InvestorAccount: c.String("investor"),
						Status:          xrplsale.InvestmentStatus(c.String("status")),
					}

					if c.Bool("all") {
						var investments []xrplsale.Investment
						for inv, err := range client.Investments.All(c.Context, params) {
							if err != nil {
								return err
							}
							investments = append(investments, inv)
						}
						return printJSON(c.App.Writer, investments)
					}

					page, err := client.Investments.List(c.Context, params)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, page)
				},
			},
		},
	}
}

func webhookCommand() *cli.Command {
	return &cli.Command{
		Name:  "webhook",
		Usage: "sign, verify and receive webhooks",
		Subcommands: []*cli.Command{
			{
				Name:      "sign",
				Usage:     "print the signature of a payload",
				ArgsUsage: "[FILE]",
				Flags:     []cli.Flag{secretFlag()},
				Action: func(c *cli.Context) error {
					v, err := verifier(c)
					if err != nil {
						return err
					}
					payload, err := readPayload(c)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, v.Sign(payload))
					return err
				},
			},
			{
				Name:      "verify",
				Usage:     "check a payload signature",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					secretFlag(),
					&cli.StringFlag{Name: "signature", Aliases: []string{"s"}, Required: true, Usage: "signature to check"},
				},
				Action: func(c *cli.Context) error {
					v, err := verifier(c)
					if err != nil {
						return err
					}
					payload, err := readPayload(c)
					if err != nil {
						return err
					}

					if !v.Verify(payload, c.String("signature")) {
						return xrplsale.ErrInvalidSignature
					}
					color.New(color.FgGreen).Fprintln(c.App.Writer, "valid signature")
					return nil
				},
			},
			{
				Name:  "listen",
				Usage: "receive webhooks and log verified events",
				Flags: []cli.Flag{
					secretFlag(),
					&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address"},
					&cli.StringFlag{Name: "path", Value: "/webhooks/xrplsale", Usage: "request path"},
				},
				Action: func(c *cli.Context) error {
					v, err := verifier(c)
					if err != nil {
						return err
					}

					mux := http.NewServeMux()
					mux.Handle(c.String("path"), webhookHandler(v, logger(c)))

					srv := &http.Server{
						Addr:              c.String("addr"),
						Handler:           mux,
						ReadHeaderTimeout: 10 * time.Second,
					}

					go func() {
						<-c.Context.Done()
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = srv.Shutdown(shutdownCtx)
					}()

					logger(c).Info("listening for webhooks", "addr", srv.Addr, "path", c.String("path"))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				},
			},
		},
	}
}

func secretFlag() cli.Flag {
	return &cli.StringFlag{Name: "secret", Usage: "webhook secret (defaults to the configured one)"}
}

func webhookHandler(v *xrplsale.WebhookVerifier, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := v.Parse(r)
		if err != nil {
			log.Warn("rejected webhook", "remote", r.RemoteAddr, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		log.Info("webhook received", "event_type", event.Type, "id", event.ID, "timestamp", event.Timestamp.Time)
		w.WriteHeader(http.StatusOK)
	}
}

func verifier(c *cli.Context) (*xrplsale.WebhookVerifier, error) {
	secret := c.String("secret")
	if secret == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		secret = cfg.WebhookSecret
	}
	return xrplsale.NewWebhookVerifier(secret)
}

func readPayload(c *cli.Context) ([]byte, error) {
	if path := c.Args().First(); path != "" && path != "-" {
		return os.ReadFile(path)
	}
	return io.ReadAll(c.App.Reader)
}
