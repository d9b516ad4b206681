package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"davbridge/internal/bridge"
	"davbridge/internal/codec"
	"davbridge/internal/config"
	"davbridge/internal/google"
	"davbridge/internal/ident"
	"davbridge/internal/syncer"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client-id", EnvVars: []string{"GOOGLE_CLIENT_ID"}},
			&cli.StringFlag{Name: "client-secret", EnvVars: []string{"GOOGLE_CLIENT_SECRET"}},
			&cli.StringFlag{Name: "token-dir", EnvVars: []string{"GOOGLE_TOKEN_DIR"}, Value: "."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger("info", "text")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(c.String("client-id"), c.String("client-secret"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := google.TokenPath(c.String("token-dir"), accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy upcoming Google Calendar events into the DAV calendar.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be imported without making changes."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run the import every N seconds."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
			dryRun := c.Bool("dry-run") || cfg.DAV.DryRun
			if dryRun {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			// Load all Google clients for all authenticated accounts
			accounts, err := google.GetTokenAccounts(cfg.Google.TokenDir)
			if err != nil {
				return fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no google accounts found. Run the 'auth' command first")
			}

			var sources []syncer.EventSource
			for _, acc := range accounts {
				gClient, err := google.NewClient(c.Context, logger, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.TokenDir, acc)
				if err != nil {
					return fmt.Errorf("failed to create google client for account %s: %w", acc, err)
				}
				sources = append(sources, gClient)
			}
			logger.Info("Initialized Google clients for all accounts.", "count", len(sources))

			davClient, err := newDAVClient(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			registry, err := newRegistry(logger, cfg)
			if err != nil {
				return err
			}
			dispatcher := newDispatcher(logger, registry, cfg)
			defer dispatcher.Wait()

			b := bridge.New(logger, davClient, codec.New(ident.UUID{}), dispatcher, dryRun)
			s, err := syncer.NewSyncer(logger, sources, b, syncer.Options{
				CalendarIDs: cfg.Google.CalendarIDs,
				Days:        cfg.Google.Days,
				StateFile:   cfg.Google.StateFile,
				DryRun:      dryRun,
			})
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}

			if !c.IsSet("watch") {
				logger.Info("Running a single import cycle.")
				if _, err := s.Sync(c.Context); err != nil {
					return fmt.Errorf("import cycle failed: %w", err)
				}
				return nil
			}

			interval := time.Duration(c.Int("watch")) * time.Second
			logger.Info("Starting watcher.", "interval", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if _, err := s.Sync(c.Context); err != nil {
					logger.Error("Import cycle failed", "error", err)
				}
				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}
