package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"liscraper/pkg/auth"
	"liscraper/pkg/config"
	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/scraper"
)

var (
	// Extract command flags
	postCount   int
	maxScrolls  int
	settleDelay time.Duration
	dataDir     string
	mergeRuns   bool
	headless    bool
	accountName string
)

var extractCmd = &cobra.Command{
	Use:   "extract <profile>",
	Short: "Extract recent posts from a profile's activity feed",
	Long: `Extract the most recent posts from a LinkedIn profile's activity feed.

The profile may be a bare handle or a full linkedin.com/in/ URL. A valid
session is required, configured through:
  - Stored credentials (use 'liscraper auth login' to store)
  - The LISCRAPER_LI_AT environment variable
  - A configuration file

Posts are written to <data-dir>/<profile>_posts.json. The file is replaced
atomically; an interrupted run still leaves the previous file intact.`,
	Example: `  # Extract 10 posts using default settings
  liscraper extract someone

  # Extract 50 posts into a specific directory
  liscraper extract someone --post-count 50 --data-dir ./feeds

  # Use a specific stored account and show the browser window
  liscraper extract someone --account work --headless=false

  # Replace the output file instead of merging with the previous run
  liscraper extract someone --merge=false`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntVarP(&postCount, "post-count", "n", 0, "number of posts to extract (default 10)")
	extractCmd.Flags().IntVar(&maxScrolls, "max-scrolls", 0, "scroll attempt ceiling (default 20)")
	extractCmd.Flags().DurationVar(&settleDelay, "settle-delay", 0, "wait after each scroll before checking for new content (default 2s)")
	extractCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "output directory for extracted posts (default ./data)")
	extractCmd.Flags().BoolVar(&mergeRuns, "merge", true, "merge with the previous run's output file")
	extractCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	extractCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
}

func runExtract(cmd *cobra.Command, args []string) {
	profile := strings.TrimSpace(args[0])

	flags := make(map[string]interface{})
	if postCount > 0 {
		flags["post-count"] = postCount
	}
	if maxScrolls > 0 {
		flags["max-scrolls"] = maxScrolls
	}
	if settleDelay > 0 {
		flags["settle-delay"] = settleDelay
	}
	if dataDir != "" {
		flags["data-dir"] = dataDir
	}
	if cmd.Flags().Changed("merge") {
		flags["merge"] = mergeRuns
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		exitWithError(errors.Wrap(errors.ErrorTypeConfig, "failed to load configuration", err))
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		exitWithError(errors.Wrap(errors.ErrorTypeConfig, "failed to initialize logging", err))
	}
	log := logger.GetLogger()

	// Stored credentials fill the session when the environment and config
	// left it empty, or when a specific account was requested.
	if cfg.Session.LiAt == "" || accountName != "" {
		if account := resolveAccount(log); account != nil {
			cfg.Session.LiAt = account.LiAt
			if account.UserAgent != "" {
				cfg.Session.UserAgent = account.UserAgent
			}
			log.WithField("account", account.Username).Debug("using stored credentials")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor, err := scraper.New(cfg, log)
	if err != nil {
		exitWithError(err)
	}

	result, err := extractor.Run(ctx, profile)
	if err != nil {
		if result != nil && result.OutputPath != "" {
			log.WithField("path", result.OutputPath).Warn("partial result written")
		}
		exitWithError(err)
	}

	log.InfoWithFields("extraction finished", map[string]interface{}{
		"profile": result.Profile,
		"posts":   len(result.Posts),
		"path":    result.OutputPath,
	})
}

// resolveAccount loads the named account, or the default when none was
// named. A missing default is not fatal; the session check in the pipeline
// reports the actionable error.
func resolveAccount(log logger.Logger) *auth.Account {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential manager unavailable")
		return nil
	}
	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			exitWithError(errors.Wrap(errors.ErrorTypeAuth,
				"account "+accountName+" not found: run 'liscraper auth login "+accountName+"'", err))
		}
		return account
	}
	account, err := manager.RetrieveDefault()
	if err != nil {
		return nil
	}
	return account
}

func exitWithError(err error) {
	logger.GetLogger().WithError(err).Error(err.Error())
	os.Exit(errors.ExitCode(err))
}
