package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	fsAdapter "github.com/bft-labs/threadmirror/internal/adapters/fs"
	logAdapter "github.com/bft-labs/threadmirror/internal/adapters/log"
	"github.com/bft-labs/threadmirror/internal/adapters/reddit"
	"github.com/bft-labs/threadmirror/internal/app"
	"github.com/bft-labs/threadmirror/internal/cliconfig"
	"github.com/bft-labs/threadmirror/internal/configwatch"
	"github.com/bft-labs/threadmirror/internal/ports"
)

const longHelp = `Mirror every new post of a subreddit into one aggregation thread.

Each new post gets a short reply in the thread linking back to it. Replies
to those mirror comments are removed so the discussion stays on the
original post.

Highlights:
  - Never mirrors a post twice, even across restarts (state in tracked.json).
  - Backs off 15 minutes on Reddit outages, 1 minute on other failures.
  - Configure via file, .env, environment (THREADMIRROR_*) or flags.
  - Exclusion filters in [filters] are reloaded without a restart.`

var exampleUsage = strings.TrimSpace(`
  threadmirror --community neoliberal
  threadmirror --config $HOME/.threadmirror/config.toml --moderation-strategy sweep
  threadmirror --community neoliberal --once --log-level debug
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := logAdapter.NewConsoleLogger(os.Stderr, "info")

	root := &cobra.Command{
		Use:          "threadmirror",
		Short:        "Mirror new subreddit posts into an aggregation thread",
		Long:         longHelp,
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := loadConfig(&cfg, cfgFile, changed); err != nil {
				return err
			}

			log = logAdapter.NewConsoleLogger(os.Stderr, cfg.LogLevel)
			log.Info().Interface("config", cfg.Masked()).Msg("configuration")

			return run(cfg, cfgFile, logAdapter.NewZerologAdapterWithLogger(log))
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.threadmirror/config.toml)")
	f.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "dotenv file with THREADMIRROR_* credentials")

	f.StringVar(&cfg.Community, "community", cfg.Community, "subreddit to watch (several joined with + or ,)")
	f.StringVar(&cfg.Account, "account", cfg.Account, "service account name (default: resolved from the token)")
	f.StringVar(&cfg.Marker, "marker", cfg.Marker, "title of the aggregation thread")
	f.StringVar(&cfg.Notice, "notice", cfg.Notice, "notice appended to every mirror comment")
	f.StringVar(&cfg.ThreadStrategy, "thread-strategy", cfg.ThreadStrategy, "how to find the aggregation thread: self or search")
	f.StringVar(&cfg.ModerationStrategy, "moderation-strategy", cfg.ModerationStrategy, "how to find replies to mirrors: inbox or sweep")

	f.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "maximum number of tracked mirrors")
	f.IntVar(&cfg.StreamLimit, "stream-limit", cfg.StreamLimit, "posts requested per poll")
	f.DurationVar(&cfg.MaxAge, "max-age", cfg.MaxAge, "stop moderating mirrors older than this")
	f.DurationVar(&cfg.IdleDelay, "idle-delay", cfg.IdleDelay, "delay between successful iterations")
	f.DurationVar(&cfg.ServerBackoff, "server-backoff", cfg.ServerBackoff, "delay after a Reddit server error")
	f.DurationVar(&cfg.ResponseBackoff, "response-backoff", cfg.ResponseBackoff, "delay after an unusable response")
	f.DurationVar(&cfg.RequestBackoff, "request-backoff", cfg.RequestBackoff, "delay after a failed request")
	f.DurationVar(&cfg.CheckpointInterval, "checkpoint", cfg.CheckpointInterval, "how often to save tracked mirrors while running (0 disables)")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")

	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for tracked.json (default: $HOME/.threadmirror)")
	f.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "Reddit app client id")
	f.StringVar(&cfg.ClientSecret, "client-secret", cfg.ClientSecret, "Reddit app client secret (prefer THREADMIRROR_CLIENT_SECRET)")
	f.StringVar(&cfg.RefreshToken, "refresh-token", cfg.RefreshToken, "OAuth refresh token (prefer THREADMIRROR_REFRESH_TOKEN)")
	f.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent to Reddit")
	f.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "OAuth API base URL")
	f.StringVar(&cfg.TokenURL, "token-url", cfg.TokenURL, "OAuth token endpoint")
	for _, name := range []string{"api-url", "token-url"} {
		if err := f.MarkHidden(name); err != nil {
			log.Info().Err(err).Str("flag", name).Msg("failed to hide flag")
		}
	}

	f.StringArrayVar(&cfg.ExcludeTitles, "exclude-title", cfg.ExcludeTitles, "never mirror posts with this exact title (repeatable)")
	f.StringArrayVar(&cfg.ExcludePatterns, "exclude-pattern", cfg.ExcludePatterns, "never mirror posts whose title matches this regexp (repeatable)")

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.BoolVar(&cfg.Once, "once", cfg.Once, "run a single iteration and exit")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("threadmirror")
		os.Exit(1)
	}
}

// loadConfig layers the config file, the env file and THREADMIRROR_*
// variables under the flags already parsed into cfg, then validates.
func loadConfig(cfg *cliconfig.Config, cfgFile string, changed map[string]bool) error {
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.LoadDotEnv(cfg.EnvFile); err != nil {
		return err
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}

	return cfg.Validate()
}

// run starts the service and blocks until a signal arrives or the poll loop
// ends. The tracked mirrors are saved on every path out.
func run(cfg cliconfig.Config, cfgFile string, logger ports.Logger) error {
	filters, err := app.NewFilters(cfg.ExcludeTitles, cfg.ExcludePatterns)
	if err != nil {
		return err
	}
	filterSet := app.NewFilterSet(filters)

	client := reddit.New(
		&http.Client{Timeout: cfg.HTTPTimeout},
		reddit.Credentials{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: cfg.RefreshToken,
			UserAgent:    cfg.UserAgent,
		},
		reddit.WithAPIURL(cfg.APIURL),
		reddit.WithTokenURL(cfg.TokenURL),
		reddit.WithLogger(logger),
	)
	repo := fsAdapter.NewPairFileRepository(cfg.StateDir)

	svc := app.NewService(app.ServiceConfig{
		Community:          cfg.Community,
		Account:            cfg.Account,
		ThreadStrategy:     cfg.ThreadStrategy,
		ModerationStrategy: cfg.ModerationStrategy,
		Marker:             cfg.Marker,
		Notice:             cfg.Notice,
		Capacity:           cfg.Capacity,
		MaxAge:             cfg.MaxAge,
		StreamLimit:        cfg.StreamLimit,
		Backoff:            cfg.Backoff(),
		CheckpointInterval: cfg.CheckpointInterval,
		Once:               cfg.Once,
	}, client, repo, filterSet, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		watcher := configwatch.New(cfgFile, filterSet, logger, configwatch.DefaultDebounceDelay)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("filter reload disabled", ports.Err(err))
			}
		}()
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start threadmirror: %w", err)
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal, stopping", ports.String("signal", sig.String()))
	case <-svc.Done():
	}

	runErr := svc.Err()
	if err := svc.Stop(); err != nil {
		return fmt.Errorf("stop threadmirror: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("clean exit", ports.Int("tracked", svc.Store().Len()))
	return nil
}
