// Package main is the vibebot entry point: the Discord music bot and its
// offline settings tooling.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"vibebot/backend/internal/discord"
	"vibebot/backend/internal/httpapi"
	"vibebot/backend/internal/lavalink"
	"vibebot/backend/internal/metrics"
	"vibebot/backend/internal/music"
	"vibebot/backend/internal/music/recommend"
	"vibebot/backend/internal/music/sources"
	"vibebot/backend/internal/settings"
	"vibebot/backend/pkg/config"
	"vibebot/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "vibebot",
	Short: "VibeBot - Discord music bot on a Lavalink node",
	Long: `VibeBot plays music in Discord voice channels through a Lavalink node.
Each server gets a music channel with a live now-playing message and controls.`,
	SilenceUsage: true,
	RunE:         runBot,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect stored guild settings",
}

var settingsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every stored guild configuration as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpSettings(config.Read(viper.GetViper()), cmd.OutOrStdout())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env", "development", "environment (development, production)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("http-addr", ":8080", "HTTP listen address for health and metrics")
	flags.String("settings-backend", config.BackendJSON, "settings storage (json, sqlite)")
	flags.String("settings-path", "data/music_data.json", "settings file or database path")
	flags.String("lavalink-host", "localhost", "Lavalink host")
	flags.Int("lavalink-port", 2333, "Lavalink port")

	// viper keys use underscores; the flags keep the usual dashes
	flags.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(viperKey(f.Name), f); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s: %v\n", f.Name, err)
			os.Exit(1)
		}
	})

	settingsCmd.AddCommand(settingsDumpCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("Starting VibeBot",
		zap.String("env", cfg.Env),
		zap.String("lavalink", cfg.LavalinkBaseURL()),
		zap.String("settings_backend", cfg.SettingsBackend))

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close settings store", zap.Error(err))
		}
	}()

	mgr, err := settings.NewManager(store, cfg.DefaultIdleTimeoutSecs, logger.Named("music.settings"))
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return fmt.Errorf("create Discord session: %w", err)
	}
	me, err := dg.User("@me")
	if err != nil {
		return fmt.Errorf("fetch bot user: %w", err)
	}

	node := lavalink.New(lavalink.Config{
		Name:         cfg.LavalinkNodeName,
		BaseURL:      cfg.LavalinkBaseURL(),
		WebsocketURL: cfg.LavalinkWebsocketURL(),
		Password:     cfg.LavalinkPassword,
		UserID:       me.ID,
		Logger:       logger.Named("lavalink"),
	})

	scraper := sources.NewScraper(&http.Client{Timeout: 10 * time.Second}, cfg.ArtworkCacheSize, logger.Named("music.sources"))
	source := sources.New(node, sources.Config{
		Provider:  cfg.SearchProvider,
		CacheSize: cfg.ArtworkCacheSize,
		Scraper:   scraper,
		Logger:    logger.Named("music.sources"),
	})

	m := metrics.New()
	platform := discord.NewPlatform(dg)

	registry := music.NewRegistry(music.Options{
		Node:        node,
		Voice:       discord.NewVoiceGateway(platform),
		Config:      mgr,
		Searcher:    source,
		Recommender: buildRecommender(cfg, logger.Named("music.recommend")),
		Observer:    m,
		Logger:      logger.Named("music"),
	})
	surface := discord.NewSurface(platform, mgr, registry, discord.SurfaceOptions{
		EditsPerSecond:  cfg.SurfaceEditsPerSecond,
		DefaultImageURL: cfg.SurfaceImageURL,
		Recorder:        m,
		Logger:          logger.Named("discord.surface"),
	})
	registry.SetNotifier(surface)

	bot := discord.New(discord.Options{
		Platform:  platform,
		Registry:  registry,
		Settings:  mgr,
		Surface:   surface,
		Resolver:  source,
		Recorder:  m,
		Logger:    logger.Named("discord"),
		InviteURL: cfg.InviteLink,
	})

	api := httpapi.New(httpapi.Options{
		Addr:       cfg.HTTPAddr,
		Production: cfg.IsProduction(),
		Sessions:   registry,
		Metrics:    m.Handler(),
		Logger:     logger.Named("http"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return node.Run(gctx, registry.HandleNodeEvent)
	})
	g.Go(func() error {
		return bot.Run(gctx, dg)
	})
	g.Go(func() error {
		return api.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("VibeBot stopped with error", zap.Error(err))
		return err
	}
	log.Info("VibeBot stopped")
	return nil
}

// openStore picks the configured settings backend
func openStore(cfg *config.Config) (settings.Store, error) {
	switch cfg.SettingsBackend {
	case config.BackendSQLite:
		store, err := settings.NewSQLiteStore(cfg.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("open settings database: %w", err)
		}
		return store, nil
	default:
		return settings.NewJSONStore(cfg.SettingsPath), nil
	}
}

// buildRecommender chains Last.fm before the LLM, each only when configured
func buildRecommender(cfg *config.Config, log *zap.Logger) *recommend.Chain {
	var recs []music.Recommender
	if cfg.LastFMAPIKey != "" {
		recs = append(recs, recommend.NewLastFM(cfg.LastFMAPIKey, "", nil, log.Named("lastfm")))
	}
	if cfg.LLMBaseURL != "" || cfg.LLMAPIKey != "" {
		recs = append(recs, recommend.NewLLM(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, log.Named("llm")))
	}
	return recommend.NewChain(log, recs...)
}

// dumpSettings writes the stored configurations sorted by guild, with
// webhook tokens redacted.
func dumpSettings(cfg *config.Config, w io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*settings.GuildConfig, 0, len(ids))
	for _, id := range ids {
		c := all[id].Clone()
		if c.WebhookToken != "" {
			c.WebhookToken = "[redacted]"
		}
		out = append(out, c)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// viperKey maps a flag name to its configuration key
func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}
