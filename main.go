package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"dominionbot/internal/bot"
	"dominionbot/internal/config"
	"dominionbot/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	authorize := flag.Bool("authorize", false, "authorize access to the league sheet and save the token")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Info().Msg("Hello from inside dominionbot")

	// Authorizing only needs the google settings
	configuration, err := config.Load(*configPath)
	if err != nil && !(*authorize && errors.Is(err, config.ErrInvalidConfiguration)) {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Could not load configuration")
	}
	setupLogging(configuration.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Google credentials
	oauthConfig, err := sheets.LoadOAuthConfig(configuration.Sheets.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load google credentials")
	}
	if *authorize {
		if err := sheets.Authorize(ctx, oauthConfig, configuration.Sheets.TokenFile, os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Could not authorize")
		}
		log.Info().Str("path", configuration.Sheets.TokenFile).Msg("Token saved")
		return
	}
	tokens, err := sheets.TokenSource(ctx, oauthConfig, configuration.Sheets.TokenFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load google token, run with -authorize first")
	}

	// Create sheets client
	getter, err := sheets.NewServiceGetter(ctx, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create sheets service")
	}
	client := sheets.NewClient(getter, sheets.Options{
		SpreadsheetId:  configuration.Sheets.SpreadsheetId,
		Ranges:         configuration.Sheets.Ranges,
		Attempts:       configuration.Sheets.Attempts,
		AttemptTimeout: configuration.Sheets.AttemptTimeout,
	})

	// Create bot
	database := bot.NewDatabaseBot(configuration.Snapshot.Path)
	dominion := bot.NewBot(bot.Options{
		Token:       configuration.Discord.Token,
		GuildId:     configuration.Discord.GuildId,
		Prefix:      configuration.Discord.Prefix,
		Parallelism: configuration.Executor.Parallelism,
	}, database, &client)

	// Run bot
	if err := dominion.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped")
	}
	log.Info().Msg("Bye")
}

// Console output always, plus a rotated file when configured
func setupLogging(settings config.Log) {

	level, err := zerolog.ParseLevel(settings.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", settings.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if settings.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMb,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
		})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}
