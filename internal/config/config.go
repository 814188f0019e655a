package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"dominionbot/internal/sheets"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

var (
	ErrReadConfigurationFailure = xerrors.New("Failed to read configuration")
	ErrLoadConfigurationFailure = xerrors.New("Failed to load configuration")
	ErrInvalidConfiguration     = xerrors.New("Configuration is not valid")
)

type Discord struct {
	Token     string `yaml:"token" env:"DISCORD_TOKEN"`
	TokenFile string `yaml:"token_file" env:"DISCORD_TOKEN_FILE"`
	GuildId   string `yaml:"guild_id" env:"GUILD_ID"`
	Prefix    string `yaml:"prefix" env:"COMMAND_PREFIX"`
}

type Sheets struct {
	SpreadsheetId   string        `yaml:"spreadsheet_id" env:"SPREADSHEET_ID"`
	Ranges          []string      `yaml:"ranges" env:"SHEET_RANGES" envSeparator:";"`
	Attempts        int           `yaml:"attempts" env:"SHEET_ATTEMPTS"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout" env:"SHEET_ATTEMPT_TIMEOUT"`
	CredentialsFile string        `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	TokenFile       string        `yaml:"token_file" env:"GOOGLE_TOKEN_FILE"`
}

type Snapshot struct {
	Path string `yaml:"path" env:"SNAPSHOT_PATH"`
}

type Executor struct {
	Parallelism int `yaml:"parallelism" env:"EXECUTOR_PARALLELISM"`
}

type Log struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMb  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Configuration struct {
	Discord  Discord  `yaml:"discord"`
	Sheets   Sheets   `yaml:"sheets"`
	Snapshot Snapshot `yaml:"snapshot"`
	Executor Executor `yaml:"executor"`
	Log      Log      `yaml:"log"`
}

func Default() Configuration {
	return Configuration{
		Discord: Discord{Prefix: "!"},
		Sheets: Sheets{
			Ranges:          append([]string{}, sheets.DefaultRanges...),
			Attempts:        sheets.DefaultAttempts,
			AttemptTimeout:  30 * time.Second,
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
		Snapshot: Snapshot{Path: "requested_roles.json"},
		Executor: Executor{Parallelism: 4},
		Log:      Log{Level: "info", MaxSizeMb: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load the configuration file on top of the defaults, then apply the
// environment (including a .env file if present). A missing configuration
// file is fine as long as the environment provides the required values
func Load(path string) (Configuration, error) {

	configuration := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug().Str("path", path).Msg("No configuration file, using defaults and environment")
	case err != nil:
		return configuration, fmt.Errorf("%w: %v", ErrReadConfigurationFailure, err)
	default:
		if err := yaml.Unmarshal(data, &configuration); err != nil {
			return configuration, fmt.Errorf("%w: %v", ErrLoadConfigurationFailure, err)
		}
	}

	if err := env.Parse(&configuration); err != nil {
		return configuration, fmt.Errorf("%w: parse env: %v", ErrLoadConfigurationFailure, err)
	}

	if configuration.Discord.Token == "" && configuration.Discord.TokenFile != "" {
		token, err := readTokenFile(configuration.Discord.TokenFile)
		if err != nil {
			return configuration, err
		}
		configuration.Discord.Token = token
	}

	return configuration, configuration.Validate()
}

// The token is the first line of the file
func readTokenFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadConfigurationFailure, err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Scan()
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadConfigurationFailure, err)
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func (configuration *Configuration) Validate() error {
	var problems []string
	if configuration.Discord.Token == "" {
		problems = append(problems, "discord token is missing")
	}
	if configuration.Discord.GuildId == "" {
		problems = append(problems, "guild id is missing")
	}
	if configuration.Discord.Prefix == "" {
		problems = append(problems, "command prefix is empty")
	}
	if configuration.Sheets.SpreadsheetId == "" {
		problems = append(problems, "spreadsheet id is missing")
	}
	if len(configuration.Sheets.Ranges) != len(sheets.DefaultRanges) {
		problems = append(problems, fmt.Sprintf("expected %d sheet ranges, got %d", len(sheets.DefaultRanges), len(configuration.Sheets.Ranges)))
	}
	if configuration.Sheets.Attempts < 1 {
		problems = append(problems, "sheet attempts must be at least 1")
	}
	if configuration.Executor.Parallelism < 1 {
		problems = append(problems, "executor parallelism must be at least 1")
	}
	if configuration.Snapshot.Path == "" {
		problems = append(problems, "snapshot path is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
