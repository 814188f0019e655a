package sheets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"dominionbot/internal/common"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/xerrors"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var ErrNoToken = xerrors.New("no token saved, run with -authorize first")

// OAuth client configuration from the credentials file of a desktop app
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(data, sheetsapi.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials: %w", err)
	}
	return config, nil
}

// Token source that refreshes through config and writes every new token
// back to the token file
type savingTokenSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	last     *oauth2.Token
	database common.Database
}

func (source *savingTokenSource) Token() (*oauth2.Token, error) {
	source.mu.Lock()
	defer source.mu.Unlock()

	token, err := source.base.Token()
	if err != nil {
		return nil, err
	}
	if source.last == nil || token.AccessToken != source.last.AccessToken {
		log.Debug().Time("expiry", token.Expiry).Msg("Token refreshed")
		if err := source.database.Save(token); err != nil {
			log.Error().Err(err).Msg("Could not save refreshed token")
		}
		source.last = token
	}
	return token, nil
}

func TokenSource(ctx context.Context, config *oauth2.Config, tokenFile string) (oauth2.TokenSource, error) {

	database := common.NewDatabase(tokenFile)
	var token oauth2.Token
	if err := database.Load(&token); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("could not load token: %w", err)
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, ErrNoToken
	}

	return &savingTokenSource{
		base:     config.TokenSource(ctx, &token),
		last:     &token,
		database: database,
	}, nil
}

// Run the installed-app authorization flow: print the consent url, read the
// code the user pastes back, and save the resulting token
func Authorize(ctx context.Context, config *oauth2.Config, tokenFile string, in io.Reader, out io.Writer) error {

	url := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open this link in your browser, then paste the authorization code:\n%v\n", url)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("could not exchange authorization code: %w", err)
	}

	database := common.NewDatabase(tokenFile)
	if err := database.Save(token); err != nil {
		return err
	}
	log.Info().Str("path", tokenFile).Msg("Token saved")
	return nil
}
