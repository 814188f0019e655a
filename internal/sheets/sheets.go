package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"dominionbot/internal/common"
	"dominionbot/internal/roles"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const DefaultAttempts = 10

// Range-based batch read against one spreadsheet
type BatchGetter interface {
	BatchGet(ctx context.Context, spreadsheetId string, ranges []string) (*sheetsapi.BatchGetValuesResponse, error)
}

type serviceGetter struct {
	service *sheetsapi.Service
}

func (getter serviceGetter) BatchGet(ctx context.Context, spreadsheetId string, ranges []string) (*sheetsapi.BatchGetValuesResponse, error) {
	return getter.service.Spreadsheets.Values.BatchGet(spreadsheetId).Ranges(ranges...).Context(ctx).Do()
}

// Batch getter backed by the Sheets API, authenticated with tokens
func NewServiceGetter(ctx context.Context, tokens oauth2.TokenSource) (BatchGetter, error) {
	service, err := sheetsapi.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("could not create sheets service: %w", err)
	}
	return serviceGetter{service}, nil
}

type Options struct {
	SpreadsheetId  string
	Ranges         []string
	Attempts       int
	AttemptTimeout time.Duration
	Vocabulary     roles.Vocabulary
}

type Client struct {
	getter  BatchGetter
	options Options
}

func NewClient(getter BatchGetter, options Options) Client {
	if len(options.Ranges) == 0 {
		options.Ranges = DefaultRanges
	}
	if options.Attempts < 1 {
		options.Attempts = DefaultAttempts
	}
	if options.Vocabulary == nil {
		options.Vocabulary = roles.DefaultVocabulary
	}
	return Client{getter: getter, options: options}
}

// Read the users sheet and decode who requested which roles
func (client *Client) GetRequestedRoles(ctx context.Context) (roles.RequestedRoles, error) {

	stopwatch := common.NewStopwatch()

	var response *sheetsapi.BatchGetValuesResponse
	attempts, err := common.Retry(ctx, client.options.Attempts, common.Timeout(client.options.AttemptTimeout), isTransient,
		func(ctx context.Context) error {
			var err error
			response, err = client.getter.BatchGet(ctx, client.options.SpreadsheetId, client.options.Ranges)
			return err
		})
	if err != nil {
		if isTransient(err) {
			return nil, &TransportError{Attempts: attempts, Err: err}
		}
		return nil, fmt.Errorf("could not read spreadsheet %s: %w", client.options.SpreadsheetId, err)
	}
	log.Debug().Int("attempts", attempts).Dur("elapsed", stopwatch.Elapsed()).Msg("Read users sheet")

	batch, ok, err := batchFromResponse(response)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("spreadsheet", client.options.SpreadsheetId).Msg("No data found")
		return roles.RequestedRoles{}, nil
	}

	requested, err := DecodeRequestedRoles(batch, client.options.Vocabulary)
	if err != nil {
		return nil, err
	}
	log.Info().Int("members", len(requested)).Msg("Decoded requested roles")
	return requested, nil
}

// Timeouts and any HTTP error from the API are worth another attempt
func isTransient(err error) bool {
	var apiError *googleapi.Error
	if errors.As(err, &apiError) {
		log.Debug().Msg(fmt.Sprintf("%d %s", apiError.Code, common.StatusMessage(apiError.Code)))
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netError net.Error
	if errors.As(err, &netError) && netError.Timeout() {
		return true
	}
	return false
}
