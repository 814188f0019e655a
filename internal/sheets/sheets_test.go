package sheets

import (
	"context"
	"errors"
	"testing"

	"dominionbot/internal/roles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	sheetsapi "google.golang.org/api/sheets/v4"
)

type fakeGetter struct {
	calls    int
	failures int
	err      error
	response *sheetsapi.BatchGetValuesResponse
	ranges   []string
}

func (getter *fakeGetter) BatchGet(ctx context.Context, spreadsheetId string, ranges []string) (*sheetsapi.BatchGetValuesResponse, error) {
	getter.calls++
	getter.ranges = ranges
	if getter.calls <= getter.failures {
		return nil, getter.err
	}
	return getter.response, nil
}

func usersResponse() *sheetsapi.BatchGetValuesResponse {
	roleHeaders := make([]interface{}, len(roles.DefaultVocabulary))
	for i, name := range roles.DefaultVocabulary {
		roleHeaders[i] = name
	}
	return &sheetsapi.BatchGetValuesResponse{ValueRanges: []*sheetsapi.ValueRange{
		valueRange(row("username", "discriminator", "id")),
		valueRange(roleHeaders),
		valueRange(row("alice", "0", "111"), row("bob", "0", "222")),
		valueRange(row("FALSE", "FALSE", "FALSE", "TRUE"), row("FALSE")),
	}}
}

func TestGetRequestedRoles(t *testing.T) {
	getter := &fakeGetter{response: usersResponse()}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	requested, err := client.GetRequestedRoles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, roles.RequestedRoles{"111": roles.NewRoleSet("League Player")}, requested)
	assert.Equal(t, DefaultRanges, getter.ranges)
	assert.Equal(t, 1, getter.calls)
}

func TestGetRequestedRolesRetriesHttpErrors(t *testing.T) {
	getter := &fakeGetter{failures: 3, err: &googleapi.Error{Code: 429}, response: usersResponse()}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	requested, err := client.GetRequestedRoles(context.Background())

	require.NoError(t, err)
	assert.Len(t, requested, 1)
	assert.Equal(t, 4, getter.calls)
}

func TestGetRequestedRolesGivesUp(t *testing.T) {
	getter := &fakeGetter{failures: 100, err: &googleapi.Error{Code: 503}}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	_, err := client.GetRequestedRoles(context.Background())

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, DefaultAttempts, transport.Attempts)
	assert.Equal(t, DefaultAttempts, getter.calls)
	var apiError *googleapi.Error
	assert.ErrorAs(t, err, &apiError)
}

func TestGetRequestedRolesTimeoutIsRetried(t *testing.T) {
	getter := &fakeGetter{failures: 2, err: context.DeadlineExceeded, response: usersResponse()}
	client := NewClient(getter, Options{SpreadsheetId: "sheet", Attempts: 3})

	_, err := client.GetRequestedRoles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, getter.calls)
}

func TestGetRequestedRolesOtherErrorsAreNotRetried(t *testing.T) {
	getter := &fakeGetter{failures: 5, err: errors.New("malformed response")}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	_, err := client.GetRequestedRoles(context.Background())

	require.Error(t, err)
	var transport *TransportError
	assert.False(t, errors.As(err, &transport))
	assert.Equal(t, 1, getter.calls)
}

func TestGetRequestedRolesSchemaMismatchIsNotRetried(t *testing.T) {
	response := usersResponse()
	response.ValueRanges[0] = valueRange(row("user", "discriminator", "id"))
	getter := &fakeGetter{response: response}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	_, err := client.GetRequestedRoles(context.Background())

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, getter.calls)
}

func TestGetRequestedRolesNoData(t *testing.T) {
	getter := &fakeGetter{response: &sheetsapi.BatchGetValuesResponse{}}
	client := NewClient(getter, Options{SpreadsheetId: "sheet"})

	requested, err := client.GetRequestedRoles(context.Background())

	require.NoError(t, err)
	assert.Empty(t, requested)
}
