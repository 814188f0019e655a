package sheets

import (
	"fmt"
	"slices"

	"dominionbot/internal/roles"

	"github.com/rs/zerolog/log"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Build the requested roles out of a batch. Header rows must match exactly.
// Name rows and flag rows are paired by position and rows past the shorter
// group are ignored. Members without any requested role are dropped
func DecodeRequestedRoles(batch Batch, vocabulary roles.Vocabulary) (roles.RequestedRoles, error) {

	if !slices.Equal(batch.NameHeaders, NameHeaders) {
		return nil, &SchemaMismatchError{Range: "name headers", Want: NameHeaders, Got: batch.NameHeaders}
	}
	if !slices.Equal(batch.RoleHeaders, []string(vocabulary)) {
		return nil, &SchemaMismatchError{Range: "role headers", Want: vocabulary, Got: batch.RoleHeaders}
	}

	rows := min(len(batch.Names), len(batch.Flags))
	if len(batch.Names) != len(batch.Flags) {
		log.Debug().Msg(fmt.Sprintf("Ignoring rows past %d (%d name rows, %d flag rows)", rows, len(batch.Names), len(batch.Flags)))
	}

	requested := roles.RequestedRoles{}
	for i := 0; i < rows; i++ {
		names, flags := batch.Names[i], batch.Flags[i]
		if len(names) <= idColumn || names[idColumn] == "" {
			log.Debug().Msg(fmt.Sprintf("Skipping row %d without an id", i))
			continue
		}
		id := roles.MemberId(names[idColumn])

		set := roles.RoleSet{}
		for column := 0; column < min(len(batch.RoleHeaders), len(flags)); column++ {
			if flags[column] == RequestedMarker {
				set[batch.RoleHeaders[column]] = struct{}{}
			}
		}
		if len(set) == 0 {
			continue
		}
		requested[id] = set
	}

	return requested, nil
}

// Turn the value ranges of a batch read into a Batch. ok is false when the
// response carries no value ranges at all
func batchFromResponse(response *sheetsapi.BatchGetValuesResponse) (batch Batch, ok bool, err error) {

	if response == nil || len(response.ValueRanges) == 0 {
		return Batch{}, false, nil
	}
	if len(response.ValueRanges) != rangeCount {
		got := make([]string, len(response.ValueRanges))
		for i, valueRange := range response.ValueRanges {
			got[i] = valueRange.Range
		}
		return Batch{}, false, &SchemaMismatchError{Range: "value ranges", Want: []string{"name headers", "role headers", "names", "flags"}, Got: got}
	}

	rows := func(index int) [][]string {
		values := response.ValueRanges[index].Values
		result := make([][]string, len(values))
		for i, row := range values {
			result[i] = make([]string, len(row))
			for j, cell := range row {
				result[i][j] = fmt.Sprint(cell)
			}
		}
		return result
	}
	header := func(index int) []string {
		if r := rows(index); len(r) > 0 {
			return r[0]
		}
		return []string{}
	}

	batch = Batch{
		NameHeaders: header(RangeNameHeaders),
		RoleHeaders: header(RangeRoleHeaders),
		Names:       rows(RangeNames),
		Flags:       rows(RangeFlags),
	}
	return batch, true, nil
}
