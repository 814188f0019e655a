package sheets

import (
	"fmt"
	"strings"
)

// Name columns expected on the header row of the users sheet
var NameHeaders = []string{"username", "discriminator", "id"}

// Only this exact value marks a requested role
const RequestedMarker = "TRUE"

// Position of the member id among the name columns
const idColumn = 2

// Range order of a batch read
const (
	RangeNameHeaders = iota
	RangeRoleHeaders
	RangeNames
	RangeFlags
	rangeCount
)

var DefaultRanges = []string{"Users!A2:C2", "Users!O2:V2", "Users!A3:C", "Users!O3:V"}

// The four aligned row groups of a batch read
type Batch struct {
	NameHeaders []string
	RoleHeaders []string
	Names       [][]string
	Flags       [][]string
}

type SchemaMismatchError struct {
	Range string
	Want  []string
	Got   []string
}

func (err *SchemaMismatchError) Error() string {
	return fmt.Sprintf("unexpected %s: want [%s], got [%s]", err.Range, strings.Join(err.Want, ", "), strings.Join(err.Got, ", "))
}

// The batch read kept failing after every attempt
type TransportError struct {
	Attempts int
	Err      error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("batch read failed after %d attempts: %v", err.Attempts, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}
