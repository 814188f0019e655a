package roles

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

var ErrMemberNotFound = xerrors.New("member not found in guild")
var ErrRoleNotFound = xerrors.New("role not found in guild")

// A requested-roles entry references someone who is no longer in the guild
type MemberNotFoundError struct {
	MemberId MemberId
}

func (err *MemberNotFoundError) Error() string {
	return fmt.Sprintf("member %s not found in guild", err.MemberId)
}

func (err *MemberNotFoundError) Unwrap() error {
	return ErrMemberNotFound
}

// A requested role name has no role with that exact name in the guild
type RoleNotFoundError struct {
	MemberId MemberId
	Role     string
}

func (err *RoleNotFoundError) Error() string {
	return fmt.Sprintf("role %q requested by member %s not found in guild", err.Role, err.MemberId)
}

func (err *RoleNotFoundError) Unwrap() error {
	return ErrRoleNotFound
}

type Operation string

const (
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
)

// The platform rejected an add or remove operation for one member
type ActionFailure struct {
	MemberId  MemberId
	Operation Operation
	Roles     []Role
	Err       error
}

func (err *ActionFailure) Error() string {
	return fmt.Sprintf("could not %s roles [%s] for member %s: %v", err.Operation, strings.Join(RoleNames(err.Roles), ", "), err.MemberId, err.Err)
}

func (err *ActionFailure) Unwrap() error {
	return err.Err
}
