package roles

import (
	"cmp"
	"slices"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type MemberId string
type RoleId string

type Role struct {
	Id   RoleId
	Name string
}

type Member struct {
	Id       MemberId
	Username string
	Roles    []RoleId
}

// Read-only view of the fixed guild: its role list and its members
type Guild struct {
	Id      string
	Roles   []Role
	Members map[MemberId]Member
}

// A set of role names. It serializes as a sorted list
type RoleSet map[string]struct{}

// Member -> requested managed roles. Members without requested roles
// are never present
type RequestedRoles map[MemberId]RoleSet

func NewRoleSet(names ...string) RoleSet {
	set := RoleSet{}
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (set RoleSet) Contains(name string) bool {
	_, ok := set[name]
	return ok
}

// Names in ascending order
func (set RoleSet) Names() []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (set RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.Names())
}

func (set *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*set = NewRoleSet(names...)
	return nil
}

// Member ids in ascending order. Snowflakes compare numerically,
// anything else falls back to string order, and so do ids of equal value
// such as "018" and "18"
func (requested RequestedRoles) MemberIds() []MemberId {
	ids := make([]MemberId, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	SortMemberIds(ids)
	return ids
}

func SortMemberIds(ids []MemberId) {
	slices.SortFunc(ids, CompareMemberIds)
}

func CompareMemberIds(a, b MemberId) int {
	na, erra := strconv.ParseUint(string(a), 10, 64)
	nb, errb := strconv.ParseUint(string(b), 10, 64)
	switch {
	case erra == nil && errb == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
	case erra == nil:
		return -1
	case errb == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

func sortRoles(roles []Role) {
	slices.SortFunc(roles, func(a, b Role) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
}

func RoleNames(roles []Role) []string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return names
}

func RoleIds(roles []Role) []RoleId {
	ids := make([]RoleId, len(roles))
	for i, role := range roles {
		ids[i] = role.Id
	}
	return ids
}

func (guild Guild) RoleById(id RoleId) (Role, bool) {
	for _, role := range guild.Roles {
		if role.Id == id {
			return role, true
		}
	}
	return Role{}, false
}

func (guild Guild) RoleByName(name string) (Role, bool) {
	for _, role := range guild.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}
