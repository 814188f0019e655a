package roles

// Roles to assign and to unassign for one member. Both lists are sorted
// by role name and never share a role
type RoleDiff struct {
	MemberId MemberId
	Username string
	ToAdd    []Role
	ToRemove []Role
}

func (diff *RoleDiff) Empty() bool {
	return len(diff.ToAdd) == 0 && len(diff.ToRemove) == 0
}

type Reconciliation struct {
	Diffs map[MemberId]RoleDiff
	// Entries whose member is not in the guild, sorted by member id
	Missing []*MemberNotFoundError
	// Entries that could not be diffed because a role does not exist, sorted by member id
	Unresolved []*RoleNotFoundError
}

// Diffs sorted by member id
func (reconciliation *Reconciliation) Ordered() []RoleDiff {
	ids := make([]MemberId, 0, len(reconciliation.Diffs))
	for id := range reconciliation.Diffs {
		ids = append(ids, id)
	}
	SortMemberIds(ids)
	diffs := make([]RoleDiff, len(ids))
	for i, id := range ids {
		diffs[i] = reconciliation.Diffs[id]
	}
	return diffs
}

func (reconciliation *Reconciliation) Empty() bool {
	return len(reconciliation.Diffs) == 0
}

// Name -> role lookup built once per reconciliation and never mutated.
// Managed names are looked up first, then every guild role by exact name
type roleIndex struct {
	managed map[string]Role
	byId    map[RoleId]Role
	all     []Role
}

func newRoleIndex(roles []Role, vocabulary Vocabulary) roleIndex {
	index := roleIndex{
		managed: map[string]Role{},
		byId:    map[RoleId]Role{},
		all:     roles,
	}
	for _, role := range roles {
		index.byId[role.Id] = role
		if _, seen := index.managed[role.Name]; !seen && vocabulary.Contains(role.Name) {
			index.managed[role.Name] = role
		}
	}
	return index
}

func (index *roleIndex) resolve(name string) (Role, bool) {
	if role, ok := index.managed[name]; ok {
		return role, true
	}
	for _, role := range index.all {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}

// Compute, for every member in requested, the roles to add and the managed
// roles to remove so that the member holds exactly the requested managed roles.
// Roles outside the vocabulary are never removed
func Reconcile(guild Guild, requested RequestedRoles, vocabulary Vocabulary) Reconciliation {

	index := newRoleIndex(guild.Roles, vocabulary)
	reconciliation := Reconciliation{Diffs: map[MemberId]RoleDiff{}}

	for _, memberId := range requested.MemberIds() {

		member, ok := guild.Members[memberId]
		if !ok {
			reconciliation.Missing = append(reconciliation.Missing, &MemberNotFoundError{MemberId: memberId})
			continue
		}

		diff, err := diffMember(member, requested[memberId], &index, vocabulary)
		if err != nil {
			reconciliation.Unresolved = append(reconciliation.Unresolved, err)
			continue
		}
		if diff.Empty() {
			continue
		}
		reconciliation.Diffs[memberId] = diff
	}

	return reconciliation
}

func diffMember(member Member, names RoleSet, index *roleIndex, vocabulary Vocabulary) (RoleDiff, *RoleNotFoundError) {

	parsed := map[RoleId]Role{}
	for _, name := range names.Names() {
		role, ok := index.resolve(name)
		if !ok {
			return RoleDiff{}, &RoleNotFoundError{MemberId: member.Id, Role: name}
		}
		parsed[role.Id] = role
	}

	actual := map[RoleId]Role{}
	for _, id := range member.Roles {
		if role, ok := index.byId[id]; ok {
			actual[id] = role
		}
	}

	diff := RoleDiff{MemberId: member.Id, Username: member.Username}
	for id, role := range parsed {
		if _, ok := actual[id]; !ok {
			diff.ToAdd = append(diff.ToAdd, role)
		}
	}
	for id, role := range actual {
		if _, ok := parsed[id]; ok {
			continue
		}
		if vocabulary.Contains(role.Name) {
			diff.ToRemove = append(diff.ToRemove, role)
		}
	}
	sortRoles(diff.ToAdd)
	sortRoles(diff.ToRemove)

	return diff, nil
}
