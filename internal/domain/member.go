package domain

// MemberIdentity is a primary wallet plus the alias keys attributed to it.
type MemberIdentity struct {
	PrimaryKey PubKey
	AliasKeys  map[PubKey]struct{}
}

// NewMemberIdentity creates an identity with the given aliases.
func NewMemberIdentity(primary PubKey, aliases ...PubKey) MemberIdentity {
	m := MemberIdentity{
		PrimaryKey: primary,
		AliasKeys:  make(map[PubKey]struct{}, len(aliases)),
	}
	for _, a := range aliases {
		if a == primary {
			continue
		}
		m.AliasKeys[a] = struct{}{}
	}
	return m
}

// Controls reports whether authority belongs to this member.
func (m MemberIdentity) Controls(authority PubKey) bool {
	if authority == m.PrimaryKey {
		return true
	}
	_, ok := m.AliasKeys[authority]
	return ok
}
