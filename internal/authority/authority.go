// Package authority attributes voter authorities to members through an
// alias table.
//
// The table maps a primary wallet to the alias keys it controls. Mapping is
// forward only and one hop: an authority belongs to member M when it equals
// M or is listed under M. Aliases of aliases are not followed.
package authority

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"vsr-power-lab/internal/domain"
)

// Conflict describes one key claimed by more than one primary.
type Conflict struct {
	Key       domain.PubKey
	Primaries []domain.PubKey
}

// AmbiguityError lists every key that breaks attribution uniqueness.
type AmbiguityError struct {
	Conflicts []Conflict
}

func (e *AmbiguityError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		owners := make([]string, len(c.Primaries))
		for i, p := range c.Primaries {
			owners[i] = p.String()
		}
		parts = append(parts, fmt.Sprintf("%s claimed by [%s]", c.Key, strings.Join(owners, ", ")))
	}
	return "ambiguous alias table: " + strings.Join(parts, "; ")
}

// Table is an immutable, validated alias table.
type Table struct {
	aliases map[domain.PubKey][]domain.PubKey // primary -> sorted aliases
	owner   map[domain.PubKey]domain.PubKey   // alias -> primary
}

// NewTable validates raw and builds a Table. Self-aliases and repeated
// entries under one primary are ignored.
func NewTable(raw map[domain.PubKey][]domain.PubKey) (*Table, error) {
	t := &Table{
		aliases: make(map[domain.PubKey][]domain.PubKey, len(raw)),
		owner:   make(map[domain.PubKey]domain.PubKey),
	}

	claims := make(map[domain.PubKey][]domain.PubKey)
	for primary, list := range raw {
		seen := make(map[domain.PubKey]struct{}, len(list))
		for _, alias := range list {
			if alias == primary {
				continue
			}
			if _, dup := seen[alias]; dup {
				continue
			}
			seen[alias] = struct{}{}
			claims[alias] = append(claims[alias], primary)
			t.aliases[primary] = append(t.aliases[primary], alias)
		}
		if _, ok := t.aliases[primary]; !ok {
			t.aliases[primary] = nil
		}
	}

	var conflicts []Conflict
	for alias, primaries := range claims {
		owners := slices.Clone(primaries)
		if _, isPrimary := raw[alias]; isPrimary {
			owners = append(owners, alias)
		}
		if len(owners) > 1 {
			slices.SortFunc(owners, domain.ComparePubKeys)
			conflicts = append(conflicts, Conflict{Key: alias, Primaries: owners})
			continue
		}
		t.owner[alias] = primaries[0]
	}
	if len(conflicts) > 0 {
		slices.SortFunc(conflicts, func(a, b Conflict) int {
			return domain.ComparePubKeys(a.Key, b.Key)
		})
		return nil, &AmbiguityError{Conflicts: conflicts}
	}

	for primary := range t.aliases {
		slices.SortFunc(t.aliases[primary], domain.ComparePubKeys)
	}
	return t, nil
}

// ParseTable reads a JSON object {"<primary>": ["<alias>", ...]}.
func ParseTable(r io.Reader) (*Table, error) {
	var doc map[string][]string
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode alias table: %w", err)
	}

	raw := make(map[domain.PubKey][]domain.PubKey, len(doc))
	for p, list := range doc {
		primary, err := domain.ParsePubKey(p)
		if err != nil {
			return nil, fmt.Errorf("alias table primary: %w", err)
		}
		for _, a := range list {
			alias, err := domain.ParsePubKey(a)
			if err != nil {
				return nil, fmt.Errorf("alias table entry under %s: %w", p, err)
			}
			raw[primary] = append(raw[primary], alias)
		}
		if _, ok := raw[primary]; !ok {
			raw[primary] = nil
		}
	}
	return NewTable(raw)
}

// LoadTable reads an alias table file. An empty path yields an empty table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return NewTable(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias table: %w", err)
	}
	defer f.Close()
	return ParseTable(f)
}

// Resolve returns the member an authority is attributed to.
// Keys not listed as aliases are their own member.
func (t *Table) Resolve(authority domain.PubKey) domain.PubKey {
	if t == nil {
		return authority
	}
	if primary, ok := t.owner[authority]; ok {
		return primary
	}
	return authority
}

// Identity returns the member identity for wallet. An alias wallet
// canonicalizes to its primary.
func (t *Table) Identity(wallet domain.PubKey) domain.MemberIdentity {
	primary := t.Resolve(wallet)
	if t == nil {
		return domain.NewMemberIdentity(primary)
	}
	return domain.NewMemberIdentity(primary, t.aliases[primary]...)
}

// Primaries returns the primaries listed in the table, sorted.
func (t *Table) Primaries() []domain.PubKey {
	if t == nil {
		return nil
	}
	out := make([]domain.PubKey, 0, len(t.aliases))
	for p := range t.aliases {
		out = append(out, p)
	}
	slices.SortFunc(out, domain.ComparePubKeys)
	return out
}

// Len returns the number of alias entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.owner)
}
