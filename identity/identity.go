// Package identity models the normalized account record returned by the
// identity provider's userinfo endpoint.
package identity

import (
	"encoding/json"
	"sort"
)

// Provider names a social identity provider. It tags SocialIdentity values;
// unknown providers are preserved under their own key.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderPatreon Provider = "patreon"
)

// knownProviders fixes the order in which social identities are projected.
var knownProviders = []Provider{ProviderGitHub, ProviderPatreon}

// Details is the normalized profile a social provider reported for a user.
type Details struct {
	ID      *string
	Name    *string
	Email   *string
	Avatar  *string
	RawData json.RawMessage
}

// SocialIdentity is one linked social account.
type SocialIdentity struct {
	Provider Provider
	UserID   *string
	Details  Details
}

// UserIdentity is the account record of an authenticated caller. Nil fields
// were absent or null in the provider's response.
//
// A UserIdentity belongs to one authentication attempt and must not be
// shared between requests.
type UserIdentity struct {
	Subject       *string
	ID            *string
	Username      *string
	PrimaryEmail  *string
	PrimaryPhone  *string
	Name          *string
	Picture       *string
	Identities    []SocialIdentity
	LastSignInAt  *int64
	CreatedAt     *int64
	UpdatedAt     *int64
	ApplicationID *string
	IsSuspended   *bool
	CustomData    json.RawMessage
}

// Identity returns the social identity linked for p.
func (u *UserIdentity) Identity(p Provider) (SocialIdentity, bool) {
	for _, si := range u.Identities {
		if si.Provider == p {
			return si, true
		}
	}
	return SocialIdentity{}, false
}

// Field is one named entry of the projection of a UserIdentity. Value is nil
// for absent fields, otherwise one of string, int64, bool or json.RawMessage.
type Field struct {
	Name  string
	Value any
}

// Fields projects u into an ordered list of named values following the
// declaration order of UserIdentity. Social identities are flattened in place
// as identities.<provider>.<field>. Absent values are reported with a nil
// Value so callers decide how to filter.
func (u *UserIdentity) Fields() []Field {
	out := make([]Field, 0, len(userFields)+6*len(u.Identities))
	for _, f := range userFields {
		if f.camel == "identities" {
			out = append(out, u.identityFields()...)
			continue
		}
		out = append(out, Field{Name: f.camel, Value: f.get(u)})
	}
	return out
}

func (u *UserIdentity) identityFields() []Field {
	var out []Field
	for _, si := range sortedIdentities(u.Identities) {
		prefix := "identities." + string(si.Provider) + "."
		out = append(out,
			Field{Name: prefix + "userId", Value: strVal(si.UserID)},
			Field{Name: prefix + "details.id", Value: strVal(si.Details.ID)},
			Field{Name: prefix + "details.name", Value: strVal(si.Details.Name)},
			Field{Name: prefix + "details.email", Value: strVal(si.Details.Email)},
			Field{Name: prefix + "details.avatar", Value: strVal(si.Details.Avatar)},
			Field{Name: prefix + "details.rawData", Value: rawVal(si.Details.RawData)},
		)
	}
	return out
}

// sortedIdentities orders known providers first, then the rest by name.
func sortedIdentities(in []SocialIdentity) []SocialIdentity {
	rank := func(p Provider) int {
		for i, k := range knownProviders {
			if k == p {
				return i
			}
		}
		return len(knownProviders)
	}
	out := append([]SocialIdentity(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Provider), rank(out[j].Provider)
		if ri != rj {
			return ri < rj
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// The typed nil checks below keep a nil pointer from turning into a non-nil
// interface value.

func strVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intVal(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolVal(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func rawVal(r json.RawMessage) any {
	if isNull(r) {
		return nil
	}
	return r
}
