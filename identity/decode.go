package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyDocument is returned by Decode for an empty body or JSON null.
var ErrEmptyDocument = errors.New("identity: empty document")

// CaseConvention selects the preferred key spelling of a userinfo document.
type CaseConvention int

const (
	// SnakeCase expects keys such as primary_email. It is the default.
	SnakeCase CaseConvention = iota
	// CamelCase expects keys such as primaryEmail.
	CamelCase
)

func (c CaseConvention) String() string {
	if c == CamelCase {
		return "camelCase"
	}
	return "snake_case"
}

// userFields is the projection table for UserIdentity. Its order is the
// declaration order of the struct and drives both decoding and Fields.
var userFields = []struct {
	camel, snake string
	get          func(*UserIdentity) any
	set          func(*UserIdentity, json.RawMessage) error
}{
	{"sub", "sub", func(u *UserIdentity) any { return strVal(u.Subject) }, setStr(func(u *UserIdentity) **string { return &u.Subject })},
	{"id", "id", func(u *UserIdentity) any { return strVal(u.ID) }, setStr(func(u *UserIdentity) **string { return &u.ID })},
	{"username", "username", func(u *UserIdentity) any { return strVal(u.Username) }, setStr(func(u *UserIdentity) **string { return &u.Username })},
	{"primaryEmail", "primary_email", func(u *UserIdentity) any { return strVal(u.PrimaryEmail) }, setStr(func(u *UserIdentity) **string { return &u.PrimaryEmail })},
	{"primaryPhone", "primary_phone", func(u *UserIdentity) any { return strVal(u.PrimaryPhone) }, setStr(func(u *UserIdentity) **string { return &u.PrimaryPhone })},
	{"name", "name", func(u *UserIdentity) any { return strVal(u.Name) }, setStr(func(u *UserIdentity) **string { return &u.Name })},
	{"picture", "picture", func(u *UserIdentity) any { return strVal(u.Picture) }, setStr(func(u *UserIdentity) **string { return &u.Picture })},
	{"identities", "identities", nil, setIdentities},
	{"lastSignInAt", "last_sign_in_at", func(u *UserIdentity) any { return intVal(u.LastSignInAt) }, setInt(func(u *UserIdentity) **int64 { return &u.LastSignInAt })},
	{"createdAt", "created_at", func(u *UserIdentity) any { return intVal(u.CreatedAt) }, setInt(func(u *UserIdentity) **int64 { return &u.CreatedAt })},
	{"updatedAt", "updated_at", func(u *UserIdentity) any { return intVal(u.UpdatedAt) }, setInt(func(u *UserIdentity) **int64 { return &u.UpdatedAt })},
	{"applicationId", "application_id", func(u *UserIdentity) any { return strVal(u.ApplicationID) }, setStr(func(u *UserIdentity) **string { return &u.ApplicationID })},
	{"isSuspended", "is_suspended", func(u *UserIdentity) any { return boolVal(u.IsSuspended) }, setBool(func(u *UserIdentity) **bool { return &u.IsSuspended })},
	{"customData", "custom_data", func(u *UserIdentity) any { return rawVal(u.CustomData) }, setRaw(func(u *UserIdentity) *json.RawMessage { return &u.CustomData })},
}

// Decode parses a userinfo document. Keys are looked up in the spelling of
// conv first, then in the other convention, then case- and
// underscore-insensitively. Unknown keys are ignored.
func Decode(data []byte, conv CaseConvention) (*UserIdentity, error) {
	if isNull(data) {
		return nil, ErrEmptyDocument
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("identity: invalid document: %w", err)
	}
	if doc == nil {
		return nil, ErrEmptyDocument
	}

	u := &UserIdentity{}
	for _, f := range userFields {
		primary, alt := f.snake, f.camel
		if conv == CamelCase {
			primary, alt = f.camel, f.snake
		}
		raw, ok := lookup(doc, primary, alt)
		if !ok || isNull(raw) {
			continue
		}
		if err := f.set(u, raw); err != nil {
			return nil, fmt.Errorf("identity: field %q: %w", primary, err)
		}
	}
	return u, nil
}

func setStr(field func(*UserIdentity) **string) func(*UserIdentity, json.RawMessage) error {
	return func(u *UserIdentity, raw json.RawMessage) error {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*field(u) = &s
		return nil
	}
}

func setInt(field func(*UserIdentity) **int64) func(*UserIdentity, json.RawMessage) error {
	return func(u *UserIdentity, raw json.RawMessage) error {
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		*field(u) = &n
		return nil
	}
}

func setBool(field func(*UserIdentity) **bool) func(*UserIdentity, json.RawMessage) error {
	return func(u *UserIdentity, raw json.RawMessage) error {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return err
		}
		*field(u) = &b
		return nil
	}
}

func setRaw(field func(*UserIdentity) *json.RawMessage) func(*UserIdentity, json.RawMessage) error {
	return func(u *UserIdentity, raw json.RawMessage) error {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		*field(u) = json.RawMessage(buf.Bytes())
		return nil
	}
}

func setIdentities(u *UserIdentity, raw json.RawMessage) error {
	var byProvider map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byProvider); err != nil {
		return err
	}
	for provider, entry := range byProvider {
		if isNull(entry) {
			continue
		}
		si, err := decodeSocialIdentity(Provider(provider), entry)
		if err != nil {
			return fmt.Errorf("%s: %w", provider, err)
		}
		u.Identities = append(u.Identities, si)
	}
	u.Identities = sortedIdentities(u.Identities)
	return nil
}

func decodeSocialIdentity(p Provider, raw json.RawMessage) (SocialIdentity, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SocialIdentity{}, err
	}
	si := SocialIdentity{Provider: p}
	var err error
	if si.UserID, err = optString(doc, "userId", "user_id"); err != nil {
		return SocialIdentity{}, err
	}
	details, ok := lookup(doc, "details", "details")
	if !ok || isNull(details) {
		return si, nil
	}
	var d map[string]json.RawMessage
	if err := json.Unmarshal(details, &d); err != nil {
		return SocialIdentity{}, fmt.Errorf("details: %w", err)
	}
	for _, s := range []struct {
		dst  **string
		keys [2]string
	}{
		{&si.Details.ID, [2]string{"id", "id"}},
		{&si.Details.Name, [2]string{"name", "name"}},
		{&si.Details.Email, [2]string{"email", "email"}},
		{&si.Details.Avatar, [2]string{"avatar", "avatar"}},
	} {
		if *s.dst, err = optString(d, s.keys[0], s.keys[1]); err != nil {
			return SocialIdentity{}, fmt.Errorf("details: %w", err)
		}
	}
	if rd, ok := lookup(d, "rawData", "raw_data"); ok && !isNull(rd) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, rd); err != nil {
			return SocialIdentity{}, fmt.Errorf("details: rawData: %w", err)
		}
		si.Details.RawData = json.RawMessage(buf.Bytes())
	}
	return si, nil
}

func optString(doc map[string]json.RawMessage, primary, alt string) (*string, error) {
	raw, ok := lookup(doc, primary, alt)
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", primary, err)
	}
	return &s, nil
}

// lookup finds primary, then alt, then any key equal to primary once case and
// underscores are ignored. Ties in the loose match resolve to the smallest key.
func lookup(doc map[string]json.RawMessage, primary, alt string) (json.RawMessage, bool) {
	if v, ok := doc[primary]; ok {
		return v, true
	}
	if v, ok := doc[alt]; ok {
		return v, true
	}
	want := looseKey(primary)
	var matches []string
	for k := range doc {
		if looseKey(k) == want {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}
	sort.Strings(matches)
	return doc[matches[0]], true
}

func looseKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func isNull(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
