package app

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a JSON key was present, explicitly null, or
// carried a value. A zero Optional means the key was absent.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional holding JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Present reports whether the key carried a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// MemberRef is one entry of a project's members list: either a numeric user
// id or an email address to resolve. Entries of any other JSON type decode
// to the zero MemberRef and are dropped.
type MemberRef struct {
	ID    int64
	Email string
}

func (m *MemberRef) UnmarshalJSON(data []byte) error {
	*m = MemberRef{}
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		m.ID = id
		return nil
	}
	var email string
	if err := json.Unmarshal(data, &email); err == nil {
		m.Email = email
	}
	return nil
}

// MemberIDs is a convenience for callers that already know user ids.
func MemberIDs(ids ...int64) []MemberRef {
	refs := make([]MemberRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, MemberRef{ID: id})
	}
	return refs
}
