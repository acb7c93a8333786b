// Package id defines TypeID-based identity types for topup entities.
//
// Orders, plans, referrals and notifications carry a single ID struct whose
// prefix names the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique and URL-safe in the format "prefix_suffix", which keeps them usable
// as button payloads in chat front-ends. Customers are keyed by the channel
// identity the front-end supplies and therefore have no TypeID.
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all topup entity types.
const (
	PrefixPlan         Prefix = "plan" // Catalog plan
	PrefixOrder        Prefix = "ord"  // Customer order
	PrefixReferral     Prefix = "ref"  // Referral link
	PrefixNotification Prefix = "ntf"  // Outbound notification
)

// Known reports whether p is one of the topup entity prefixes.
func (p Prefix) Known() bool {
	switch p {
	case PrefixPlan, PrefixOrder, PrefixReferral, PrefixNotification:
		return true
	}
	return false
}

// ErrEmpty is returned when parsing an empty identifier.
var ErrEmpty = errors.New("id: empty identifier")

// ParseError describes an identifier that could not be parsed, typically a
// stale or tampered callback payload.
type ParseError struct {
	Input string
	Want  Prefix // empty when any known prefix is accepted
	Err   error
}

func (e *ParseError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("id: %q is not a %s id: %v", e.Input, e.Want, e.Err)
	}
	return fmt.Sprintf("id: %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ID identifies a topup entity. The zero value is Nil.
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. It panics on an unknown prefix.
func New(p Prefix) ID {
	if !p.Known() {
		panic(fmt.Sprintf("id: unknown prefix %q", p))
	}
	tid, err := typeid.Generate(string(p))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", p, err))
	}
	return ID{tid: tid, ok: true}
}

// Parse decodes an identifier carrying any known topup prefix.
func Parse(s string) (ID, error) {
	return parse(s, "")
}

func parse(s string, want Prefix) (ID, error) {
	if s == "" {
		return Nil, &ParseError{Input: s, Want: want, Err: ErrEmpty}
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, &ParseError{Input: s, Want: want, Err: err}
	}

	got := Prefix(tid.Prefix())
	switch {
	case want != "" && got != want:
		return Nil, &ParseError{Input: s, Want: want, Err: fmt.Errorf("prefix is %q", got)}
	case !got.Known():
		return Nil, &ParseError{Input: s, Err: fmt.Errorf("unknown prefix %q", got)}
	}
	return ID{tid: tid, ok: true}, nil
}

// PlanID is a type-safe identifier for catalog plans (prefix: "plan").
type PlanID = ID

// OrderID is a type-safe identifier for orders (prefix: "ord").
type OrderID = ID

// ReferralID is a type-safe identifier for referral links (prefix: "ref").
type ReferralID = ID

// NotificationID is a type-safe identifier for notifications (prefix: "ntf").
type NotificationID = ID

func NewPlanID() ID         { return New(PrefixPlan) }
func NewOrderID() ID        { return New(PrefixOrder) }
func NewReferralID() ID     { return New(PrefixReferral) }
func NewNotificationID() ID { return New(PrefixNotification) }

func ParsePlanID(s string) (ID, error)         { return parse(s, PrefixPlan) }
func ParseOrderID(s string) (ID, error)        { return parse(s, PrefixOrder) }
func ParseReferralID(s string) (ID, error)     { return parse(s, PrefixReferral) }
func ParseNotificationID(s string) (ID, error) { return parse(s, PrefixNotification) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.ok }

// MarshalText implements encoding.TextMarshaler. Nil encodes as empty text.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text decodes to Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.ok {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.tid.String(), nil
}

// Scan implements sql.Scanner. NULL and empty values scan to Nil.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
