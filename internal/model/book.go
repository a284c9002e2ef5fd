package model

import (
	"encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Member names the catalog itself interprets.  Every other member of a
// book object is carried along untouched.
const (
	FieldID          = "id"
	FieldIsLoanedOut = "isLoanedOut"
	FieldLoanee      = "loanee"
	FieldLoanDate    = "loanDate"
)

// ErrNotObject is returned when a book is decoded from anything but a JSON
// object.
var ErrNotObject = errors.New("book must be a JSON object")

// Book is a catalog record.  ID and the loan fields are typed; descriptive
// members such as title or author live in Extra as raw JSON and round-trip
// byte for byte.
//
// A book that is not loaned out has an empty Loanee and LoanDate.
type Book struct {
	ID          int64
	IsLoanedOut bool
	Loanee      string
	LoanDate    string
	Extra       map[string]json.RawMessage
}

// Loaned reports whether the book is in the Loaned state.
func (b Book) Loaned() bool { return b.IsLoanedOut }

// Field returns the string value of a descriptive member, or "" when it is
// missing or not a string.
func (b Book) Field(name string) string {
	raw, ok := b.Extra[name]
	if !ok {
		return ""
	}
	var s string
	if err := codec.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Clone returns a copy that shares no map with b.
func (b Book) Clone() Book {
	out := b
	if b.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Normalize clears loan details of a book that is not loaned out.
func (b *Book) Normalize() {
	if !b.IsLoanedOut {
		b.Loanee = ""
		b.LoanDate = ""
	}
}

func (b Book) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Extra)+4)
	for k, v := range b.Extra {
		m[k] = v
	}
	m[FieldID] = b.ID
	m[FieldIsLoanedOut] = b.IsLoanedOut
	m[FieldLoanee] = b.Loanee
	m[FieldLoanDate] = b.LoanDate
	return codec.Marshal(m)
}

func (b *Book) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := codec.Unmarshal(data, &members); err != nil {
		return err
	}
	if members == nil {
		return ErrNotObject
	}
	var out Book
	if err := out.apply(members); err != nil {
		return err
	}
	*b = out
	return nil
}

// apply overwrites b with every member present in members.  A JSON null
// resets a typed field to its zero value.
func (b *Book) apply(members map[string]json.RawMessage) error {
	for name, raw := range members {
		var err error
		switch name {
		case FieldID:
			err = decodeField(raw, &b.ID)
		case FieldIsLoanedOut:
			err = decodeField(raw, &b.IsLoanedOut)
		case FieldLoanee:
			err = decodeField(raw, &b.Loanee)
		case FieldLoanDate:
			err = decodeField(raw, &b.LoanDate)
		default:
			if b.Extra == nil {
				b.Extra = make(map[string]json.RawMessage)
			}
			b.Extra[name] = append(json.RawMessage(nil), raw...)
		}
		if err != nil {
			return fmt.Errorf("book member %q: %w", name, err)
		}
	}
	return nil
}

func decodeField[T any](raw json.RawMessage, dst *T) error {
	var zero T
	if string(raw) == "null" {
		*dst = zero
		return nil
	}
	return codec.Unmarshal(raw, dst)
}

// BookPatch is a partial book: the members a client sent in an update.
// Members that are absent keep their stored value.
type BookPatch map[string]json.RawMessage

// ID returns the id the patch targets.
func (p BookPatch) ID() (int64, error) {
	raw, ok := p[FieldID]
	if !ok {
		return 0, errors.New("patch has no id")
	}
	var id int64
	if err := codec.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("patch id: %w", err)
	}
	return id, nil
}

// ApplyTo returns b with the patch merged in.  The id is never changed.
func (p BookPatch) ApplyTo(b Book) (Book, error) {
	out := b.Clone()
	members := make(map[string]json.RawMessage, len(p))
	for k, v := range p {
		if k == FieldID {
			continue
		}
		members[k] = v
	}
	if err := out.apply(members); err != nil {
		return Book{}, err
	}
	return out, nil
}
