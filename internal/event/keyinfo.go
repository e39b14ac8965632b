package event

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Field names a recognized key_info entry.
type Field string

const (
	FieldDate             Field = "date"
	FieldTime             Field = "time"
	FieldLocation         Field = "location"
	FieldDeadline         Field = "deadline"
	FieldCompany          Field = "company"
	FieldPosition         Field = "position"
	FieldSalary           Field = "salary"
	FieldLink             Field = "link"
	FieldReferral         Field = "referral"
	FieldSpeaker          Field = "speaker"
	FieldOrganizer        Field = "organizer"
	FieldRegistrationLink Field = "registration_link"
	FieldEducation        Field = "education"
	FieldContact          Field = "contact"
)

// Fields returns every recognized key_info field in a stable order.
func Fields() []Field {
	return []Field{
		FieldDate, FieldTime, FieldLocation, FieldDeadline,
		FieldCompany, FieldPosition, FieldSalary, FieldLink, FieldReferral,
		FieldSpeaker, FieldOrganizer, FieldRegistrationLink,
		FieldEducation, FieldContact,
	}
}

var fieldsByType = map[Type][]Field{
	TypeRecruit: {
		FieldCompany, FieldPosition, FieldDeadline, FieldSalary, FieldLink,
		FieldReferral, FieldEducation, FieldContact, FieldLocation,
	},
	TypeActivity: {
		FieldDate, FieldTime, FieldLocation, FieldDeadline,
		FieldSpeaker, FieldOrganizer, FieldRegistrationLink, FieldContact,
	},
	TypeLecture: {
		FieldDate, FieldTime, FieldLocation, FieldDeadline,
		FieldSpeaker, FieldOrganizer, FieldRegistrationLink, FieldContact,
	},
}

// FieldsFor returns the keys recognized for an event type.
// An unknown type recognizes every field.
func FieldsFor(t Type) []Field {
	if fs, ok := fieldsByType[t]; ok {
		return slices.Clone(fs)
	}
	return Fields()
}

// KnownFor reports whether f is meaningful for events of type t.
func KnownFor(t Type, f Field) bool {
	return slices.Contains(FieldsFor(t), f)
}

// ParseField maps a key name (case-insensitive, camelCase tolerated) to a Field.
func ParseField(s string) (Field, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "registrationlink", "registration-link", "signup_link":
		return FieldRegistrationLink, true
	case "date_time", "datetime":
		return FieldDate, true
	}
	f := Field(key)
	if slices.Contains(Fields(), f) {
		return f, true
	}
	return "", false
}

// KeyInfo holds the type-dependent details of an event.
// It serializes as a flat JSON object; unrecognized keys survive in Extra.
type KeyInfo struct {
	Date             string
	Time             string
	Location         string
	Deadline         string
	Company          string
	Position         string
	Salary           string
	Link             string
	Referral         *bool
	Speaker          string
	Organizer        string
	RegistrationLink string
	Education        string
	Contact          string

	Extra map[string]string
}

func (k *KeyInfo) slot(f Field) *string {
	switch f {
	case FieldDate:
		return &k.Date
	case FieldTime:
		return &k.Time
	case FieldLocation:
		return &k.Location
	case FieldDeadline:
		return &k.Deadline
	case FieldCompany:
		return &k.Company
	case FieldPosition:
		return &k.Position
	case FieldSalary:
		return &k.Salary
	case FieldLink:
		return &k.Link
	case FieldSpeaker:
		return &k.Speaker
	case FieldOrganizer:
		return &k.Organizer
	case FieldRegistrationLink:
		return &k.RegistrationLink
	case FieldEducation:
		return &k.Education
	case FieldContact:
		return &k.Contact
	default:
		return nil
	}
}

// Get returns the string form of a field ("" when absent).
func (k KeyInfo) Get(f Field) string {
	if f == FieldReferral {
		if k.Referral == nil {
			return ""
		}
		return strconv.FormatBool(*k.Referral)
	}
	if p := k.slot(f); p != nil {
		return *p
	}
	return ""
}

// Has reports whether a field carries a non-blank value.
func (k KeyInfo) Has(f Field) bool {
	if f == FieldReferral {
		return k.Referral != nil
	}
	return strings.TrimSpace(k.Get(f)) != ""
}

// Set writes a field. Referral accepts boolean-ish strings; anything else clears it.
func (k *KeyInfo) Set(f Field, v string) {
	if f == FieldReferral {
		b, ok := parseBool(v)
		if !ok {
			k.Referral = nil
			return
		}
		k.Referral = &b
		return
	}
	if p := k.slot(f); p != nil {
		*p = v
	}
}

// SetExtra stores an unrecognized key verbatim.
func (k *KeyInfo) SetExtra(key, v string) {
	if k.Extra == nil {
		k.Extra = make(map[string]string)
	}
	k.Extra[key] = v
}

// Clone returns a deep copy.
func (k KeyInfo) Clone() KeyInfo {
	out := k
	if k.Referral != nil {
		v := *k.Referral
		out.Referral = &v
	}
	out.Extra = maps.Clone(k.Extra)
	return out
}

// IsEmpty reports whether no field is set.
func (k KeyInfo) IsEmpty() bool {
	for _, f := range Fields() {
		if k.Has(f) {
			return false
		}
	}
	return len(k.Extra) == 0
}

// MarshalJSON writes the flat key_info object.
func (k KeyInfo) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(k.Extra)+4)
	for key, v := range k.Extra {
		m[key] = v
	}
	for _, f := range Fields() {
		if f == FieldReferral {
			if k.Referral != nil {
				m[string(f)] = *k.Referral
			}
			continue
		}
		if v := k.Get(f); v != "" {
			m[string(f)] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat object whose values are strings, booleans, or numbers.
func (k *KeyInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("key_info: %w", err)
	}
	*k = KeyInfo{}
	for key, val := range raw {
		s := stringify(val)
		if f, ok := ParseField(key); ok {
			k.Set(f, s)
			continue
		}
		k.SetExtra(key, s)
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1", "是", "有", "内推", "可内推":
		return true, true
	case "false", "no", "n", "0", "否", "无", "没有":
		return false, true
	default:
		return false, false
	}
}
