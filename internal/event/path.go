package event

import "strings"

// Path addresses one writable slot of an Event.
// Top-level slots use Top; key_info slots use Key (known) or ExtraKey (unknown).
type Path struct {
	Top      string
	Key      Field
	ExtraKey string
}

// Top-level slot names.
const (
	TopTitle   = "title"
	TopType    = "type"
	TopSummary = "summary"
	TopTags    = "tags"
	TopKeyInfo = "key_info"
)

const keyInfoPrefix = TopKeyInfo + "."

// ParsePath accepts "title", "tags", "key_info.date", a bare "date", or
// "key_info.<anything>". It returns false for empty input or unknown bare names.
func ParsePath(s string) (Path, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, false
	}

	lower := strings.ToLower(s)
	switch lower {
	case TopTitle, TopType, TopSummary, TopTags:
		return Path{Top: lower}, true
	case "tag":
		return Path{Top: TopTags}, true
	}

	if rest, ok := strings.CutPrefix(s, keyInfoPrefix); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return Path{}, false
		}
		if f, ok := ParseField(rest); ok {
			return Path{Top: TopKeyInfo, Key: f}, true
		}
		return Path{Top: TopKeyInfo, ExtraKey: rest}, true
	}

	if f, ok := ParseField(s); ok {
		return Path{Top: TopKeyInfo, Key: f}, true
	}
	return Path{}, false
}

// KeyPath is a shorthand for the path of a known key_info field.
func KeyPath(f Field) Path {
	return Path{Top: TopKeyInfo, Key: f}
}

// String renders the canonical dotted form, e.g. "key_info.date".
func (p Path) String() string {
	switch {
	case p.Top != TopKeyInfo:
		return p.Top
	case p.Key != "":
		return keyInfoPrefix + string(p.Key)
	default:
		return keyInfoPrefix + p.ExtraKey
	}
}

// Get reads the value at p ("" when absent). Tags are joined with ", ".
func (e Event) Get(p Path) string {
	switch p.Top {
	case TopTitle:
		return e.Title
	case TopType:
		return string(e.Type)
	case TopSummary:
		return e.Summary
	case TopTags:
		return strings.Join(e.Tags, ", ")
	case TopKeyInfo:
		if p.Key != "" {
			return e.KeyInfo.Get(p.Key)
		}
		return e.KeyInfo.Extra[p.ExtraKey]
	default:
		return ""
	}
}

// Has reports whether the slot at p is filled.
func (e Event) Has(p Path) bool {
	switch p.Top {
	case TopTags:
		return len(e.Tags) > 0
	case TopKeyInfo:
		if p.Key != "" {
			return e.KeyInfo.Has(p.Key)
		}
		return strings.TrimSpace(e.KeyInfo.Extra[p.ExtraKey]) != ""
	default:
		return strings.TrimSpace(e.Get(p)) != ""
	}
}
