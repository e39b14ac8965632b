package normalize

import (
	"strings"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// commonLocations maps frequent campus places to English.
var commonLocations = map[string]string{
	"操场":  "Playground",
	"图书馆": "Library",
	"体育馆": "Gymnasium",
	"教室":  "Classroom",
	"教学楼": "Teaching Building",
	"食堂":  "Cafeteria",
}

// NormalizeLocation renders a location for the output language.
//
//	zh     unchanged
//	zh-en  "中文 | English" when the place is known and not already paired
//	en     English when known, otherwise unchanged
func NormalizeLocation(raw string, lang event.Language) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return v
	}

	switch lang {
	case event.LangZhEn:
		if strings.Contains(v, "|") {
			return v
		}
		if en, ok := commonLocations[v]; ok {
			return v + BilingualSeparator + en
		}
		return v
	case event.LangEn:
		if en, ok := commonLocations[v]; ok {
			return en
		}
		return v
	default:
		return v
	}
}
