package nlu

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
)

// extractJSONObject strips code fences and returns the outermost {...} span.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		// Drop the fence line ("```json") and the closing fence.
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		}
		if i := strings.LastIndex(rest, "```"); i >= 0 {
			rest = rest[:i]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in reply", apperrors.ErrMalformedModelOutput)
	}

	obj := s[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid JSON", apperrors.ErrMalformedModelOutput)
	}
	return obj, nil
}

// parseIntentResult reads a classification reply.
func parseIntentResult(raw string) (event.IntentResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return event.UnclearResult(), err
	}

	r := gjson.Parse(obj)
	intent := r.Get("intent")
	if !intent.Exists() {
		return event.UnclearResult(), fmt.Errorf("%w: missing intent", apperrors.ErrMalformedModelOutput)
	}

	return event.IntentResult{
		Intent:     event.ParseIntent(intent.String()),
		Confidence: clamp(r.Get("confidence").Float()),
		Entities:   parseEntities(r.Get("entities")),
		Reasoning:  r.Get("reasoning").String(),
	}, nil
}

// parseExtraction reads an extraction reply: the explicit entity list followed
// by structuredData flattened into entities. A structured field is skipped
// when an explicit entity already targets the same path.
func parseExtraction(raw string) ([]event.Entity, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return []event.Entity{}, err
	}

	r := gjson.Parse(obj)
	out := parseEntities(r.Get("entities"))

	seen := make(map[string]bool, len(out))
	for _, e := range out {
		if p, ok := event.ParsePath(e.Field); ok {
			seen[p.String()] = true
		}
	}

	sd := r.Get("structuredData")
	if !sd.Exists() {
		sd = r.Get("structured_data")
	}
	if !sd.IsObject() {
		return out, nil
	}

	conf := clamp(r.Get("confidence").Float())
	add := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		p, ok := event.ParsePath(field)
		if !ok || seen[p.String()] {
			return
		}
		out = append(out, event.Entity{Type: field, Value: value, Field: p.String(), Confidence: conf})
	}

	for _, top := range []string{event.TopTitle, event.TopType, event.TopSummary} {
		add(top, sd.Get(top).String())
	}

	if !seen[event.TopTags] {
		for _, tag := range flattenValues(sd.Get("tags")) {
			if tag = strings.TrimSpace(tag); tag != "" {
				out = append(out, event.Entity{Type: event.TopTags, Value: tag, Field: event.TopTags, Confidence: conf})
			}
		}
	}

	keyInfo := sd.Get("key_info")
	if !keyInfo.Exists() {
		keyInfo = sd.Get("keyInfo")
	}
	keyInfo.ForEach(func(k, v gjson.Result) bool {
		add(event.TopKeyInfo+"."+k.String(), scalar(v))
		return true
	})

	return out, nil
}

// parseEntities reads an entity array. Entries without a value are dropped;
// array values expand into one entity per element.
func parseEntities(arr gjson.Result) []event.Entity {
	out := []event.Entity{}
	if !arr.IsArray() {
		return out
	}

	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		base := event.Entity{
			Type:       item.Get("type").String(),
			Field:      strings.TrimSpace(item.Get("field").String()),
			Confidence: clamp(item.Get("confidence").Float()),
		}
		for _, v := range flattenValues(item.Get("value")) {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			e := base
			e.Value = v
			out = append(out, e)
		}
		return true
	})
	return out
}

// flattenValues returns array elements as strings, or the single scalar.
func flattenValues(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	if v.IsArray() {
		var out []string
		v.ForEach(func(_, el gjson.Result) bool {
			out = append(out, scalar(el))
			return true
		})
		return out
	}
	return []string{scalar(v)}
}

// scalar renders a JSON value as the string stored in a draft.
func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.String()
	default:
		if v.IsArray() {
			return strings.Join(flattenValues(v), ", ")
		}
		return v.Raw
	}
}

func clamp(f float64) float64 {
	return min(max(f, 0), 1)
}
