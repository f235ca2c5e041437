package lesson

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateMissingKey is matched by *MissingKeyError.
var ErrTemplateMissingKey = errors.New("template missing key")

// #region missing-key-error

// MissingKeyError lists placeholders that had no value at render time.
type MissingKeyError struct {
	Keys []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("template missing key(s): %s", strings.Join(e.Keys, ", "))
}

func (e *MissingKeyError) Unwrap() error { return ErrTemplateMissingKey }

// #endregion

// #region template

type segment struct {
	text  string
	isKey bool
}

// Template is a prompt or summary string with {key} placeholders.
// Literal braces are written {{ and }}.
type Template struct {
	raw      string
	segments []segment
	keys     []string
}

// ParseTemplate splits s into literal and placeholder segments.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	var lit strings.Builder
	seen := map[string]bool{}

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed '{' at offset %d", i)
			}
			key := strings.TrimSpace(s[i+1 : i+1+end])
			// format specs like {age:d} render as plain values
			if colon := strings.IndexByte(key, ':'); colon >= 0 {
				key = key[:colon]
			}
			if key == "" {
				return nil, fmt.Errorf("empty placeholder at offset %d", i)
			}
			flush()
			t.segments = append(t.segments, segment{text: key, isKey: true})
			if !seen[key] {
				seen[key] = true
				t.keys = append(t.keys, key)
			}
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParseTemplate panics on a malformed template. Test helper.
func MustParseTemplate(s string) *Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns the template as written.
func (t *Template) Raw() string { return t.raw }

// Keys returns the distinct placeholder names in order of first use.
func (t *Template) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Render substitutes values. Placeholders without a value stay visible as
// {key} and are reported through a *MissingKeyError; the rendered string is
// returned either way.
func (t *Template) Render(values map[string]string) (string, error) {
	var b strings.Builder
	var missing []string
	reported := map[string]bool{}

	for _, seg := range t.segments {
		if !seg.isKey {
			b.WriteString(seg.text)
			continue
		}
		v, ok := values[seg.text]
		if !ok {
			b.WriteString("{" + seg.text + "}")
			if !reported[seg.text] {
				reported[seg.text] = true
				missing = append(missing, seg.text)
			}
			continue
		}
		b.WriteString(v)
	}

	if len(missing) > 0 {
		return b.String(), &MissingKeyError{Keys: missing}
	}
	return b.String(), nil
}

// #endregion
