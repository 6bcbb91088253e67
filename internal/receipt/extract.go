package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"smartasset/internal/core"
)

const fence = "```"

// ExtractJSON returns the JSON payload of a model reply. The reply must be a
// bare JSON value, or exactly one fenced block holding a JSON value with
// nothing before or after it. Anything else fails closed.
func ExtractJSON(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	if s == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(s, fence) {
		body, err := unfence(s)
		if err != nil {
			return nil, err
		}
		s = body
	}

	if s == "" || (s[0] != '[' && s[0] != '{') {
		return nil, fmt.Errorf("%w: payload does not start with [ or {", ErrMalformedResponse)
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	return []byte(s), nil
}

func unfence(s string) (string, error) {
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return "", fmt.Errorf("%w: unterminated code fence", ErrMalformedResponse)
	}
	lang := strings.TrimSpace(s[len(fence):nl])
	if lang != "" && !strings.EqualFold(lang, "json") {
		return "", fmt.Errorf("%w: code fence language %q", ErrMalformedResponse, lang)
	}
	rest := s[nl+1:]
	if !strings.HasSuffix(rest, fence) {
		return "", fmt.Errorf("%w: text after closing fence", ErrMalformedResponse)
	}
	body := rest[:len(rest)-len(fence)]
	if strings.Contains(body, fence) {
		return "", fmt.Errorf("%w: more than one code fence", ErrMalformedResponse)
	}
	return strings.TrimSpace(body), nil
}

// ParseOptions constrains how raw model objects become drafts.
type ParseOptions struct {
	Categories []string
	Fallback   string
	Today      core.Date
}

// ParseDrafts decodes a model reply into drafts. A single object is treated as
// a one-element list. Type is always Expense; categories outside the list
// become the fallback; unreadable dates become today.
func ParseDrafts(reply string, opts ParseOptions) ([]core.Draft, error) {
	payload, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var objects []map[string]any
	switch t := v.(type) {
	case map[string]any:
		objects = []map[string]any{t}
	case []any:
		for i, el := range t {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d", ErrUnexpectedShape, i)
			}
			objects = append(objects, obj)
		}
	default:
		return nil, ErrUnexpectedShape
	}

	canonical := make(map[string]string, len(opts.Categories))
	for _, c := range opts.Categories {
		canonical[strings.ToLower(strings.TrimSpace(c))] = c
	}

	drafts := make([]core.Draft, 0, len(objects))
	for _, obj := range objects {
		d := core.Draft{
			Date:   text(obj["date"]),
			Item:   strings.TrimSpace(text(obj["item"])),
			Amount: strings.TrimSpace(text(obj["amount"])),
			Note:   strings.TrimSpace(text(obj["note"])),
			Type:   string(core.Expense),
		}
		if _, err := core.ParseDate(d.Date); err != nil {
			d.Date = opts.Today.String()
		}
		if c, ok := canonical[strings.ToLower(strings.TrimSpace(text(obj["category"])))]; ok {
			d.Category = c
		} else {
			d.Category = opts.Fallback
		}
		if amt, err := core.ParseAmount(d.Amount); err == nil && amt.IsNegative() {
			d.Amount = amt.Abs().StringFixed(2)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// text renders a decoded JSON scalar as raw text; null and containers become "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
