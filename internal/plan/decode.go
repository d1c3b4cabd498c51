package plan

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
)

// StripFences removes a surrounding markdown code fence, with or without a json tag.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if len(t) >= 4 && strings.EqualFold(t[:4], "json") {
		t = t[4:]
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// Decode parses model output into an untyped value. Numbers stay json.Number so integer params keep their precision.
func Decode(text string) (any, error) {
	body := StripFences(text)
	if body == "" {
		return nil, apperr.New(apperr.KindDecode, "model returned an empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, err, "model returned invalid JSON")
	}
	if dec.More() {
		return nil, apperr.New(apperr.KindDecode, "model returned trailing data after JSON")
	}
	return v, nil
}
