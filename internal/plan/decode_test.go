package plan

import (
	"encoding/json"
	"testing"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"  {\"a\":1}\n":           `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```JSON {\"a\":1}```":    `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestDecode(t *testing.T) {
	t.Run("fenced and bare decode identically", func(t *testing.T) {
		bare, err := Decode(`{"action":"list_inbox","params":{"top":5}}`)
		require.NoError(t, err)
		fenced, err := Decode("```json\n{\"action\":\"list_inbox\",\"params\":{\"top\":5}}\n```")
		require.NoError(t, err)
		assert.Equal(t, bare, fenced)
	})

	t.Run("numbers keep json.Number", func(t *testing.T) {
		v, err := Decode(`{"params":{"top":5}}`)
		require.NoError(t, err)
		params := v.(map[string]any)["params"].(map[string]any)
		assert.Equal(t, json.Number("5"), params["top"])
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Decode("Sure! Here is your plan")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindDecode))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Decode("```json\n```")
		assert.True(t, apperr.Is(err, apperr.KindDecode))
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := Decode(`{"a":1} {"b":2}`)
		assert.True(t, apperr.Is(err, apperr.KindDecode))
	})

	t.Run("decoded plan validates", func(t *testing.T) {
		text := "```json\n{\"action\":\"list_contacts\",\"params\":{\"top\":10,\"domain\":\"gmail.com\"},\"reason\":\"ok\",\"confidence\":0.8}\n```"
		v, err := Decode(text)
		require.NoError(t, err)
		res := NewValidator(StrictCatalog()).Validate(v, text)
		require.True(t, res.Valid, res.Message)
		assert.Equal(t, ListContacts{Top: 10, Domain: "gmail.com"}, res.Clean.Typed)
		assert.Equal(t, 0.8, res.Clean.Confidence)
	})
}
