package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartasset/internal/core"
)

func TestExtractJSONAccepts(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare array", `[{"item":"a"}]`, `[{"item":"a"}]`},
		{"bare object with space", "  {\"item\":\"a\"}\n", `{"item":"a"}`},
		{"json fence", "```json\n[1]\n```", `[1]`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"upper-case tag", "```JSON\n[]\n```", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{"empty", "   ", ErrEmptyResponse},
		{"prose before json", "Here you go: [1]", ErrMalformedResponse},
		{"prose after fence", "```json\n[1]\n```\nHope this helps", ErrMalformedResponse},
		{"two fences", "```json\n[1]\n```\n```json\n[2]\n```", ErrMalformedResponse},
		{"unterminated fence", "```json\n[1]", ErrMalformedResponse},
		{"other language", "```python\n[1]\n```", ErrMalformedResponse},
		{"trailing comma", `[{"a":1},]`, ErrMalformedResponse},
		{"scalar", `42`, ErrMalformedResponse},
		{"truncated", `[{"item":"a"`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.reply)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseDrafts(t *testing.T) {
	opts := ParseOptions{
		Categories: []string{"Food", "Transport", "Other"},
		Fallback:   "Other",
		Today:      core.NewDate(2025, 5, 20),
	}

	reply := `[
		{"date":"2025-05-18","item":"Nasi lemak","category":"food","amount":8.5,"type":"Income"},
		{"date":"18/05/2025","item":"Grab","category":"Taxi","amount":-12.30},
		{"item":"Mystery","amount":null}
	]`

	drafts, err := ParseDrafts(reply, opts)
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	assert.Equal(t, core.Draft{Date: "2025-05-18", Item: "Nasi lemak", Category: "Food", Type: "Expense", Amount: "8.5"}, drafts[0])

	assert.Equal(t, "2025-05-20", drafts[1].Date, "unparseable date becomes today")
	assert.Equal(t, "Other", drafts[1].Category, "unknown category becomes the fallback")
	assert.Equal(t, "12.30", drafts[1].Amount, "negative amount is made positive")

	assert.Equal(t, "", drafts[2].Amount)
	assert.Equal(t, "Expense", drafts[2].Type)
}

func TestParseDraftsWrapsBareObject(t *testing.T) {
	drafts, err := ParseDrafts(`{"date":"2025-01-01","item":"Coffee","category":"Food","amount":"4.00"}`, ParseOptions{
		Categories: []string{"Food"},
		Fallback:   "Other",
		Today:      core.NewDate(2025, 1, 2),
	})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Coffee", drafts[0].Item)
	assert.Equal(t, "4.00", drafts[0].Amount)
}

func TestParseDraftsRejectsWrongShape(t *testing.T) {
	_, err := ParseDrafts(`[{"item":"a"}, "b"]`, ParseOptions{Fallback: "Other"})
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestParseDraftsEmptyArray(t *testing.T) {
	drafts, err := ParseDrafts(`[]`, ParseOptions{Fallback: "Other"})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestNewImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	img, err := NewImage(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = NewImage([]byte("%PDF-1.7"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	_, err = NewImage(nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
