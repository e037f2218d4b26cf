package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "Thmanyah", want: "Thmanyah"},
		{name: "trims", in: "  podcast \n", want: "podcast"},
		{name: "zero width", in: "pod\u200bcast\ufeff", want: "podcast"},
		{name: "word joiner", in: "\u2060ثمانية\u2063", want: "ثمانية"},
		{name: "nfc", in: "e\u0301", want: "\u00e9"},
		{name: "invalid utf8", in: "ab\xffc", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizePtr(t *testing.T) {
	assert.Nil(t, SanitizePtr(nil))

	in := " x\u200d "
	assert.Equal(t, "x", *SanitizePtr(&in))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
	assert.Equal(t, "ثم…", Truncate("ثمانية", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}
