package fetcher

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStem(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain title", "Plain title"},
		{"AC/DC - Back in Black", "AC_DC - Back in Black"},
		{`a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"tab\tand\nnewline", "tab_and_newline"},
		{"...hidden", "hidden"},
		{"  padded  ", "padded"},
		{"???", "audio"},
		{"", "audio"},
		{"Canção de ninar", "Canção de ninar"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeStem(tt.in), tt.in)
	}
}

func TestSanitizeStemBoundsLength(t *testing.T) {
	long := strings.Repeat("ção", 200)
	got := SanitizeStem(long)
	assert.LessOrEqual(t, len(got), maxStemBytes)
	assert.True(t, utf8.ValidString(got))
}
