package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	assert.Equal(t, "contact [redacted email] please",
		RedactPII("contact ravi.kapoor@example.com please"))

	out := RedactPII("call +91 98765 43210 tomorrow")
	assert.NotContains(t, out, "98765")
	assert.Contains(t, out, "[redacted phone]")

	// Short numerics like serials stay untouched.
	assert.Equal(t, "plot 1234", RedactPII("plot 1234"))
	assert.Equal(t, "", RedactPII(""))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 20))

	long := "the applicant submitted the original sale deed"
	got := Summary(long, 20)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(got)-len("…"), 20)
	// Never cuts the middle of a word.
	assert.Equal(t, "the applicant…", got)
}

func TestSummary_MultiByteStaysValid(t *testing.T) {
	long := "propriétaire décédé héritiers multiples à vérifier au registre"
	got := Summary(long, 25)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}
