package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRejectsTooLong(t *testing.T) {
	_, err := Sanitize(string(make([]byte, MaxInputLength+1)))
	require.Error(t, err)
}

func TestSanitizeRejectsNullByte(t *testing.T) {
	_, err := Sanitize("abc\x00def")
	require.Error(t, err)
}

func TestSanitizeStripsSQLShape(t *testing.T) {
	res, err := Sanitize("union select password from users")
	require.NoError(t, err)
	assert.NotContains(t, res.Sanitized, "union select")
}

func TestSanitizeStandaloneWordsPassThrough(t *testing.T) {
	res, err := Sanitize("select the best option")
	require.NoError(t, err)
	assert.Contains(t, res.Terms, "select")
}

func TestSanitizeStripsCommandInjection(t *testing.T) {
	res, err := Sanitize("foo; rm -rf / && echo done")
	require.NoError(t, err)
	assert.NotContains(t, res.Sanitized, ";")
	assert.NotContains(t, res.Sanitized, "&&")
}

func TestSanitizeStripsPathTraversal(t *testing.T) {
	res, err := Sanitize("../../etc/passwd")
	require.NoError(t, err)
	assert.NotContains(t, res.Sanitized, "../")
}

func TestSanitizeWildcardPreserved(t *testing.T) {
	res, err := Sanitize("*")
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, res.Terms)
}

func TestSanitizeEmptyAfterCleanFails(t *testing.T) {
	_, err := Sanitize(";;;   |||")
	require.Error(t, err)
}

func TestSanitizePathAwarePreservesSlashes(t *testing.T) {
	res, err := SanitizePathAware("src/main.go")
	require.NoError(t, err)
	assert.Contains(t, res.Sanitized, "/")
}

func TestSanitizeTermLimitsRespected(t *testing.T) {
	words := ""
	for i := 0; i < MaxTerms+10; i++ {
		words += "w "
	}
	res, err := Sanitize(words[:min(len(words), MaxInputLength)])
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Terms), MaxTerms)
}
