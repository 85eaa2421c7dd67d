package trigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmptyOrShort(t *testing.T) {
	assert.Nil(t, Extract(""))
	assert.Nil(t, Extract("ab"))
}

func TestExtractHelloWorld(t *testing.T) {
	got := ExtractSet("Hello World")
	for _, want := range []Trigram{"hel", "ell", "llo", "wor", "orl", "rld"} {
		assert.True(t, got[want], "missing trigram %q", want)
	}
}

func TestExtractCJKExactCount(t *testing.T) {
	got := Extract("测试中文")
	assert.Len(t, got, 2)
}

func TestExtractRequiresAlphanumeric(t *testing.T) {
	got := Extract("!!!   ***")
	assert.Empty(t, got)
}
