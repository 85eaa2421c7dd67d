package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIDZeroForbidden(t *testing.T) {
	var zero DocumentID
	assert.True(t, zero.IsZero())

	_, err := ParseDocumentID(zero.String())
	require.Error(t, err)
}

func TestDocumentIDRoundTrip(t *testing.T) {
	id := NewDocumentID()
	parsed, err := ParseDocumentID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestValidatedPathRejections(t *testing.T) {
	cases := []string{
		"",
		string(make([]byte, MaxPathLength)),
		"has\x00null",
		"../escape",
		"a/../b",
		"CON",
		"con.txt",
		"dir/LPT1",
	}
	for _, c := range cases {
		_, err := NewValidatedPath(c)
		assert.Error(t, err, "expected rejection for %q", c)
	}
}

func TestValidatedPathAccepts(t *testing.T) {
	p, err := NewValidatedPath("src/main.rs")
	require.NoError(t, err)
	assert.Equal(t, "src/main.rs", p.String())
}

func TestTagValidation(t *testing.T) {
	_, err := NewTag("go-lang_tag 1")
	require.NoError(t, err)

	_, err = NewTag("bad!tag")
	assert.Error(t, err)
}

func TestDocumentUpdateInvariant(t *testing.T) {
	id := NewDocumentID()
	path, _ := NewValidatedPath("/a.md")
	title, _ := NewValidatedTitle("A")
	doc, err := NewDocumentBuilder(id, path, title).Build()
	require.NoError(t, err)

	_, err = doc.Update(doc.Updated.Add(-time.Second), func(*Document) {})
	assert.Error(t, err, "updated must strictly increase")

	next, err := doc.Update(doc.Updated.Add(time.Second), func(d *Document) {
		d.Content = []byte("hello")
	})
	require.NoError(t, err)
	assert.Equal(t, doc.Created, next.Created)
	assert.True(t, next.Updated.After(doc.Updated))
}

func TestValidatedLimit(t *testing.T) {
	_, err := NewValidatedLimit(0, 10)
	assert.Error(t, err)

	_, err = NewValidatedLimit(11, 10)
	assert.Error(t, err)

	l, err := NewValidatedLimit(5, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Value())
}
