package types

import (
	"time"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// Document is the (identifier, path, title, content, tags, timestamps,
// size, optional embedding) tuple of spec §3.
type Document struct {
	ID        DocumentID
	Path      ValidatedPath
	Title     ValidatedTitle
	Content   []byte
	Tags      []Tag
	Created   time.Time
	Updated   time.Time
	Embedding []float32 // optional; nil if the caller supplied none
}

// Size returns len(Content), the document's §3 "size = |content|" field.
func (d Document) Size() int { return len(d.Content) }

// DocumentBuilder constructs Documents, enforcing created <= updated and
// leaving Created immutable once built — the "created by builder" lifecycle
// of spec §3.
type DocumentBuilder struct {
	id        DocumentID
	path      ValidatedPath
	title     ValidatedTitle
	content   []byte
	tags      []Tag
	created   time.Time
	updated   time.Time
	embedding []float32
}

func NewDocumentBuilder(id DocumentID, path ValidatedPath, title ValidatedTitle) *DocumentBuilder {
	now := time.Now().UTC()
	return &DocumentBuilder{id: id, path: path, title: title, created: now, updated: now}
}

func (b *DocumentBuilder) WithContent(c []byte) *DocumentBuilder {
	b.content = c
	return b
}

func (b *DocumentBuilder) WithTags(tags []Tag) *DocumentBuilder {
	b.tags = tags
	return b
}

func (b *DocumentBuilder) WithTimestamps(created, updated time.Time) *DocumentBuilder {
	b.created = created
	b.updated = updated
	return b
}

func (b *DocumentBuilder) WithEmbedding(v []float32) *DocumentBuilder {
	b.embedding = v
	return b
}

func (b *DocumentBuilder) Build() (Document, error) {
	if b.id.IsZero() {
		return Document{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "id", "all-zero document id is forbidden")
	}
	if b.updated.Before(b.created) {
		return Document{}, kotaerr.Field(kotaerr.ValidationInvariant, "updated", "updated must be >= created")
	}
	return Document{
		ID:        b.id,
		Path:      b.path,
		Title:     b.title,
		Content:   b.content,
		Tags:      b.tags,
		Created:   b.created,
		Updated:   b.updated,
		Embedding: b.embedding,
	}, nil
}

// Update enforces the §3 mutation contract: updated strictly increases and
// created never changes. It returns a new Document; the receiver is left
// untouched, matching the rest of the core's prefer-pure-transformation
// style.
func (d Document) Update(newUpdated time.Time, mutate func(*Document)) (Document, error) {
	if !newUpdated.After(d.Updated) {
		return Document{}, kotaerr.Field(kotaerr.ValidationInvariant, "updated", "updated must strictly increase on update")
	}
	next := d
	mutate(&next)
	next.Created = d.Created
	next.Updated = newUpdated
	return next, nil
}
