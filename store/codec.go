package store

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

func nanoTime(nanos uint64) time.Time {
	return time.Unix(0, int64(nanos)).UTC()
}

// encodeDocument serializes a Document with the same length-prefixed
// varint-free field layout used across the on-disk formats (see
// index/trigram's binary form for the sibling convention).
func encodeDocument(d types.Document) []byte {
	path := d.Path.String()
	title := d.Title.String()

	size := 16 + 4 + len(path) + 4 + len(title) + 4 + len(d.Content)
	size += 4 // tag count
	for _, tg := range d.Tags {
		size += 4 + len(tg.String())
	}
	size += 8 + 8 // created, updated
	size += 4 + 4*len(d.Embedding)

	buf := make([]byte, size)
	off := 0
	copy(buf[off:], d.ID[:])
	off += 16
	off = putString(buf, off, path)
	off = putString(buf, off, title)
	off = putBytes(buf, off, d.Content)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(d.Tags)))
	off += 4
	for _, tg := range d.Tags {
		off = putString(buf, off, tg.String())
	}
	binary.LittleEndian.PutUint64(buf[off:], uint64(d.Created.UnixNano()))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(d.Updated.UnixNano()))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(d.Embedding)))
	off += 4
	for _, v := range d.Embedding {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	return buf
}

func putString(buf []byte, off int, s string) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	off += 4
	copy(buf[off:], s)
	return off + len(s)
}

func putBytes(buf []byte, off int, b []byte) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(b)))
	off += 4
	copy(buf[off:], b)
	return off + len(b)
}

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) u32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated document record")
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated document record")
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *byteReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.b) {
		return "", kotaerr.New(kotaerr.CorruptedStorage, "truncated document record")
	}
	s := string(r.b[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.b) {
		return nil, kotaerr.New(kotaerr.CorruptedStorage, "truncated document record")
	}
	out := append([]byte(nil), r.b[r.off:r.off+int(n)]...)
	r.off += int(n)
	return out, nil
}

func decodeDocument(b []byte) (types.Document, error) {
	r := &byteReader{b: b}
	if r.off+16 > len(r.b) {
		return types.Document{}, kotaerr.New(kotaerr.CorruptedStorage, "truncated document id")
	}
	var id types.DocumentID
	copy(id[:], r.b[r.off:r.off+16])
	r.off += 16

	pathStr, err := r.str()
	if err != nil {
		return types.Document{}, err
	}
	titleStr, err := r.str()
	if err != nil {
		return types.Document{}, err
	}
	content, err := r.bytes()
	if err != nil {
		return types.Document{}, err
	}
	tagCount, err := r.u32()
	if err != nil {
		return types.Document{}, err
	}
	tags := make([]types.Tag, 0, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		s, err := r.str()
		if err != nil {
			return types.Document{}, err
		}
		tg, err := types.NewTag(s)
		if err != nil {
			return types.Document{}, err
		}
		tags = append(tags, tg)
	}
	createdNano, err := r.u64()
	if err != nil {
		return types.Document{}, err
	}
	updatedNano, err := r.u64()
	if err != nil {
		return types.Document{}, err
	}
	embLen, err := r.u32()
	if err != nil {
		return types.Document{}, err
	}
	var emb []float32
	if embLen > 0 {
		emb = make([]float32, embLen)
		for i := range emb {
			v, err := r.u32()
			if err != nil {
				return types.Document{}, err
			}
			emb[i] = math.Float32frombits(v)
		}
	}

	path, err := types.NewValidatedPath(pathStr)
	if err != nil {
		return types.Document{}, err
	}
	title, err := types.NewValidatedTitle(titleStr)
	if err != nil {
		return types.Document{}, err
	}

	doc, err := types.NewDocumentBuilder(id, path, title).
		WithContent(content).
		WithTags(tags).
		WithTimestamps(nanoTime(createdNano), nanoTime(updatedNano)).
		WithEmbedding(emb).
		Build()
	return doc, err
}
