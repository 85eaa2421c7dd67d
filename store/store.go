// Package store implements the content store: the fourth resource (beside
// the three indices) that coordinated deletion (coordinate) keeps in lock
// step. It holds opaque document bytes keyed by identifier, persisted as an
// append-only log of framed records, in the length-prefixed binary framing
// idiom the teacher uses throughout its on-disk formats (toc.go,
// indexfile.go): u32 size | payload.
package store

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

const logFileName = "content.log"

type opcode byte

const (
	opInsert opcode = 1
	opUpdate opcode = 2
	opDelete opcode = 3
)

// ContentStore is a durable, in-memory-indexed document store. It
// implements contracts.Storage.
type ContentStore struct {
	mu   sync.RWMutex
	docs map[types.DocumentID]types.Document
	dir  string
	log  *os.File
}

var _ contracts.Storage = (*ContentStore)(nil)

// Open opens (creating if absent) a content store rooted at dir, replaying
// its log file to reconstruct in-memory state.
func Open(dir string) (*ContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "create store directory")
	}
	s := &ContentStore{docs: make(map[types.DocumentID]types.Document), dir: dir}
	if err := s.replay(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "open store log for append")
	}
	s.log = f
	return s, nil
}

func (s *ContentStore) Close() error {
	if s.log == nil {
		return nil
	}
	return s.log.Close()
}

func (s *ContentStore) replay() error {
	f, err := os.Open(filepath.Join(s.dir, logFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "open store log for replay")
	}
	defer f.Close()

	for {
		var size uint32
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			if err == io.EOF {
				break
			}
			return kotaerr.Wrap(kotaerr.CorruptedStorage, err, "truncated store log frame header")
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(f, buf); err != nil {
			return kotaerr.Wrap(kotaerr.CorruptedStorage, err, "truncated store log frame body")
		}
		op := opcode(buf[0])
		switch op {
		case opInsert, opUpdate:
			doc, err := decodeDocument(buf[1:])
			if err != nil {
				return err
			}
			s.docs[doc.ID] = doc
		case opDelete:
			var id types.DocumentID
			copy(id[:], buf[1:17])
			delete(s.docs, id)
		default:
			return kotaerr.New(kotaerr.CorruptedStorage, "unknown store log opcode")
		}
	}
	return nil
}

func (s *ContentStore) append(op opcode, payload []byte) error {
	frame := make([]byte, 4+1+len(payload))
	binary.LittleEndian.PutUint32(frame[:4], uint32(1+len(payload)))
	frame[4] = byte(op)
	copy(frame[5:], payload)
	if _, err := s.log.Write(frame); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "append store log record")
	}
	return kotaerr.Wrap(kotaerr.IOError, s.log.Sync(), "fsync store log")
}

// Insert adds doc. AlreadyExists is returned if a document with the same id
// but different content is already present (re-inserting identical content
// is treated as a no-op update).
func (s *ContentStore) Insert(ctx context.Context, doc types.Document) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.docs[doc.ID]; ok && !documentsEqual(existing, doc) {
		return kotaerr.New(kotaerr.AlreadyExists, "document id already present with different content")
	}
	payload := encodeDocument(doc)
	if err := s.append(opInsert, payload); err != nil {
		return err
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *ContentStore) Get(ctx context.Context, id types.DocumentID) (types.Document, error) {
	if err := ctx.Err(); err != nil {
		return types.Document{}, kotaerr.Wrap(kotaerr.Cancelled, err, "get cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return types.Document{}, kotaerr.New(kotaerr.NotFound, "document not found")
	}
	return doc, nil
}

func (s *ContentStore) Update(ctx context.Context, doc types.Document) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "update cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.ID]
	if !ok {
		return kotaerr.New(kotaerr.NotFound, "document not found")
	}
	if !doc.Updated.After(existing.Updated) {
		return kotaerr.Field(kotaerr.ValidationInvariant, "updated", "updated must strictly increase")
	}
	payload := encodeDocument(doc)
	if err := s.append(opUpdate, payload); err != nil {
		return err
	}
	s.docs[doc.ID] = doc
	return nil
}

// Delete removes id, returning false (not an error) if it was absent.
func (s *ContentStore) Delete(ctx context.Context, id types.DocumentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, kotaerr.Wrap(kotaerr.Cancelled, err, "delete cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	if err := s.append(opDelete, id[:]); err != nil {
		return false, err
	}
	delete(s.docs, id)
	return true, nil
}

func (s *ContentStore) List(ctx context.Context) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "list cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

// Count returns the number of live documents, used by the post-ingestion
// validator's storage_count_consistency check.
func (s *ContentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func documentsEqual(a, b types.Document) bool {
	if len(a.Content) != len(b.Content) {
		return false
	}
	for i := range a.Content {
		if a.Content[i] != b.Content[i] {
			return false
		}
	}
	return a.Path.String() == b.Path.String()
}
