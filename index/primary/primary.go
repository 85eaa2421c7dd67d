// Package primary implements C3: a persistent, B+-tree-backed
// document-id -> path mapping. Reads serve from the in-memory root; writes
// are appended to a journal before the in-memory tree is updated, and Open
// rebuilds the tree by replaying the whole journal. The journal is never
// compacted or snapshotted.
package primary

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kotadb/kotadb-go/btree"
	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

const journalFileName = "primary.journal"

type journalOp byte

const (
	journalInsert journalOp = 1
	journalDelete journalOp = 2
)

// Index is the primary document-id -> path index. It implements
// contracts.Index.
type Index struct {
	mu      sync.RWMutex
	tree    btree.Tree[types.DocumentID, types.ValidatedPath]
	dir     string
	journal *os.File
}

// Open opens (creating if absent) a primary index rooted at dir.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "create primary index directory")
	}
	idx := &Index{tree: btree.New[types.DocumentID, types.ValidatedPath](), dir: dir}
	if err := idx.replay(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, journalFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "open primary index journal")
	}
	idx.journal = f
	return idx, nil
}

func (idx *Index) Close() error {
	if idx.journal == nil {
		return nil
	}
	return idx.journal.Close()
}

func (idx *Index) replay() error {
	f, err := os.Open(filepath.Join(idx.dir, journalFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "open primary index journal for replay")
	}
	defer f.Close()

	for {
		var size uint32
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			if err == io.EOF {
				break
			}
			return kotaerr.Wrap(kotaerr.CorruptedStorage, err, "truncated primary journal frame")
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(f, buf); err != nil {
			return kotaerr.Wrap(kotaerr.CorruptedStorage, err, "truncated primary journal record")
		}
		var id types.DocumentID
		copy(id[:], buf[1:17])
		switch journalOp(buf[0]) {
		case journalInsert:
			pathLen := binary.LittleEndian.Uint32(buf[17:21])
			pathStr := string(buf[21 : 21+pathLen])
			p, err := types.NewValidatedPath(pathStr)
			if err != nil {
				return err
			}
			idx.tree = idx.tree.Insert(id, p)
		case journalDelete:
			idx.tree = idx.tree.Delete(id)
		default:
			return kotaerr.New(kotaerr.CorruptedStorage, "unknown primary journal opcode")
		}
	}
	return nil
}

func (idx *Index) appendJournal(op journalOp, id types.DocumentID, path string) error {
	payload := make([]byte, 1+16+4+len(path))
	payload[0] = byte(op)
	copy(payload[1:17], id[:])
	binary.LittleEndian.PutUint32(payload[17:21], uint32(len(path)))
	copy(payload[21:], path)

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := idx.journal.Write(frame); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "append primary journal record")
	}
	return kotaerr.Wrap(kotaerr.IOError, idx.journal.Sync(), "fsync primary journal")
}

// Insert maps id -> path, replacing any existing mapping for id.
func (idx *Index) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.appendJournal(journalInsert, id, path.String()); err != nil {
		return err
	}
	idx.tree = idx.tree.Insert(id, path)
	return nil
}

// Search treats each query term as a document identifier and returns the
// path of every term that parses and is present; terms that are not
// identifiers are skipped. An empty term set lists every entry, like List
// (the primary index has no free-text search).
func (idx *Index) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "search cancelled")
	}
	if len(q.Terms) == 0 {
		return idx.List(ctx)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []contracts.SearchResult
	for _, term := range q.Terms {
		id, err := types.ParseDocumentID(term)
		if err != nil {
			continue
		}
		if p, ok := idx.tree.Search(id); ok {
			out = append(out, contracts.SearchResult{ID: id, Path: p, Score: 1})
		}
	}
	return out, nil
}

// Get returns the path mapped to id.
func (idx *Index) Get(id types.DocumentID) (types.ValidatedPath, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Search(id)
}

// Delete removes id's mapping.
func (idx *Index) Delete(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "delete cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.tree.Search(id); !ok {
		return kotaerr.New(kotaerr.NotFound, "document id not present in primary index")
	}
	if err := idx.appendJournal(journalDelete, id, ""); err != nil {
		return err
	}
	idx.tree = idx.tree.Delete(id)
	return nil
}

// List returns every (id, path) pair via tree-order traversal (wildcard
// listing).
func (idx *Index) List(ctx context.Context) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "list cancelled")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entries := idx.tree.All()
	out := make([]contracts.SearchResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, contracts.SearchResult{ID: e.Key, Path: e.Value, Score: 1})
	}
	return out, nil
}

// TotalKeys returns the number of indexed documents, satisfying the C11
// optimised index wrapper's tree-introspection surface.
func (idx *Index) TotalKeys() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.TotalKeys()
}

// Height returns the underlying B+ tree's height, for the C11 optimised
// index wrapper's tree-analysis report.
func (idx *Index) Height() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Height()
}

var _ contracts.Index = (*Index)(nil)
