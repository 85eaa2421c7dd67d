package trigram

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

const previewMaxLen = 500

// cacheEntry is the trigram index's document cache entry (spec §3):
// title, preview, word count, trigram count. Used for ranking/statistics
// only; never authoritative for search correctness.
type cacheEntry struct {
	Title         string `json:"title"`
	Preview       string `json:"preview"`
	WordCount     int    `json:"word_count"`
	TrigramCount  int    `json:"trigram_count"`
}

type textMetadata struct {
	Version       int       `json:"version"`
	DocumentCount int       `json:"document_count"`
	TrigramCount  int       `json:"trigram_count"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// TextIndex is the JSON-persisted trigram inverted index of spec §4.3.
type TextIndex struct {
	mu       sync.RWMutex
	postings map[Trigram]map[types.DocumentID]bool
	cache    map[types.DocumentID]cacheEntry
	meta     textMetadata
	dir      string
	wal      *os.File
}

// OpenText opens (creating if absent) a text-form trigram index rooted at
// dir, loading trigrams/index.json, cache/documents.json, and
// meta/trigram_metadata.json if present.
func OpenText(dir string) (*TextIndex, error) {
	for _, sub := range []string{"trigrams", "cache", "meta", "wal"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, kotaerr.Wrap(kotaerr.IOError, err, "create trigram index directories")
		}
	}
	idx := &TextIndex{
		postings: make(map[Trigram]map[types.DocumentID]bool),
		cache:    make(map[types.DocumentID]cacheEntry),
		dir:      dir,
		meta:     textMetadata{Version: 1, Created: time.Now().UTC()},
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	w, err := os.OpenFile(filepath.Join(dir, "wal", "trigram.wal"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "open trigram wal")
	}
	idx.wal = w
	return idx, nil
}

func (idx *TextIndex) Close() error {
	if err := idx.Flush(); err != nil {
		return err
	}
	if idx.wal == nil {
		return nil
	}
	return idx.wal.Close()
}

func (idx *TextIndex) load() error {
	trigramsPath := filepath.Join(idx.dir, "trigrams", "index.json")
	if b, err := os.ReadFile(trigramsPath); err == nil {
		var raw map[string][]string
		if jerr := json.Unmarshal(b, &raw); jerr != nil {
			return kotaerr.Wrap(kotaerr.CorruptedStorage, jerr, "parse trigrams/index.json")
		}
		for tg, ids := range raw {
			set := make(map[types.DocumentID]bool, len(ids))
			for _, s := range ids {
				id, perr := types.ParseDocumentID(s)
				if perr != nil {
					return perr
				}
				set[id] = true
			}
			idx.postings[Trigram(tg)] = set
		}
	} else if !os.IsNotExist(err) {
		return kotaerr.Wrap(kotaerr.IOError, err, "read trigrams/index.json")
	}

	cachePath := filepath.Join(idx.dir, "cache", "documents.json")
	if b, err := os.ReadFile(cachePath); err == nil {
		var raw map[string]cacheEntry
		if jerr := json.Unmarshal(b, &raw); jerr != nil {
			return kotaerr.Wrap(kotaerr.CorruptedStorage, jerr, "parse cache/documents.json")
		}
		for s, e := range raw {
			id, perr := types.ParseDocumentID(s)
			if perr != nil {
				return perr
			}
			idx.cache[id] = e
		}
	} else if !os.IsNotExist(err) {
		return kotaerr.Wrap(kotaerr.IOError, err, "read cache/documents.json")
	}

	metaPath := filepath.Join(idx.dir, "meta", "trigram_metadata.json")
	if b, err := os.ReadFile(metaPath); err == nil {
		if jerr := json.Unmarshal(b, &idx.meta); jerr != nil {
			return kotaerr.Wrap(kotaerr.CorruptedStorage, jerr, "parse meta/trigram_metadata.json")
		}
	} else if !os.IsNotExist(err) {
		return kotaerr.Wrap(kotaerr.IOError, err, "read meta/trigram_metadata.json")
	}

	return nil
}

// Flush persists all three JSON artefacts.
func (idx *TextIndex) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.flushLocked()
}

func (idx *TextIndex) flushLocked() error {
	rawPostings := make(map[string][]string, len(idx.postings))
	for tg, set := range idx.postings {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		rawPostings[string(tg)] = ids
	}
	if err := writeJSON(filepath.Join(idx.dir, "trigrams", "index.json"), rawPostings); err != nil {
		return err
	}

	rawCache := make(map[string]cacheEntry, len(idx.cache))
	for id, e := range idx.cache {
		rawCache[id.String()] = e
	}
	if err := writeJSON(filepath.Join(idx.dir, "cache", "documents.json"), rawCache); err != nil {
		return err
	}

	idx.meta.Updated = time.Now().UTC()
	idx.meta.DocumentCount = len(idx.cache)
	idx.meta.TrigramCount = len(idx.postings)
	return writeJSON(filepath.Join(idx.dir, "meta", "trigram_metadata.json"), idx.meta)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "marshal "+path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "write "+path)
	}
	return kotaerr.Wrap(kotaerr.IOError, os.Rename(tmp, path), "rename "+path)
}

func (idx *TextIndex) appendWAL(line string) error {
	_, err := idx.wal.WriteString(line + "\n")
	return kotaerr.Wrap(kotaerr.IOError, err, "append trigram wal")
}

// Insert satisfies contracts.Index by indexing path text alone (no
// content). Use InsertWithContent for the full path+content composition
// spec §4.3 describes.
func (idx *TextIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	return idx.InsertWithContent(ctx, id, path, "", "")
}

// InsertWithContent extracts trigrams from the composition of path+content,
// updates postings and the per-document cache, and journals the operation.
// Re-inserting an identifier behaves like an update (old postings are
// removed first).
func (idx *TextIndex) InsertWithContent(ctx context.Context, id types.DocumentID, path types.ValidatedPath, title, content string) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)

	composed := searchableComposition(path.String(), content)
	trigrams := Extract(composed)
	for _, tg := range trigrams {
		set, ok := idx.postings[tg]
		if !ok {
			set = make(map[types.DocumentID]bool)
			idx.postings[tg] = set
		}
		set[id] = true
	}

	preview := content
	if len(preview) > previewMaxLen {
		preview = preview[:previewMaxLen]
	}
	idx.cache[id] = cacheEntry{
		Title:        title,
		Preview:      preview,
		WordCount:    len(strings.Fields(content)),
		TrigramCount: len(trigrams),
	}

	return idx.appendWAL("insert " + id.String())
}

// Search tokenises every query term with the same extractor, unions the
// resulting trigrams, accumulates per-document match counts across
// existing postings, and ranks descending by count (ties broken by
// identifier order). An empty term set returns the empty result — per
// spec §4.3/§9, this differs intentionally from the binary form's
// wildcard-on-empty-query semantics (see index/trigram package doc).
func (idx *TextIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "search cancelled")
	}
	if len(q.Terms) == 0 {
		return nil, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	counts := make(map[types.DocumentID]int)
	queryTrigrams := make(map[Trigram]bool)
	for _, term := range q.Terms {
		for _, tg := range Extract(term) {
			queryTrigrams[tg] = true
		}
	}
	for tg := range queryTrigrams {
		for id := range idx.postings[tg] {
			counts[id]++
		}
	}

	results := make([]contracts.SearchResult, 0, len(counts))
	for id, c := range counts {
		results = append(results, contracts.SearchResult{ID: id, Score: float64(c)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID.Less(results[j].ID)
	})

	limit := q.Limit.Value()
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes id from every posting (dropping postings that become
// empty), removes its cache row, and refuses to drive any counter
// negative.
func (idx *TextIndex) Delete(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "delete cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.cache[id]; !ok {
		return kotaerr.New(kotaerr.NotFound, "document id not present in trigram index")
	}
	idx.removeLocked(id)
	return idx.appendWAL("delete " + id.String())
}

func (idx *TextIndex) removeLocked(id types.DocumentID) {
	for tg, set := range idx.postings {
		if !set[id] {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(idx.postings, tg)
		}
	}
	delete(idx.cache, id)
}

// List returns every indexed identifier. Per spec §4.3, the text form does
// NOT implement wildcard-list-on-empty-query semantics for Search; List is
// the dedicated enumeration path used by the post-ingestion validator.
func (idx *TextIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "list cancelled")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]contracts.SearchResult, 0, len(idx.cache))
	for id := range idx.cache {
		out = append(out, contracts.SearchResult{ID: id})
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (idx *TextIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.cache)
}

var _ contracts.Index = (*TextIndex)(nil)
