package symbol

import (
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// Store holds every ingested Record plus the two tokenised postings lists
// spec §4.11 mandates: name tokens and signature tokens, each mapping
// token -> set of symbol ids. Dense integer symbol ids let both postings
// use roaring.Bitmap (grounded on the teacher's query/query.go and
// marshal.go use of roaring bitmaps for dense id sets) rather than
// map[uint64]struct{}.
type Store struct {
	mu sync.RWMutex

	nextID uint64
	byID   map[uint64]Record
	byFile map[string][]uint64
	byName map[string][]uint64 // exact, case-sensitive name -> ids

	// dependersByName maps a declared dependency name to the ids of the
	// records that declared it, so a dependency target inserted after its
	// dependents still gets its Dependents back-filled.
	dependersByName map[string][]uint64

	nameTokens map[string]*roaring.Bitmap
	sigTokens  map[string]*roaring.Bitmap
}

// NewStore constructs an empty symbol store.
func NewStore() *Store {
	return &Store{
		byID:            make(map[uint64]Record),
		byFile:          make(map[string][]uint64),
		byName:          make(map[string][]uint64),
		dependersByName: make(map[string][]uint64),
		nameTokens:      make(map[string]*roaring.Bitmap),
		sigTokens:       make(map[string]*roaring.Bitmap),
	}
}

// tokenize lower-cases text and splits on any rune that is neither
// alphanumeric nor underscore, matching the original source's tokenizer
// (symbol_index.rs's `tokenize`).
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// signatureTypeTokens are the well-known type names the original source
// scans a function's text for (symbol_index.rs's `extract_signature_tokens`
// type_patterns table). A simplified but deliberately identical heuristic:
// real AST-derived tokens belong to the external extraction pipeline, not
// this core.
var signatureTypeTokens = []string{
	"string", "str", "int", "int32", "int64", "uint", "uint32", "uint64",
	"float32", "float64", "bool", "slice", "map", "error", "interface", "struct",
	"i32", "i64", "u32", "u64", "f32", "f64", "usize", "vec", "option", "result",
}

func extractSignatureTokens(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, t := range signatureTypeTokens {
		if strings.Contains(lower, t) {
			out = append(out, t)
		}
	}
	return out
}

// Insert adds a new symbol record for a file, assigning it a dense id and
// updating the name/signature token postings. Use InsertFile to replace a
// file's symbols wholesale (remove-then-add, per spec §4.11's mandated
// incremental-update flow).
func (s *Store) Insert(r Record) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(r)
}

func (s *Store) insertLocked(r Record) uint64 {
	s.nextID++
	id := s.nextID
	r.ID = id

	// Back-fill dependency edges in both directions: every record this one
	// declares a dependency on gains it as a dependent, and every earlier
	// record that declared a dependency on this one's name becomes one of
	// its dependents (the target-inserted-after-its-dependent ordering).
	for _, dep := range r.Dependencies {
		s.dependersByName[dep] = appendID(s.dependersByName[dep], id)
		for _, targetID := range s.byName[dep] {
			target := s.byID[targetID]
			target.Dependents = appendID(target.Dependents, id)
			s.byID[targetID] = target
		}
	}
	for _, depID := range s.dependersByName[r.baseName()] {
		if depID != id {
			r.Dependents = appendID(r.Dependents, depID)
		}
	}

	s.byID[id] = r
	s.byFile[r.FilePath] = append(s.byFile[r.FilePath], id)
	s.byName[r.baseName()] = append(s.byName[r.baseName()], id)

	for _, tok := range tokenize(r.baseName()) {
		s.addToken(s.nameTokens, tok, id)
	}
	if r.Type == TypeFunction || r.Type == TypeMethod {
		for _, tok := range extractSignatureTokens(r.Text) {
			s.addToken(s.sigTokens, tok, id)
		}
	}
	return id
}

func (s *Store) addToken(postings map[string]*roaring.Bitmap, token string, id uint64) {
	bm, ok := postings[token]
	if !ok {
		bm = roaring.New()
		postings[token] = bm
	}
	bm.Add(uint32(id))
}

// RemoveFile removes every symbol record indexed under path, clearing it
// from the name/signature postings. This is `remove_file_from_indices` in
// spec §4.11's flow; callers pair it with InsertFile for an incremental
// per-file update instead of a full rebuild.
func (s *Store) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFileLocked(path)
}

func (s *Store) removeFileLocked(path string) {
	ids := s.byFile[path]
	for _, id := range ids {
		r, ok := s.byID[id]
		if !ok {
			continue
		}
		for _, dep := range r.Dependencies {
			s.dependersByName[dep] = removeID(s.dependersByName[dep], id)
			if len(s.dependersByName[dep]) == 0 {
				delete(s.dependersByName, dep)
			}
			for _, targetID := range s.byName[dep] {
				target := s.byID[targetID]
				target.Dependents = removeID(target.Dependents, id)
				s.byID[targetID] = target
			}
		}
		for _, tok := range tokenize(r.baseName()) {
			s.removeToken(s.nameTokens, tok, id)
		}
		if r.Type == TypeFunction || r.Type == TypeMethod {
			for _, tok := range extractSignatureTokens(r.Text) {
				s.removeToken(s.sigTokens, tok, id)
			}
		}
		s.byName[r.baseName()] = removeID(s.byName[r.baseName()], id)
		delete(s.byID, id)
	}
	delete(s.byFile, path)
}

func (s *Store) removeToken(postings map[string]*roaring.Bitmap, token string, id uint64) {
	bm, ok := postings[token]
	if !ok {
		return
	}
	bm.Remove(uint32(id))
	if bm.IsEmpty() {
		delete(postings, token)
	}
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func appendID(ids []uint64, id uint64) []uint64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// ReplaceFile is `remove_file_from_indices` then `update_indices_for_file`
// in one call: the mandated incremental-update flow for re-ingesting a
// single edited file without paying the O(corpus) cost of Rebuild.
func (s *Store) ReplaceFile(path string, records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFileLocked(path)
	for _, r := range records {
		r.FilePath = path
		s.insertLocked(r)
	}
}

// Get returns the record for id.
func (s *Store) Get(id uint64) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// FindByName returns every record whose base name exactly equals name.
func (s *Store) FindByName(name string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byName[name]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// FindByFile returns every record indexed under path.
func (s *Store) FindByFile(path string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFile[path]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// SearchFuzzy returns records whose base name contains name as a
// case-insensitive substring, used by SymbolSearch{fuzzy=true}. No
// token-overlap scoring is done.
func (s *Store) SearchFuzzy(name string, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(name)
	seen := roaring.New()
	var out []Record
	for id, r := range s.byID {
		if strings.Contains(strings.ToLower(r.baseName()), needle) {
			if seen.CheckedAdd(uint32(id)) {
				out = append(out, r)
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// NameTokenIDs returns the ids whose name tokenization contains token.
func (s *Store) NameTokenIDs(token string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bitmapToIDs(s.nameTokens[token])
}

// SignatureTokenIDs returns the ids whose signature tokenization contains
// token.
func (s *Store) SignatureTokenIDs(token string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bitmapToIDs(s.sigTokens[token])
}

// AllFiles returns every distinct file path with at least one indexed
// symbol, used by PatternSearch's full-corpus scan.
func (s *Store) AllFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		out = append(out, f)
	}
	return out
}

func bitmapToIDs(bm *roaring.Bitmap) []uint64 {
	if bm == nil {
		return nil
	}
	out := make([]uint64, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, uint64(it.Next()))
	}
	return out
}
