package trigram

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	mmap "github.com/edsrzf/mmap-go"

	"github.com/kotadb/kotadb-go/contracts"
	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

const (
	binaryMagic       = "KTRI"
	binaryVersion     = 2
	binaryHeaderSize  = 4 + 4 + 4 + 8 + 4 // magic, version, flags, created, checksum
	binaryAutoFlushN  = 10                // tests exercise N=10, per spec §4.4
	binaryFileName    = "trigrams.bin"
	binaryMetaName    = "metadata.bin"
	binaryStatsName   = "stats.bin"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// offsetEntry locates one trigram's posting record within the mmap'd file
// without decoding it, per spec §4.4's "offset table" discipline.
type offsetEntry struct {
	offset int
	length int
}

// BinaryIndex is the memory-mapped, CRC-checked binary form of the trigram
// index (spec §4.4 / §6).
type BinaryIndex struct {
	mu sync.RWMutex

	dir string

	// hotCache is the in-memory writer-side trigram -> id set, authoritative
	// until flushed, per GLOSSARY "Hot cache".
	hotCache map[Trigram]map[types.DocumentID]bool
	docMeta  map[types.DocumentID]binaryDocMeta
	dirty    int // mutations since last flush

	// mmap read-path state, rebuilt on every flush/open.
	file    *os.File
	mapping mmap.MMap
	offsets map[Trigram]offsetEntry
}

type binaryDocMeta struct {
	titleHash    uint64
	wordCount    uint32
	trigramCount uint32
}

// OpenBinary opens (creating if absent) a binary-form trigram index rooted
// at dir.
func OpenBinary(dir string) (*BinaryIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "create binary trigram index directory")
	}
	idx := &BinaryIndex{
		dir:      dir,
		hotCache: make(map[Trigram]map[types.DocumentID]bool),
		docMeta:  make(map[types.DocumentID]binaryDocMeta),
		offsets:  make(map[Trigram]offsetEntry),
	}
	if err := idx.loadFromDisk(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *BinaryIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.flushLocked(); err != nil {
		return err
	}
	return idx.unmapLocked()
}

func (idx *BinaryIndex) unmapLocked() error {
	if idx.mapping != nil {
		if err := idx.mapping.Unmap(); err != nil {
			return kotaerr.Wrap(kotaerr.IOError, err, "unmap trigrams.bin")
		}
		idx.mapping = nil
	}
	if idx.file != nil {
		if err := idx.file.Close(); err != nil {
			return kotaerr.Wrap(kotaerr.IOError, err, "close trigrams.bin")
		}
		idx.file = nil
	}
	return nil
}

// loadFromDisk mmaps trigrams.bin (if present) and scans it once to build
// the offset table, per spec §4.4.
func (idx *BinaryIndex) loadFromDisk() error {
	path := filepath.Join(idx.dir, binaryFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "open trigrams.bin")
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return kotaerr.Wrap(kotaerr.IOError, err, "stat trigrams.bin")
	}
	if fi.Size() == 0 {
		f.Close()
		return nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return kotaerr.Wrap(kotaerr.IOError, err, "mmap trigrams.bin")
	}

	if err := validateHeader(m); err != nil {
		m.Unmap()
		f.Close()
		return err
	}

	offsets, err := scanOffsets(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return err
	}

	idx.file = f
	idx.mapping = m
	idx.offsets = offsets

	// Seed the hot cache from the mmap'd file so inserts/deletes against an
	// already-populated index see existing postings immediately.
	for tg, oe := range offsets {
		ids, derr := decodePostingAt(m, oe)
		if derr != nil {
			return derr
		}
		set := make(map[types.DocumentID]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		idx.hotCache[tg] = set
	}

	return idx.loadAuxiliary()
}

func validateHeader(data []byte) error {
	if len(data) < binaryHeaderSize {
		return kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin truncated in header")
	}
	if string(data[0:4]) != binaryMagic {
		return kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin bad magic")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != binaryVersion {
		return kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin version mismatch")
	}
	checksum := binary.LittleEndian.Uint32(data[20:24])
	if checksum != 0 {
		got := crc32.Checksum(data[binaryHeaderSize:], castagnoliTable)
		if got != checksum {
			return kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin checksum mismatch")
		}
	}
	return nil
}

func scanOffsets(data []byte) (map[Trigram]offsetEntry, error) {
	body := data[binaryHeaderSize:]
	if len(body) < 4 {
		return nil, kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin truncated trigram count")
	}
	count := binary.LittleEndian.Uint32(body[:4])
	off := 4
	offsets := make(map[Trigram]offsetEntry, count)
	for i := uint32(0); i < count; i++ {
		if off+2 > len(body) {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin truncated record")
		}
		tgLen := int(binary.LittleEndian.Uint16(body[off : off+2]))
		recordStart := off
		off += 2 + tgLen
		if off+4 > len(body) {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin truncated doc count")
		}
		tg := Trigram(body[recordStart+2 : recordStart+2+tgLen])
		docCount := int(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
		recordLen := off - recordStart + docCount*16
		off += docCount * 16
		if off > len(body) {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "trigrams.bin truncated id list")
		}
		offsets[tg] = offsetEntry{offset: binaryHeaderSize + recordStart, length: recordLen}
	}
	return offsets, nil
}

func decodePostingAt(data []byte, oe offsetEntry) ([]types.DocumentID, error) {
	rec := data[oe.offset : oe.offset+oe.length]
	tgLen := int(binary.LittleEndian.Uint16(rec[0:2]))
	off := 2 + tgLen
	docCount := int(binary.LittleEndian.Uint32(rec[off : off+4]))
	off += 4
	ids := make([]types.DocumentID, 0, docCount)
	for i := 0; i < docCount; i++ {
		var id types.DocumentID
		copy(id[:], rec[off:off+16])
		off += 16
		ids = append(ids, id)
	}
	return ids, nil
}

// Insert satisfies contracts.Index with path-only indexing.
func (idx *BinaryIndex) Insert(ctx context.Context, id types.DocumentID, path types.ValidatedPath) error {
	return idx.InsertWithContent(ctx, id, path, "", "")
}

// InsertWithContent mirrors TextIndex.InsertWithContent but updates the
// in-memory hot cache only; persistence happens on the AUTO_FLUSH_THRESHOLD
// schedule or an explicit Flush/Close.
func (idx *BinaryIndex) InsertWithContent(ctx context.Context, id types.DocumentID, path types.ValidatedPath, title, content string) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "insert cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(id)

	composed := searchableComposition(path.String(), content)
	trigrams := Extract(composed)
	for _, tg := range trigrams {
		set, ok := idx.hotCache[tg]
		if !ok {
			set = make(map[types.DocumentID]bool)
			idx.hotCache[tg] = set
		}
		set[id] = true
	}
	idx.docMeta[id] = binaryDocMeta{
		titleHash:    xxhash.Sum64String(title),
		wordCount:    uint32(len(splitWords(content))),
		trigramCount: uint32(len(trigrams)),
	}
	idx.dirty++

	if idx.dirty >= binaryAutoFlushN {
		return idx.flushLocked()
	}
	return nil
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

func (idx *BinaryIndex) removeLocked(id types.DocumentID) {
	for tg, set := range idx.hotCache {
		if !set[id] {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(idx.hotCache, tg)
		}
	}
	delete(idx.docMeta, id)
}

// Search tokenises query terms and unions postings from the hot cache (the
// authoritative in-memory state). An empty term set is treated as a
// wildcard: every indexed identifier is returned, per spec §4.3/§4.4's
// documented asymmetry with the text form.
func (idx *BinaryIndex) Search(ctx context.Context, q types.Query) ([]contracts.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, kotaerr.Wrap(kotaerr.Cancelled, err, "search cancelled")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	limit := q.Limit.Value()

	if len(q.Terms) == 0 {
		ids := make([]types.DocumentID, 0, len(idx.docMeta))
		for id := range idx.docMeta {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
		if limit > 0 && limit < len(ids) {
			ids = ids[:limit]
		}
		out := make([]contracts.SearchResult, len(ids))
		for i, id := range ids {
			out[i] = contracts.SearchResult{ID: id, Score: 1}
		}
		return out, nil
	}

	counts := make(map[types.DocumentID]int)
	queryTrigrams := make(map[Trigram]bool)
	for _, term := range q.Terms {
		for _, tg := range Extract(term) {
			queryTrigrams[tg] = true
		}
	}
	for tg := range queryTrigrams {
		for id := range idx.hotCache[tg] {
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
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes id from every posting, dropping empty postings, and
// refuses to drive any counter negative.
func (idx *BinaryIndex) Delete(ctx context.Context, id types.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "delete cancelled")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.docMeta[id]; !ok {
		return kotaerr.New(kotaerr.NotFound, "document id not present in binary trigram index")
	}
	idx.removeLocked(id)
	idx.dirty++
	if idx.dirty >= binaryAutoFlushN {
		return idx.flushLocked()
	}
	return nil
}

// List returns every indexed identifier (wildcard listing).
func (idx *BinaryIndex) List(ctx context.Context) ([]contracts.SearchResult, error) {
	return idx.Search(ctx, types.Query{Limit: unlimitedLimit()})
}

func unlimitedLimit() types.ValidatedLimit {
	l, _ := types.NewValidatedLimit(types.DefaultDocumentsCap, types.DefaultDocumentsCap)
	return l
}

// Count returns the number of indexed documents.
func (idx *BinaryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docMeta)
}

// Flush rewrites trigrams.bin, metadata.bin, and stats.bin atomically from
// the current hot cache (write tmp, rename), then re-opens the mmap read
// path.
func (idx *BinaryIndex) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.flushLocked()
}

func (idx *BinaryIndex) flushLocked() error {
	if err := idx.unmapLocked(); err != nil {
		return err
	}

	body := encodeBody(idx.hotCache)
	checksum := crc32.Checksum(body, castagnoliTable)

	header := make([]byte, binaryHeaderSize)
	copy(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(header[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(header[8:12], 0) // flags
	binary.LittleEndian.PutUint64(header[12:20], uint64(time.Now().UTC().UnixNano()))
	binary.LittleEndian.PutUint32(header[20:24], checksum)

	full := append(header, body...)
	path := filepath.Join(idx.dir, binaryFileName)
	if err := atomicWrite(path, full); err != nil {
		return err
	}
	if err := idx.flushAuxiliaryLocked(); err != nil {
		return err
	}
	idx.dirty = 0

	f, err := os.Open(path)
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "reopen trigrams.bin")
	}
	fi, err := f.Stat()
	if err != nil || fi.Size() == 0 {
		f.Close()
		return nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return kotaerr.Wrap(kotaerr.IOError, err, "remap trigrams.bin")
	}
	offsets, err := scanOffsets(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return err
	}
	idx.file = f
	idx.mapping = m
	idx.offsets = offsets
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "write "+path)
	}
	return kotaerr.Wrap(kotaerr.IOError, os.Rename(tmp, path), "rename "+path)
}

func encodeBody(hotCache map[Trigram]map[types.DocumentID]bool) []byte {
	trigrams := make([]Trigram, 0, len(hotCache))
	for tg := range hotCache {
		trigrams = append(trigrams, tg)
	}
	sort.Slice(trigrams, func(i, j int) bool { return trigrams[i] < trigrams[j] })

	size := 4
	for _, tg := range trigrams {
		size += 2 + len(tg) + 4 + 16*len(hotCache[tg])
	}
	body := make([]byte, size)
	binary.LittleEndian.PutUint32(body[:4], uint32(len(trigrams)))
	off := 4
	for _, tg := range trigrams {
		binary.LittleEndian.PutUint16(body[off:off+2], uint16(len(tg)))
		off += 2
		copy(body[off:], tg)
		off += len(tg)

		ids := make([]types.DocumentID, 0, len(hotCache[tg]))
		for id := range hotCache[tg] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

		binary.LittleEndian.PutUint32(body[off:off+4], uint32(len(ids)))
		off += 4
		for _, id := range ids {
			copy(body[off:], id[:])
			off += 16
		}
	}
	return body
}

// packCounts folds word count and unique-trigram count into one u32:
// word count in the high 16 bits, trigram count in the low 16, each
// saturating at 65535.
func packCounts(wordCount, trigramCount uint32) uint32 {
	if wordCount > 0xFFFF {
		wordCount = 0xFFFF
	}
	if trigramCount > 0xFFFF {
		trigramCount = 0xFFFF
	}
	return wordCount<<16 | trigramCount
}

func (idx *BinaryIndex) loadAuxiliary() error {
	b, err := os.ReadFile(filepath.Join(idx.dir, binaryMetaName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "read metadata.bin")
	}
	off := 0
	for off+32 <= len(b) {
		var id types.DocumentID
		copy(id[:], b[off:off+16])
		off += 16
		titleHash := binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		packed := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		freqLen := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		// Sparse frequency vector: freqLen (trigram hash, count) pairs.
		// Skipped on load; the postings themselves are authoritative.
		off += int(freqLen) * 8
		idx.docMeta[id] = binaryDocMeta{
			titleHash:    titleHash,
			wordCount:    packed >> 16,
			trigramCount: packed & 0xFFFF,
		}
	}
	return nil
}

func (idx *BinaryIndex) flushAuxiliaryLocked() error {
	buf := make([]byte, 0, 32*len(idx.docMeta))
	ids := make([]types.DocumentID, 0, len(idx.docMeta))
	for id := range idx.docMeta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		m := idx.docMeta[id]
		rec := make([]byte, 32)
		copy(rec[0:16], id[:])
		binary.LittleEndian.PutUint64(rec[16:24], m.titleHash)
		binary.LittleEndian.PutUint32(rec[24:28], packCounts(m.wordCount, m.trigramCount))
		binary.LittleEndian.PutUint32(rec[28:32], 0) // empty sparse frequency vector
		buf = append(buf, rec...)
	}
	if err := atomicWrite(filepath.Join(idx.dir, binaryMetaName), buf); err != nil {
		return err
	}

	stats := make([]byte, 16)
	binary.LittleEndian.PutUint32(stats[0:4], uint32(len(idx.docMeta)))
	binary.LittleEndian.PutUint32(stats[4:8], uint32(len(idx.hotCache)))
	binary.LittleEndian.PutUint64(stats[8:16], uint64(time.Now().UTC().Unix()))
	return atomicWrite(filepath.Join(idx.dir, binaryStatsName), stats)
}

var _ contracts.Index = (*BinaryIndex)(nil)
