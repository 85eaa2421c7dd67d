package vector

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/kotadb/kotadb-go/kotaerr"
	"github.com/kotadb/kotadb-go/types"
)

const (
	vectorFileName = "vectors.bin"
	vectorMagic    = "KTVC"
	vectorVersion  = 2
)

// Open loads an index previously persisted under dir, or returns an empty
// index of the given dimension/metric if dir has no vectors.bin yet, per
// spec §4.5's "no-op on missing file" rule.
func Open(dir string, dimension int, metric Metric) (*Index, error) {
	idx := New(dimension, metric)
	idx.path = filepath.Join(dir, vectorFileName)

	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "read vectors.bin")
	}
	if err := idx.decode(data); err != nil {
		return nil, err
	}
	return idx, nil
}

// Close flushes any pending mutations unconditionally, per spec §4.5.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.path == "" {
		return nil
	}
	return idx.flushLocked()
}

// Flush forces a persistence write regardless of the dirty counter.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.path == "" {
		return nil
	}
	return idx.flushLocked()
}

func (idx *Index) flushLocked() error {
	data := idx.encode()
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "write vectors.bin")
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "rename vectors.bin")
	}
	idx.dirty = 0
	return nil
}

// encode serializes the whole index as one blob: header, dimension,
// metric, entry point, then each node's id/vector/per-level adjacency.
func (idx *Index) encode() []byte {
	ids := make([]types.DocumentID, 0, len(idx.nodes))
	for id := range idx.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	size := len(vectorMagic) + 4 + 4 + 4 + 1 + 16 + 4
	for _, id := range ids {
		n := idx.nodes[id]
		size += 16 + 8 + 4 + 4*len(n.vector) + 4
		for _, lv := range n.levels {
			size += 4 + 16*len(lv)
		}
	}

	buf := make([]byte, size)
	off := copy(buf, vectorMagic)
	binary.LittleEndian.PutUint32(buf[off:], vectorVersion)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(idx.dimension))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(idx.metric))
	off += 4
	if idx.hasEntry {
		buf[off] = 1
	}
	off++
	copy(buf[off:], idx.entryPoint[:])
	off += 16

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(ids)))
	off += 4
	for _, id := range ids {
		n := idx.nodes[id]
		copy(buf[off:], n.id[:])
		off += 16
		binary.LittleEndian.PutUint64(buf[off:], n.seq)
		off += 8
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(n.vector)))
		off += 4
		for _, v := range n.vector {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(n.levels)))
		off += 4
		for _, lv := range n.levels {
			binary.LittleEndian.PutUint32(buf[off:], uint32(len(lv)))
			off += 4
			for _, nb := range lv {
				copy(buf[off:], nb[:])
				off += 16
			}
		}
	}
	return buf
}

func (idx *Index) decode(data []byte) error {
	if len(data) < len(vectorMagic)+4 || string(data[:len(vectorMagic)]) != vectorMagic {
		return kotaerr.New(kotaerr.CorruptedStorage, "bad vectors.bin magic")
	}
	r := &reader{b: data, off: len(vectorMagic)}

	version, err := r.u32()
	if err != nil {
		return err
	}
	if version != vectorVersion {
		return kotaerr.New(kotaerr.CorruptedStorage, "unsupported vectors.bin version")
	}
	dimension, err := r.u32()
	if err != nil {
		return err
	}
	metric, err := r.u32()
	if err != nil {
		return err
	}
	hasEntry, err := r.byte()
	if err != nil {
		return err
	}
	var entryPoint types.DocumentID
	entryBytes, err := r.fixed(16)
	if err != nil {
		return err
	}
	copy(entryPoint[:], entryBytes)

	count, err := r.u32()
	if err != nil {
		return err
	}

	nodes := make(map[types.DocumentID]*node, count)
	var nextSeq uint64
	for i := uint32(0); i < count; i++ {
		idBytes, err := r.fixed(16)
		if err != nil {
			return err
		}
		var id types.DocumentID
		copy(id[:], idBytes)

		seq, err := r.u64()
		if err != nil {
			return err
		}

		vecLen, err := r.u32()
		if err != nil {
			return err
		}
		vec := make([]float32, vecLen)
		for j := range vec {
			bits, err := r.u32()
			if err != nil {
				return err
			}
			vec[j] = math.Float32frombits(bits)
		}

		levelCount, err := r.u32()
		if err != nil {
			return err
		}
		levels := make([][]types.DocumentID, levelCount)
		for l := range levels {
			nbCount, err := r.u32()
			if err != nil {
				return err
			}
			nbs := make([]types.DocumentID, nbCount)
			for k := range nbs {
				nbBytes, err := r.fixed(16)
				if err != nil {
					return err
				}
				copy(nbs[k][:], nbBytes)
			}
			levels[l] = nbs
		}

		nodes[id] = &node{id: id, vector: vec, levels: levels, seq: seq}
		if seq >= nextSeq {
			nextSeq = seq + 1
		}
	}

	idx.dimension = int(dimension)
	idx.metric = Metric(metric)
	idx.hasEntry = hasEntry == 1
	idx.entryPoint = entryPoint
	idx.nodes = nodes
	idx.nextSeq = nextSeq
	return nil
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated vectors.bin")
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated vectors.bin")
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.off+1 > len(r.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated vectors.bin")
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, kotaerr.New(kotaerr.CorruptedStorage, "truncated vectors.bin")
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}
