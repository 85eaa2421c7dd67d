package graph

import (
	"encoding/binary"
	"time"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// The wire layout below is a hand-rolled length-prefixed binary encoding
// in the same idiom as store/codec.go and index/trigram's binary form,
// standing in for the original's bincode framing.

func putStr(buf []byte, off int, s string) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	off += 4
	copy(buf[off:], s)
	return off + len(s)
}

func strSize(s string) int { return 4 + len(s) }

func putProps(buf []byte, off int, props map[string]string) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(props)))
	off += 4
	for k, v := range props {
		off = putStr(buf, off, k)
		off = putStr(buf, off, v)
	}
	return off
}

func propsSize(props map[string]string) int {
	size := 4
	for k, v := range props {
		size += strSize(k) + strSize(v)
	}
	return size
}

const locSize = 4 * 4

func putLoc(buf []byte, off int, l Location) int {
	binary.LittleEndian.PutUint32(buf[off:], l.StartLine)
	binary.LittleEndian.PutUint32(buf[off+4:], l.StartCol)
	binary.LittleEndian.PutUint32(buf[off+8:], l.EndLine)
	binary.LittleEndian.PutUint32(buf[off+12:], l.EndCol)
	return off + locSize
}

func nodeRecordSize(n NodeRecord) int {
	return strSize(string(n.ID)) + strSize(n.Type) + strSize(n.Name) +
		strSize(n.FilePath) + locSize + propsSize(n.Properties) + 8 + 8
}

func encodeNodeRecord(n NodeRecord) []byte {
	buf := make([]byte, nodeRecordSize(n))
	off := 0
	off = putStr(buf, off, string(n.ID))
	off = putStr(buf, off, n.Type)
	off = putStr(buf, off, n.Name)
	off = putStr(buf, off, n.FilePath)
	off = putLoc(buf, off, n.Loc)
	off = putProps(buf, off, n.Properties)
	binary.LittleEndian.PutUint64(buf[off:], uint64(n.Created.UnixNano()))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(n.Updated.UnixNano()))
	off += 8
	return buf
}

func edgeSize(e GraphEdge) int {
	return strSize(string(e.Kind)) + locSize + strSize(e.Context) + propsSize(e.Properties) + 8
}

func encodeEdge(e GraphEdge) []byte {
	buf := make([]byte, edgeSize(e))
	off := 0
	off = putStr(buf, off, string(e.Kind))
	off = putLoc(buf, off, e.Loc)
	off = putStr(buf, off, e.Context)
	off = putProps(buf, off, e.Properties)
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.Created.UnixNano()))
	return buf
}

type decoder struct {
	b   []byte
	off int
}

func (d *decoder) u32() (uint32, error) {
	if d.off+4 > len(d.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated graph record")
	}
	v := binary.LittleEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.off+8 > len(d.b) {
		return 0, kotaerr.New(kotaerr.CorruptedStorage, "truncated graph record")
	}
	v := binary.LittleEndian.Uint64(d.b[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if d.off+int(n) > len(d.b) {
		return "", kotaerr.New(kotaerr.CorruptedStorage, "truncated graph record")
	}
	s := string(d.b[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) loc() (Location, error) {
	var l Location
	var err error
	if l.StartLine, err = d.u32(); err != nil {
		return Location{}, err
	}
	if l.StartCol, err = d.u32(); err != nil {
		return Location{}, err
	}
	if l.EndLine, err = d.u32(); err != nil {
		return Location{}, err
	}
	if l.EndCol, err = d.u32(); err != nil {
		return Location{}, err
	}
	return l, nil
}

func (d *decoder) props() (map[string]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.str()
		if err != nil {
			return nil, err
		}
		v, err := d.str()
		if err != nil {
			return nil, err
		}
		props[k] = v
	}
	return props, nil
}

func decodeNodeRecord(b []byte) (NodeRecord, error) {
	d := &decoder{b: b}
	id, err := d.str()
	if err != nil {
		return NodeRecord{}, err
	}
	typ, err := d.str()
	if err != nil {
		return NodeRecord{}, err
	}
	name, err := d.str()
	if err != nil {
		return NodeRecord{}, err
	}
	filePath, err := d.str()
	if err != nil {
		return NodeRecord{}, err
	}
	loc, err := d.loc()
	if err != nil {
		return NodeRecord{}, err
	}
	props, err := d.props()
	if err != nil {
		return NodeRecord{}, err
	}
	created, err := d.u64()
	if err != nil {
		return NodeRecord{}, err
	}
	updated, err := d.u64()
	if err != nil {
		return NodeRecord{}, err
	}
	return NodeRecord{
		ID:         NodeID(id),
		Type:       typ,
		Name:       name,
		FilePath:   filePath,
		Loc:        loc,
		Properties: props,
		Created:    time.Unix(0, int64(created)).UTC(),
		Updated:    time.Unix(0, int64(updated)).UTC(),
	}, nil
}

func decodeEdge(b []byte) (GraphEdge, error) {
	d := &decoder{b: b}
	kind, err := d.str()
	if err != nil {
		return GraphEdge{}, err
	}
	loc, err := d.loc()
	if err != nil {
		return GraphEdge{}, err
	}
	contextSnippet, err := d.str()
	if err != nil {
		return GraphEdge{}, err
	}
	props, err := d.props()
	if err != nil {
		return GraphEdge{}, err
	}
	created, err := d.u64()
	if err != nil {
		return GraphEdge{}, err
	}
	return GraphEdge{
		Kind:       RelationKind(kind),
		Loc:        loc,
		Context:    contextSnippet,
		Properties: props,
		Created:    time.Unix(0, int64(created)).UTC(),
	}, nil
}

// encodeWALEntry serializes one WAL record: op byte, then op-specific
// fields.
func encodeWALEntry(e walEntry) []byte {
	switch e.op {
	case opNodeInsert, opNodeUpdate:
		body := encodeNodeRecord(e.node)
		buf := make([]byte, 1+len(body))
		buf[0] = byte(e.op)
		copy(buf[1:], body)
		return buf
	case opNodeDelete:
		buf := make([]byte, 1+strSize(string(e.node.ID)))
		buf[0] = byte(e.op)
		putStr(buf, 1, string(e.node.ID))
		return buf
	case opEdgeInsert, opEdgeUpdate:
		body := encodeEdge(e.edge)
		size := 1 + strSize(string(e.from)) + strSize(string(e.to)) + len(body)
		buf := make([]byte, size)
		buf[0] = byte(e.op)
		off := putStr(buf, 1, string(e.from))
		off = putStr(buf, off, string(e.to))
		copy(buf[off:], body)
		return buf
	case opEdgeDelete:
		size := 1 + strSize(string(e.from)) + strSize(string(e.to))
		buf := make([]byte, size)
		buf[0] = byte(e.op)
		off := putStr(buf, 1, string(e.from))
		putStr(buf, off, string(e.to))
		return buf
	case opEdgeDeleteByType, opEdgeUpdateByType:
		var body []byte
		if e.op == opEdgeUpdateByType {
			body = encodeEdge(e.edge)
		}
		size := 1 + strSize(string(e.from)) + strSize(string(e.to)) + strSize(string(e.kind)) + len(body)
		buf := make([]byte, size)
		buf[0] = byte(e.op)
		off := putStr(buf, 1, string(e.from))
		off = putStr(buf, off, string(e.to))
		off = putStr(buf, off, string(e.kind))
		copy(buf[off:], body)
		return buf
	case opCheckpoint:
		return []byte{byte(e.op)}
	default:
		return []byte{byte(e.op)}
	}
}

func decodeWALEntry(b []byte) (walEntry, error) {
	if len(b) < 1 {
		return walEntry{}, kotaerr.New(kotaerr.CorruptedStorage, "empty wal record")
	}
	op := walOp(b[0])
	d := &decoder{b: b, off: 1}
	switch op {
	case opNodeInsert, opNodeUpdate:
		n, err := decodeNodeRecord(b[1:])
		return walEntry{op: op, node: n}, err
	case opNodeDelete:
		id, err := d.str()
		return walEntry{op: op, node: NodeRecord{ID: NodeID(id)}}, err
	case opEdgeInsert, opEdgeUpdate:
		from, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		to, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		edge, err := decodeEdge(b[d.off:])
		return walEntry{op: op, from: NodeID(from), to: NodeID(to), edge: edge}, err
	case opEdgeDelete:
		from, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		to, err := d.str()
		return walEntry{op: op, from: NodeID(from), to: NodeID(to)}, err
	case opEdgeDeleteByType, opEdgeUpdateByType:
		from, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		to, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		kind, err := d.str()
		if err != nil {
			return walEntry{}, err
		}
		var edge GraphEdge
		if op == opEdgeUpdateByType {
			edge, err = decodeEdge(b[d.off:])
		}
		return walEntry{op: op, from: NodeID(from), to: NodeID(to), kind: RelationKind(kind), edge: edge}, err
	case opCheckpoint:
		return walEntry{op: op}, nil
	default:
		return walEntry{}, kotaerr.New(kotaerr.CorruptedStorage, "unknown wal op")
	}
}
