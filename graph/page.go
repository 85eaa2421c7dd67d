package graph

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/kotadb/kotadb-go/kotaerr"
)

const (
	pageSize = 4096

	nodeMagic       = "KOTGRAPH"
	nodeHeaderSize  = 8 + 4 + 2 + 2 + 4 // magic, page_id, record_count, free_offset, checksum
	maxNodeRecord   = 10 * 1024 * 1024  // safety ceiling, spec §4.6
	edgeMagic       = "EDGE"
	edgeHeaderSize  = 4 + 4 // magic, payload length
	packThreshold   = pageSize - 8
)

// edgeRecord is one on-disk edge: an endpoint pair plus its payload.
type edgeRecord struct {
	from NodeID
	to   NodeID
	edge GraphEdge
}

// packNodePages packs records into zero-padded 4 KiB pages, finalizing a
// page when the next record would exceed packThreshold, per spec §4.6.
func packNodePages(records []NodeRecord) ([][]byte, error) {
	var pages [][]byte
	var body []byte

	recordCountInBody := 0
	for _, r := range records {
		rec := encodeNodeRecord(r)
		if len(rec) > maxNodeRecord {
			return nil, kotaerr.New(kotaerr.ValidationInvariant, "node record exceeds 10 MiB safety ceiling")
		}
		frame := make([]byte, strSize(string(r.ID))+4+len(rec))
		off := putStr(frame, 0, string(r.ID))
		binary.LittleEndian.PutUint32(frame[off:], uint32(len(rec)))
		off += 4
		copy(frame[off:], rec)

		if len(body)+len(frame) > packThreshold && len(body) > 0 {
			pages = append(pages, finalizeNodePageWithCount(body, uint32(len(pages)), recordCountInBody))
			body = nil
			recordCountInBody = 0
		}
		body = append(body, frame...)
		recordCountInBody++
	}
	if len(body) > 0 {
		pages = append(pages, finalizeNodePageWithCount(body, uint32(len(pages)), recordCountInBody))
	}
	return pages, nil
}

func finalizeNodePageWithCount(body []byte, pageID uint32, recordCount int) []byte {
	page := make([]byte, pageSize)
	off := copy(page, nodeMagic)
	binary.LittleEndian.PutUint32(page[off:], pageID)
	off += 4
	binary.LittleEndian.PutUint16(page[off:], uint16(recordCount))
	off += 2
	freeOffset := nodeHeaderSize + len(body)
	binary.LittleEndian.PutUint16(page[off:], uint16(freeOffset))
	off += 2
	checksum := crc32.ChecksumIEEE(body)
	binary.LittleEndian.PutUint32(page[off:], checksum)
	off += 4
	copy(page[off:], body)
	return page
}

// unpackNodePages decodes a set of node pages back into records, verifying
// the magic and checksum of each.
func unpackNodePages(pages [][]byte) ([]NodeRecord, error) {
	var out []NodeRecord
	for _, page := range pages {
		if len(page) < nodeHeaderSize || string(page[:8]) != nodeMagic {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "bad node page magic")
		}
		recordCount := binary.LittleEndian.Uint16(page[12:14])
		freeOffset := binary.LittleEndian.Uint16(page[14:16])
		checksum := binary.LittleEndian.Uint32(page[16:20])
		if int(freeOffset) > len(page) {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "node page free offset out of range")
		}
		body := page[nodeHeaderSize:freeOffset]
		if crc32.ChecksumIEEE(body) != checksum {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "node page checksum mismatch")
		}

		d := &decoder{b: body}
		for i := uint16(0); i < recordCount; i++ {
			// id bytes are re-read as part of decodeNodeRecord below; skip
			// over the redundant id-length-prefixed id here.
			if _, err := d.str(); err != nil {
				return nil, err
			}
			size, err := d.u32()
			if err != nil {
				return nil, err
			}
			if d.off+int(size) > len(d.b) {
				return nil, kotaerr.New(kotaerr.CorruptedStorage, "truncated node page record body")
			}
			rec, err := decodeNodeRecord(d.b[d.off : d.off+int(size)])
			if err != nil {
				return nil, err
			}
			d.off += int(size)
			out = append(out, rec)
		}
	}
	return out, nil
}

// packEdgePages packs edge records into 4 KiB pages in the same style as
// node pages, without a checksum field (per spec's edge page layout).
func packEdgePages(records []edgeRecord) [][]byte {
	var pages [][]byte
	var body []byte
	for _, r := range records {
		edgeBody := encodeEdge(r.edge)
		frameSize := strSize(string(r.from)) + strSize(string(r.to)) + 4 + len(edgeBody)
		frame := make([]byte, frameSize)
		off := putStr(frame, 0, string(r.from))
		off = putStr(frame, off, string(r.to))
		binary.LittleEndian.PutUint32(frame[off:], uint32(len(edgeBody)))
		off += 4
		copy(frame[off:], edgeBody)

		if len(body)+len(frame) > packThreshold && len(body) > 0 {
			pages = append(pages, finalizeEdgePage(body))
			body = nil
		}
		body = append(body, frame...)
	}
	if len(body) > 0 {
		pages = append(pages, finalizeEdgePage(body))
	}
	return pages
}

func finalizeEdgePage(body []byte) []byte {
	page := make([]byte, pageSize)
	off := copy(page, edgeMagic)
	binary.LittleEndian.PutUint32(page[off:], uint32(len(body)))
	off += 4
	copy(page[off:], body)
	return page
}

func unpackEdgePages(pages [][]byte) ([]edgeRecord, error) {
	var out []edgeRecord
	for _, page := range pages {
		if len(page) < edgeHeaderSize || string(page[:4]) != edgeMagic {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "bad edge page magic")
		}
		bodyLen := binary.LittleEndian.Uint32(page[4:8])
		if int(bodyLen) > len(page)-edgeHeaderSize {
			return nil, kotaerr.New(kotaerr.CorruptedStorage, "edge page body length out of range")
		}
		body := page[edgeHeaderSize : edgeHeaderSize+int(bodyLen)]
		d := &decoder{b: body}
		for d.off < len(body) {
			from, err := d.str()
			if err != nil {
				return nil, err
			}
			to, err := d.str()
			if err != nil {
				return nil, err
			}
			size, err := d.u32()
			if err != nil {
				return nil, err
			}
			if d.off+int(size) > len(d.b) {
				return nil, kotaerr.New(kotaerr.CorruptedStorage, "truncated edge page record")
			}
			edge, err := decodeEdge(d.b[d.off : d.off+int(size)])
			if err != nil {
				return nil, err
			}
			d.off += int(size)
			out = append(out, edgeRecord{from: NodeID(from), to: NodeID(to), edge: edge})
		}
	}
	return out, nil
}

func nodePagePaths(dir string) ([]string, error) { return pagePaths(filepath.Join(dir, "nodes")) }
func edgePagePaths(dir string) ([]string, error) { return pagePaths(filepath.Join(dir, "edges")) }

func pagePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "read page directory "+dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".page" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}
