package graph

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sglog "github.com/sourcegraph/log"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// walOp is the WAL record kind tag, spec's "full list of WAL record kinds".
type walOp byte

const (
	opNodeInsert walOp = iota + 1
	opNodeUpdate
	opNodeDelete
	opEdgeInsert
	opEdgeDelete
	opEdgeDeleteByType
	opEdgeUpdate
	opEdgeUpdateByType
	opCheckpoint
)

// walRotateThreshold is the size at which the current WAL file is
// archived and a fresh one opened, per spec §4.6.
const walRotateThreshold = 10 * 1024 * 1024

// walEntry is the decoded form of one WAL record. Only the fields
// relevant to op are populated.
type walEntry struct {
	op   walOp
	node NodeRecord
	from NodeID
	to   NodeID
	edge GraphEdge
	kind RelationKind
}

func walDir(root string) string  { return filepath.Join(root, "wal") }
func currentWALPath(root string) string { return filepath.Join(walDir(root), "current.wal") }

func archiveName(ts int64) string {
	return fmt.Sprintf("wal_%d.archive", ts)
}

// appendWAL writes one length-framed record to the WAL file and fsyncs.
func appendWAL(f *os.File, e walEntry) error {
	payload := encodeWALEntry(e)
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)))
	if _, err := f.Write(header); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "append wal header")
	}
	if _, err := f.Write(payload); err != nil {
		return kotaerr.Wrap(kotaerr.IOError, err, "append wal payload")
	}
	return kotaerr.Wrap(kotaerr.IOError, f.Sync(), "fsync wal")
}

// replayWAL reads every length-framed record from path in order and
// invokes apply for each. Missing files are treated as empty. A truncated
// frame aborts the replay; an entry that fails to deserialise is skipped
// with a warning, per the recovery contract.
func replayWAL(path string, logger sglog.Logger, apply func(walEntry) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kotaerr.Wrap(kotaerr.IOError, err, "read wal "+path)
	}
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return kotaerr.New(kotaerr.CorruptedStorage, "truncated wal frame header in "+path)
		}
		size := binary.LittleEndian.Uint32(data[off:])
		off += 4
		if off+int(size) > len(data) {
			return kotaerr.New(kotaerr.CorruptedStorage, "truncated wal frame body in "+path)
		}
		entry, err := decodeWALEntry(data[off : off+int(size)])
		off += int(size)
		if err != nil {
			logger.Warn("skipping malformed wal entry",
				sglog.String("path", path), sglog.Error(err))
			continue
		}
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// listArchives returns archive file paths in ascending timestamp order,
// per spec's recovery-sequencing requirement.
func listArchives(root string) ([]string, error) {
	entries, err := os.ReadDir(walDir(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "read wal directory")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".archive" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // "wal_<unix-nanos>.archive" sorts lexically == chronologically
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(walDir(root), n)
	}
	return paths, nil
}

// rotateWAL renames the current WAL file to a timestamped archive and
// returns a fresh append-mode handle to a new current.wal.
func rotateWAL(root string, now time.Time) (*os.File, error) {
	cur := currentWALPath(root)
	if _, err := os.Stat(cur); err == nil {
		archived := filepath.Join(walDir(root), archiveName(now.UnixNano()))
		if err := os.Rename(cur, archived); err != nil {
			return nil, kotaerr.Wrap(kotaerr.IOError, err, "archive wal")
		}
	}
	f, err := os.OpenFile(cur, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.IOError, err, "open fresh wal")
	}
	return f, nil
}
