package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// Sync snapshots in-memory node and edge maps, deletes existing page
// files, and writes fresh 4 KiB pages, per spec §4.6's "Persistence
// (sync)" sequence.
func (s *Store) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return kotaerr.Wrap(kotaerr.Cancelled, err, "sync cancelled")
	}

	s.nodesMu.RLock()
	nodes := make([]NodeRecord, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	s.nodesMu.RUnlock()

	s.edgesOutMu.RLock()
	var edges []edgeRecord
	for from, tos := range s.edgesOut {
		for to, bucket := range tos {
			for _, e := range bucket {
				edges = append(edges, edgeRecord{from: from, to: to, edge: e})
			}
		}
	}
	s.edgesOutMu.RUnlock()

	// Packing and rewriting the two page families is the bulk CPU+IO work
	// of a sync; fan them out so neither waits on the other.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		nodePages, err := packNodePages(nodes)
		if err != nil {
			return err
		}
		nodeDir := filepath.Join(s.root, "nodes")
		if err := clearPageDir(nodeDir); err != nil {
			return err
		}
		return writePages(nodeDir, nodePages)
	})
	g.Go(func() error {
		edgeDir := filepath.Join(s.root, "edges")
		if err := clearPageDir(edgeDir); err != nil {
			return err
		}
		return writePages(edgeDir, packEdgePages(edges))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return s.appendWAL(walEntry{op: opCheckpoint})
}

func clearPageDir(dir string) error {
	existing, err := pagePaths(dir)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return kotaerr.Wrap(kotaerr.IOError, err, "remove stale page "+p)
		}
	}
	return nil
}

func writePages(dir string, pages [][]byte) error {
	for i, page := range pages {
		path := filepath.Join(dir, fmt.Sprintf("%08d.page", i))
		if err := os.WriteFile(path, page, 0o644); err != nil {
			return kotaerr.Wrap(kotaerr.IOError, err, "write page "+path)
		}
	}
	return nil
}
