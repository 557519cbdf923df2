package hnl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// AcceptanceCache persists geometric acceptance records as a slim CSV
// sidecar next to the trajectory file: one row per hit (row_idx,
// entry_distance, path_length), keyed by the batch content tag and the
// geometry tag so either changing invalidates the cache.
type AcceptanceCache struct {
	Dir string
	Log *zap.Logger
}

func (c *AcceptanceCache) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

func (c *AcceptanceCache) pathFor(batch *Batch, geomTag string) string {
	dir := c.Dir
	if dir == "" {
		dir = filepath.Dir(batch.SourcePath)
	}
	base := filepath.Base(batch.SourcePath)
	name := fmt.Sprintf("%s.geom-%s-%s.csv", base, geomTag, batch.Tag())
	return filepath.Join(dir, name)
}

// Load returns cached acceptance records for the batch, or ok=false on
// any miss or parse problem (a corrupt sidecar is treated as a miss and
// recomputed, never trusted).
func (c *AcceptanceCache) Load(batch *Batch, geomTag string) ([]Acceptance, bool) {
	path := c.pathFor(batch, geomTag)
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil || len(header) < 3 {
		c.logger().Warn("discarding unreadable acceptance cache", zap.String("path", path))
		return nil, false
	}

	recs := make([]Acceptance, len(batch.Trajectories))
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(row) < 3 {
			c.logger().Warn("discarding corrupt acceptance cache", zap.String("path", path))
			return nil, false
		}
		idx, err1 := strconv.Atoi(row[0])
		entry, err2 := strconv.ParseFloat(row[1], 64)
		path2, err3 := strconv.ParseFloat(row[2], 64)
		if err1 != nil || err2 != nil || err3 != nil || idx < 0 || idx >= len(recs) {
			c.logger().Warn("discarding corrupt acceptance cache", zap.String("path", path))
			return nil, false
		}
		recs[idx] = Acceptance{Hit: true, Entry: entry, Path: path2}
	}
	return recs, true
}

// Store writes the sidecar atomically: temp file in the destination
// directory, then rename. Two workers racing to populate the same
// sidecar each write a complete file; the rename decides the winner.
func (c *AcceptanceCache) Store(batch *Batch, geomTag string, recs []Acceptance) error {
	path := c.pathFor(batch, geomTag)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"row_idx", "entry_distance", "path_length"}); err != nil {
		tmp.Close()
		return err
	}
	for i, rec := range recs {
		if !rec.Hit {
			continue
		}
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(rec.Entry, 'g', 17, 64),
			strconv.FormatFloat(rec.Path, 'g', 17, 64),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish cache file: %w", err)
	}
	return nil
}

// AcceptedRecords returns the acceptance records for the batch, served
// from the sidecar when present and recomputed (then stored) otherwise.
func (c *AcceptanceCache) AcceptedRecords(batch *Batch, mesh *Mesh, geomTag string, origin Vec3) ([]Acceptance, error) {
	if recs, ok := c.Load(batch, geomTag); ok {
		c.logger().Debug("acceptance cache hit",
			zap.String("batch", batch.SourcePath), zap.Int("rows", len(recs)))
		return recs, nil
	}
	recs := mesh.IntersectRays(origin, batch.Directions())
	if err := c.Store(batch, geomTag, recs); err != nil {
		c.logger().Warn("acceptance cache write failed", zap.Error(err))
	}
	return recs, nil
}
