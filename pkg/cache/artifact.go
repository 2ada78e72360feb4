// Package cache persists the parsed road network as a binary artifact next to
// its source extract, and memoises query results in memory.
package cache

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
	"github.com/NERVsystems/osmreach/pkg/tracing"
)

const (
	// ArtifactPrefix is prepended to the source file's base name
	ArtifactPrefix = "_cache.roadnet."

	// FormatVersion is bumped whenever the header or roadnet.Snapshot
	// changes shape
	FormatVersion uint32 = 2
)

var magic = [8]byte{'O', 'S', 'M', 'R', 'E', 'A', 'C', 'H'}

// errKeyMismatch marks an artifact built with other build parameters
var errKeyMismatch = errors.New("build key mismatch")

// BuildFunc produces a store from the raw source on a cache miss
type BuildFunc func(ctx context.Context) (*roadnet.Store, error)

type options struct {
	dir    string
	key    string
	logger *slog.Logger
}

// Option configures LoadOrBuild
type Option func(*options)

// WithDir places the artifact in dir instead of next to the source
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithBuildKey records key in new artifacts and requires it of existing
// ones. It names the parameters that shape the build, such as the road tag,
// so an artifact built differently is refused instead of silently reused.
func WithBuildKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithLogger sets the logger used for cache events
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// ArtifactPath returns where the artifact for source lives. An empty dir
// means the source file's own directory.
func ArtifactPath(source, dir string) string {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, ArtifactPrefix+filepath.Base(source))
}

// LoadOrBuild returns the store for source, decoding the artifact when one
// exists and otherwise calling build and publishing a new artifact. The
// artifact is found by source path and checked against the build key; a
// changed source with an existing artifact is not detected. An unreadable
// artifact or one with another build key is an error, never a rebuild.
func LoadOrBuild(ctx context.Context, source string, build BuildFunc, opts ...Option) (*roadnet.Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	path := ArtifactPath(source, o.dir)

	ctx, span := tracing.StartSpan(ctx, "cache.load_or_build")
	defer span.End()
	span.SetAttributes(attribute.String("osmreach.cache.path", path))

	start := time.Now()
	store, err := readArtifact(path, o.key)
	switch {
	case err == nil:
		monitoring.RecordCacheHit(tracing.CacheTypeArtifact)
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeArtifact, true, path)...)
		o.logger.Info("loaded road network from cache",
			"path", path,
			"roads", store.RoadCount(),
			"nodes", store.NodeCount(),
			"duration", time.Since(start))
		return store, nil
	case !errors.Is(err, fs.ErrNotExist):
		tracing.RecordError(ctx, err)
		return nil, err
	}

	monitoring.RecordCacheMiss(tracing.CacheTypeArtifact)
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeArtifact, false, path)...)
	o.logger.Info("no cached road network, parsing source", "source", source, "path", path)

	store, err = build(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	published, err := writeArtifact(path, o.key, store)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("write cache artifact %s: %w", path, err)
	}
	if published {
		o.logger.Info("wrote cache artifact", "path", path)
	} else {
		o.logger.Warn("cache artifact already present, keeping existing file", "path", path)
	}

	return store, nil
}

func readArtifact(path, key string) (*roadnet.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := decode(bufio.NewReader(f), key)
	if errors.Is(err, errKeyMismatch) {
		return nil, core.Errorf(core.ErrCacheCorrupt, "%s was built with other parameters", path).
			WithGuidance("Delete the artifact or restart with the road tag it was built with").
			Wrap(err)
	}
	if err != nil {
		return nil, core.Errorf(core.ErrCacheCorrupt, "cannot decode %s", path).
			WithGuidance("Delete the artifact to rebuild it from the source").
			Wrap(err)
	}

	store, err := roadnet.FromSnapshot(snap)
	if err != nil {
		return nil, core.Errorf(core.ErrCacheCorrupt, "inconsistent network in %s", path).
			WithGuidance("Delete the artifact to rebuild it from the source").
			Wrap(err)
	}
	return store, nil
}

func decode(r io.Reader, key string) (roadnet.Snapshot, error) {
	var snap roadnet.Snapshot

	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return snap, fmt.Errorf("reading header: %w", err)
	}
	if head != magic {
		return snap, fmt.Errorf("bad magic %q", head[:])
	}

	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return snap, fmt.Errorf("reading format version: %w", err)
	}
	if v != FormatVersion {
		return snap, fmt.Errorf("format version %d, want %d", v, FormatVersion)
	}

	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return snap, fmt.Errorf("reading build key: %w", err)
	}
	got := make([]byte, n)
	if _, err := io.ReadFull(r, got); err != nil {
		return snap, fmt.Errorf("reading build key: %w", err)
	}
	if string(got) != key {
		return snap, fmt.Errorf("%w: artifact has %q, want %q", errKeyMismatch, got, key)
	}

	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

func encode(w io.Writer, key string, snap roadnet.Snapshot) error {
	if len(key) > math.MaxUint16 {
		return fmt.Errorf("build key of %d bytes is too long", len(key))
	}
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(snap)
}

// writeArtifact publishes the store at path only if nothing is there yet.
// key is recorded in the header.
// It reports false when another writer got there first.
func writeArtifact(path, key string, store *roadnet.Store) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".osmreach-*.tmp")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := encode(bw, key, store.Snapshot()); err != nil {
		tmp.Close()
		return false, err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	// link fails if path exists, so a concurrent winner is never replaced
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ArtifactExists reports whether the artifact for source is present
func ArtifactExists(source, dir string) error {
	_, err := os.Stat(ArtifactPath(source, dir))
	return err
}
