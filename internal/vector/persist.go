package vector

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/bookref/internal/models"
)

const (
	vectorsPrefix = "vectors-"
	vectorsSuffix = ".bin"
	metadataFile  = "metadata.json"

	formatVersion = 1
	// magic(4) + format(4) + dim(4) + count(4) + build id(16)
	headerSize = 32
)

var magic = [4]byte{'B', 'K', 'R', 'V'}

type metadata struct {
	Format    int       `json:"format"`
	Version   string    `json:"version"`
	Dimension int       `json:"dimension"`
	BuildID   string    `json:"build_id"`
	BuiltAt   time.Time `json:"built_at"`
	Count     int       `json:"count"`
	Vectors   string    `json:"vectors"`
	Entries   []Entry   `json:"entries"`
}

// vectorsName is the file holding the vectors of one build.
func vectorsName(id uuid.UUID) string {
	return vectorsPrefix + id.String() + vectorsSuffix
}

// writeFile is swapped in tests to simulate a failing disk.
var writeFile = writeFileAtomic

// versionSlug maps an embedding version such as "hash-v1/384" to a directory name
// ("hash-v1_384").
func versionSlug(version string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, version)
	if slug == "" || strings.Trim(slug, ".") == "" {
		return "default"
	}
	return slug
}

func (f *FlatIndex) artifactDir(version string) string {
	return filepath.Join(f.dir, versionSlug(version))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrCorruptIndex, fmt.Sprintf(format, args...))
}

// writeSnapshot persists s into dir. The vectors go to a file named by build id;
// renaming metadata.json over the previous one is the commit point, so a failure
// before it leaves the previous generation loadable.
func writeSnapshot(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(s.vectors)*4)
	buf.Write(magic[:])
	var u32 [4]byte
	for _, v := range []int{formatVersion, s.Dimension, s.Len()} {
		binary.LittleEndian.PutUint32(u32[:], uint32(v))
		buf.Write(u32[:])
	}
	buf.Write(s.BuildID[:])
	buf.Write(float32SliceToBytes(s.vectors))

	name := vectorsName(s.BuildID)
	meta, err := json.Marshal(metadata{
		Format:    formatVersion,
		Version:   s.Version,
		Dimension: s.Dimension,
		BuildID:   s.BuildID.String(),
		BuiltAt:   s.BuiltAt,
		Count:     s.Len(),
		Vectors:   name,
		Entries:   s.Entries,
	})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	vecPath := filepath.Join(dir, name)
	if err := writeFile(vecPath, buf.Bytes()); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, metadataFile), meta); err != nil {
		_ = os.Remove(vecPath)
		return err
	}
	removeStaleVectors(dir, name)
	return nil
}

// removeStaleVectors deletes vector files of earlier builds in dir.
func removeStaleVectors(dir, keep string) {
	old, _ := filepath.Glob(filepath.Join(dir, vectorsPrefix+"*"+vectorsSuffix))
	for _, p := range old {
		if filepath.Base(p) != keep {
			_ = os.Remove(p)
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readSnapshot loads and cross-checks the two artifacts in dir.
func readSnapshot(dir, version string, dim int) (*Snapshot, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrIndexNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, corrupt("metadata: %v", err)
	}
	if meta.Version != version {
		return nil, fmt.Errorf("%w: index %q, embedder %q", models.ErrVersionMismatch, meta.Version, version)
	}
	if meta.Format != formatVersion {
		return nil, corrupt("metadata format %d", meta.Format)
	}
	if meta.Vectors == "" || filepath.Base(meta.Vectors) != meta.Vectors {
		return nil, corrupt("metadata names vectors file %q", meta.Vectors)
	}

	raw, err := os.ReadFile(filepath.Join(dir, meta.Vectors))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, corrupt("%s missing", meta.Vectors)
	}
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	if len(raw) < headerSize || !bytes.Equal(raw[:4], magic[:]) {
		return nil, corrupt("bad header in %s", meta.Vectors)
	}
	if f := binary.LittleEndian.Uint32(raw[4:8]); f != formatVersion {
		return nil, corrupt("vectors format %d", f)
	}
	fileDim := int(binary.LittleEndian.Uint32(raw[8:12]))
	count := int(binary.LittleEndian.Uint32(raw[12:16]))
	var buildID uuid.UUID
	copy(buildID[:], raw[16:32])

	if fileDim != dim || meta.Dimension != dim {
		return nil, corrupt("dimension %d (metadata %d), embedder %d", fileDim, meta.Dimension, dim)
	}
	if count != meta.Count || count != len(meta.Entries) {
		return nil, corrupt("count %d, metadata %d with %d entries", count, meta.Count, len(meta.Entries))
	}
	if buildID.String() != meta.BuildID {
		return nil, corrupt("build id %s, metadata %s", buildID, meta.BuildID)
	}
	if want := headerSize + count*dim*4; len(raw) != want {
		return nil, corrupt("%s is %d bytes, want %d", meta.Vectors, len(raw), want)
	}

	s := &Snapshot{
		Version:   meta.Version,
		Dimension: dim,
		BuildID:   buildID,
		BuiltAt:   meta.BuiltAt,
		Entries:   meta.Entries,
		vectors:   bytesToFloat32Slice(raw[headerSize:]),
	}
	if err := validate(s, count, loadNormTolerance); err != nil {
		return nil, corrupt("%v", err)
	}
	return s, nil
}

// otherVersions lists artifact directories under root that do not belong to version.
func otherVersions(root, version string) []string {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	own := versionSlug(version)
	var out []string
	for _, d := range dirs {
		if !d.IsDir() || d.Name() == own || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, d.Name(), metadataFile)); err == nil {
			out = append(out, d.Name())
		}
	}
	return out
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size:]))
	}
	return out
}
