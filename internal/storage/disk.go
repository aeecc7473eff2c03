package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the persisted state, in bytes.
type Usage struct {
	Database     int64 `json:"database_bytes"`
	VectorIndex  int64 `json:"vector_index_bytes"`
	KeywordIndex int64 `json:"keyword_index_bytes"`
}

// Total returns the sum of all parts.
func (u Usage) Total() int64 {
	return u.Database + u.VectorIndex + u.KeywordIndex
}

// DiskUsage measures the database file (with its WAL side files), the vector index
// directory and the keyword index directory. Missing paths count as zero.
func DiskUsage(dbPath, indexDir, keywordPath string) (Usage, error) {
	var u Usage
	var err error
	if dbPath != "" {
		if u.Database, err = sizeOf(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
			return u, err
		}
	}
	if u.VectorIndex, err = sizeOf(indexDir); err != nil {
		return u, err
	}
	if u.KeywordIndex, err = sizeOf(keywordPath); err != nil {
		return u, err
	}
	return u, nil
}

func sizeOf(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	return total, nil
}
