package storage

import (
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/klauspost/compress/zstd"

	"blendlink/internal/logging"
)

// Compression markers stored per row, so a cache written with compression
// enabled stays readable after the setting changes.
const (
	compressionZstd = "zstd"
	compressionNone = "none"
)

var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

// Key identifies one file state. A cache hit requires path, size and mtime
// to all match, so any touched file reads as a miss.
type Key struct {
	Path    string
	Size    int64
	MtimeNs int64
}

// KeyFor builds a Key from a file's stat info.
func KeyFor(path string, info fs.FileInfo) Key {
	return Key{
		Path:    path,
		Size:    info.Size(),
		MtimeNs: info.ModTime().UnixNano(),
	}
}

// CacheStats summarizes cache contents for doctor output.
type CacheStats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"totalBytes"`
}

// Cache stores opaque per-file payloads keyed by file state. Callers decide
// what the payload bytes mean; this layer only handles staleness and
// compression.
type Cache struct {
	db       *DB
	logger   *logging.Logger
	compress bool
}

// NewCache creates a cache over an open database. When compress is set,
// new payloads are stored zstd-compressed.
func NewCache(db *DB, compress bool, logger *logging.Logger) *Cache {
	return &Cache{db: db, logger: logger, compress: compress}
}

// Get returns the payload cached for key. ok is false on a miss or when
// the stored size or mtime no longer match.
func (c *Cache) Get(key Key) ([]byte, bool) {
	var size, mtimeNs int64
	var payload []byte
	var compression string

	err := c.db.QueryRow(`
		SELECT size, mtime_ns, payload, compression
		FROM scan_cache
		WHERE path = ?
	`, key.Path).Scan(&size, &mtimeNs, &payload, &compression)

	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("scan cache lookup failed", map[string]interface{}{
			"path":  key.Path,
			"error": err.Error(),
		})
		return nil, false
	}

	if size != key.Size || mtimeNs != key.MtimeNs {
		return nil, false
	}

	if compression == compressionZstd {
		decoded, err := zstdDec.DecodeAll(payload, nil)
		if err != nil {
			c.logger.Warn("scan cache entry is corrupt, treating as miss", map[string]interface{}{
				"path":  key.Path,
				"error": err.Error(),
			})
			return nil, false
		}
		payload = decoded
	}

	return payload, true
}

// Put stores a payload for key, replacing any previous entry for the path.
func (c *Cache) Put(key Key, payload []byte) error {
	stored := payload
	compression := compressionNone
	if c.compress {
		stored = zstdEnc.EncodeAll(payload, nil)
		compression = compressionZstd
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO scan_cache (path, size, mtime_ns, payload, compression, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.Path, key.Size, key.MtimeNs, stored, compression, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to write scan cache: %w", err)
	}
	return nil
}

// Prune deletes entries whose path is not in live and returns how many
// were removed. Called after a scan so the cache tracks the project tree.
func (c *Cache) Prune(live map[string]bool) (int, error) {
	removed := 0

	err := c.db.WithTx(func(tx *sql.Tx) error {
		rows, err := tx.Query("SELECT path FROM scan_cache")
		if err != nil {
			return err
		}

		var stale []string
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return err
			}
			if !live[path] {
				stale = append(stale, path)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, path := range stale {
			if _, err := tx.Exec("DELETE FROM scan_cache WHERE path = ?", path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to prune scan cache: %w", err)
	}
	return removed, nil
}

// Clear drops every cache entry.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM scan_cache"); err != nil {
		return fmt.Errorf("failed to clear scan cache: %w", err)
	}
	return nil
}

// Stats reports entry count and stored payload bytes.
func (c *Cache) Stats() (CacheStats, error) {
	var stats CacheStats
	err := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0)
		FROM scan_cache
	`).Scan(&stats.Entries, &stats.TotalBytes)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}
