package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ptt/internal/record"
)

const cacheTimeFormat = "2006-01-02-15.04.05.000"

// ArtifactCache disposes of artifacts once a session is done with them: kept
// in the cache directory when configured, removed otherwise.
type ArtifactCache struct {
	dir  string
	keep bool
	log  zerolog.Logger
	now  func() time.Time
}

// NewArtifactCache creates a cache. Artifacts are kept only when keep is set
// and dir is non-empty.
func NewArtifactCache(dir string, keep bool, log zerolog.Logger) *ArtifactCache {
	return &ArtifactCache{dir: dir, keep: keep && dir != "", log: log, now: time.Now}
}

// Dispose moves or removes the artifact at path. raw is the engine response
// and is stored next to a kept artifact when transcription succeeded.
func (c *ArtifactCache) Dispose(path string, raw []byte, ok bool) {
	if path == "" {
		return
	}
	if !c.keep {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", path).Msg("artifact remove failed")
		}
		return
	}

	base := fmt.Sprintf("audio-%s", c.now().Format(cacheTimeFormat))
	kept := filepath.Join(c.dir, base+filepath.Ext(path))
	if err := os.Rename(path, kept); err != nil {
		c.log.Warn().Err(err).Str("path", kept).Msg("artifact cache rename failed")
		_ = os.Remove(path)
	} else {
		c.log.Debug().Str("path", kept).Msg("artifact cached")
	}

	if ok && len(raw) > 0 {
		jsonPath := filepath.Join(c.dir, base+".json")
		if err := os.WriteFile(jsonPath, raw, 0o644); err != nil {
			c.log.Warn().Err(err).Str("path", jsonPath).Msg("response cache write failed")
		}
	}
}

// sweepTempFiles removes artifacts left behind by an earlier run.
func sweepTempFiles(dir string, log zerolog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("temp dir read failed")
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, record.TempPrefix) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("stale artifact remove failed")
		} else {
			log.Debug().Str("path", path).Msg("stale artifact removed")
		}
	}
}
