package ops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DrillResult describes one backup-and-restore rehearsal.
type DrillResult struct {
	Archive    string
	RestoreDir string
	Digest     string
}

// Drill backs up the data dir, restores the archive into a scratch
// directory, and verifies both trees hash identically. Run it before
// trusting a backup schedule.
func Drill(dataDir, workDir string) (DrillResult, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return DrillResult{}, err
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	archive := filepath.Join(workDir, "todoquest-drill-"+ts+".tar.gz")
	restoreDir := filepath.Join(workDir, "todoquest-drill-restore-"+ts)

	if err := BackupDataDir(dataDir, archive); err != nil {
		return DrillResult{}, err
	}
	if err := RestoreDataDir(archive, restoreDir); err != nil {
		return DrillResult{}, err
	}

	srcDigest, err := DirDigest(dataDir)
	if err != nil {
		return DrillResult{}, err
	}
	restoreDigest, err := DirDigest(restoreDir)
	if err != nil {
		return DrillResult{}, err
	}
	if srcDigest != restoreDigest {
		return DrillResult{}, fmt.Errorf("digest mismatch after restore: src=%s restored=%s", srcDigest, restoreDigest)
	}

	return DrillResult{Archive: archive, RestoreDir: restoreDir, Digest: srcDigest}, nil
}

// DirDigest hashes every regular file under root, path and content, in a
// stable order.
func DirDigest(root string) (string, error) {
	root = filepath.Clean(root)
	entries := []string{}
	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	}); err != nil {
		return "", err
	}
	sort.Strings(entries)

	h := sha256.New()
	for _, rel := range entries {
		_, _ = io.WriteString(h, rel)
		_, _ = io.WriteString(h, "\n")
		b, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return "", err
		}
		if _, err := h.Write(b); err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
