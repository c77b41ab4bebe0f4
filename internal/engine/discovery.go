package engine

// discovery.go - Source artifact discovery and content hashing.

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sqlmorph/sqlmorph/internal/extract"
)

// Artifact is one discovered source file, hashed but not yet parsed.
type Artifact struct {
	// Path is the absolute path of the file.
	Path string
	// RelPath is the path relative to the source directory, used as
	// the stable artifact identity across runs.
	RelPath string
	// Hash is the hex sha256 of the raw file bytes.
	Hash string
	// Kind is the artifact kind declared in the file.
	Kind extract.ArtifactKind
	// Data is the raw file content.
	Data []byte
}

// Discover walks the source directory and returns every XML artifact,
// sorted by relative path. The hash is computed over raw bytes so any
// edit, including whitespace, invalidates cached outputs.
func (e *Engine) Discover() ([]*Artifact, error) {
	root := e.cfg.SourceDir
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}

	var artifacts []*Artifact
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		sum := sha256.Sum256(data)
		artifacts = append(artifacts, &Artifact{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Hash:    hex.EncodeToString(sum[:]),
			Kind:    sniffKind(data),
			Data:    data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].RelPath < artifacts[j].RelPath
	})

	e.logger.Debug("discovered artifacts", "count", len(artifacts), "dir", root)
	return artifacts, nil
}

// sniffKind reads the kind attribute of the root element without a
// full parse. Files without a declared kind are treated as workflows,
// which accepts any step count.
func sniffKind(data []byte) extract.ArtifactKind {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return extract.KindWorkflow
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "kind" {
				if k := extract.ArtifactKind(attr.Value); k.Valid() {
					return k
				}
			}
		}
		return extract.KindWorkflow
	}
}
