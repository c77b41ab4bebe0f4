package engine

// writer.go - Warehouse model file rendering.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sqlmorph/sqlmorph/internal/extract"
	"github.com/sqlmorph/sqlmorph/pkg/translate"
)

// modelFrontmatter is the YAML block emitted at the top of each
// generated model file.
type modelFrontmatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Materialized string   `yaml:"materialized"`
	Tags         []string `yaml:"tags,omitempty"`
	Vars         []string `yaml:"vars,omitempty"`
	Sources      []string `yaml:"sources,omitempty"`
}

// translatedUnit pairs a parsed unit with the per-step translation
// results, ready to render.
type translatedUnit struct {
	artifact *Artifact
	unit     *extract.ParsedUnit
	steps    []translate.Result
}

// confidence returns the lowest confidence across all translated
// steps; a unit is only as trustworthy as its weakest statement.
func (tu *translatedUnit) confidence() translate.Confidence {
	c := translate.ConfidenceHigh
	for _, r := range tu.steps {
		switch r.Confidence {
		case translate.ConfidenceLow:
			return translate.ConfidenceLow
		case translate.ConfidenceMedium:
			c = translate.ConfidenceMedium
		}
	}
	return c
}

// renderModel produces the full text of a model file: frontmatter,
// then each step's translated SQL with a step separator comment.
// With preserve enabled the original legacy SQL is kept alongside the
// translation in a comment block.
func renderModel(tu *translatedUnit, preserve bool) (string, error) {
	fm := modelFrontmatter{
		Name:         tu.unit.Name,
		Description:  fmt.Sprintf("migrated from %s", tu.artifact.RelPath),
		Materialized: materializationFor(tu.unit),
		Tags:         []string{"unit:" + tu.unit.Name},
		Vars:         tu.unit.Variables,
		Sources:      tu.unit.Reads(),
	}

	meta, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("/*---\n")
	b.Write(meta)
	b.WriteString("---*/\n")

	sqlIdx := 0
	for _, step := range tu.unit.Steps {
		b.WriteString("\n")
		fmt.Fprintf(&b, "-- step: %s (%s)\n", step.Name, step.Kind)
		if step.Truncate {
			b.WriteString("-- target is truncated before this step writes\n")
		}
		if step.SQL == "" {
			continue
		}

		res := tu.steps[sqlIdx]
		sqlIdx++

		// Info notes need no review and stay out of the output.
		for _, n := range res.Notes {
			if n.Level == translate.NoteInfo {
				continue
			}
			fmt.Fprintf(&b, "-- %s[%s]: %s\n", n.Rule, n.Level, n.Message)
		}
		if preserve {
			b.WriteString("/* legacy\n")
			b.WriteString(strings.ReplaceAll(step.SQL, "*/", "* /"))
			b.WriteString("\n*/\n")
		}
		b.WriteString(res.SQL)
		if !strings.HasSuffix(strings.TrimSpace(res.SQL), ";") {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// materializationFor picks a materialization hint. Units with a
// truncate-and-reload step must be full tables; everything else
// defaults to view.
func materializationFor(unit *extract.ParsedUnit) string {
	for _, s := range unit.Steps {
		if s.Truncate {
			return "table"
		}
	}
	return "view"
}

// writeModel renders the unit and writes it under the models
// directory. It returns the model path and the sha256 of the written
// content.
func (e *Engine) writeModel(tu *translatedUnit) (string, string, error) {
	content, err := renderModel(tu, e.cfg.Preserve)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(e.cfg.ModelsDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create models directory: %w", err)
	}

	path := filepath.Join(e.cfg.ModelsDir, tu.unit.Name+".sql")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write model %s: %w", path, err)
	}

	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:]), nil
}
