package engine

// run.go - Migration run orchestration.

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqlmorph/sqlmorph/internal/dag"
	"github.com/sqlmorph/sqlmorph/internal/extract"
	"github.com/sqlmorph/sqlmorph/internal/registry"
	"github.com/sqlmorph/sqlmorph/pkg/translate"
)

// SourceUnit pairs a discovered artifact with its extracted unit.
type SourceUnit struct {
	Artifact *Artifact
	Unit     *extract.ParsedUnit
}

// UnitReport is the per-unit outcome of a migration run.
type UnitReport struct {
	Unit       string               `json:"unit"`
	Source     string               `json:"source"`
	Action     string               `json:"action"` // produced, reused, skipped, failed
	Reason     string               `json:"reason,omitempty"`
	Model      string               `json:"model,omitempty"`
	Confidence translate.Confidence `json:"confidence,omitempty"`
	Notes      int                  `json:"notes,omitempty"`
}

// RunReport summarizes one migration run.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Plan     *dag.Plan    `json:"plan,omitempty"`
	Units    []UnitReport `json:"units"`
	Produced int          `json:"produced"`
	Reused   int          `json:"reused"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
}

// Extract discovers and parses every source artifact in parallel.
// Extraction failures do not abort the whole batch; failed artifacts
// are reported as skips with the extraction reason.
func (e *Engine) Extract(ctx context.Context) ([]*SourceUnit, []UnitReport, error) {
	artifacts, err := e.Discover()
	if err != nil {
		return nil, nil, err
	}

	parsed := make([]*extract.ParsedUnit, len(artifacts))
	extractErrs := make([]error, len(artifacts))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, art := range artifacts {
		g.Go(func() error {
			unit, err := extract.Extract(art.Data, art.Kind)
			if err != nil {
				extractErrs[i] = err
				return nil
			}
			parsed[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var units []*SourceUnit
	var skips []UnitReport
	seen := make(map[string]string)
	for i, art := range artifacts {
		if extractErrs[i] != nil {
			e.logger.Info("skipping artifact", "source", art.RelPath, "error", extractErrs[i])
			skips = append(skips, UnitReport{
				Source: art.RelPath,
				Action: "skipped",
				Reason: extractErrs[i].Error(),
			})
			continue
		}
		unit := parsed[i]
		if prior, dup := seen[unit.Name]; dup {
			e.logger.Info("skipping duplicate unit", "unit", unit.Name, "source", art.RelPath, "first_seen", prior)
			skips = append(skips, UnitReport{
				Unit:   unit.Name,
				Source: art.RelPath,
				Action: "skipped",
				Reason: fmt.Sprintf("duplicate unit name, first defined in %s", prior),
			})
			continue
		}
		seen[unit.Name] = art.RelPath
		units = append(units, &SourceUnit{Artifact: art, Unit: unit})
	}

	e.logger.Debug("extraction complete", "units", len(units), "skipped", len(skips))
	return units, skips, nil
}

// Plan extracts all artifacts and builds the execution plan.
func (e *Engine) Plan(ctx context.Context) (*dag.Plan, error) {
	units, _, err := e.Extract(ctx)
	if err != nil {
		return nil, err
	}
	parsed := make([]*extract.ParsedUnit, len(units))
	for i, su := range units {
		parsed[i] = su.Unit
	}
	return dag.Build(parsed)
}

// Migrate runs the full pipeline: extract, plan, then translate and
// write models group by group. Units within a group run in parallel;
// groups run in plan order so producers finish before consumers start.
func (e *Engine) Migrate(ctx context.Context) (*RunReport, error) {
	run, err := e.registry.StartRun()
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	e.logger.Info("starting migration run", "run_id", run.ID)

	report := &RunReport{RunID: run.ID}

	units, skips, err := e.Extract(ctx)
	if err != nil {
		e.finishFailed(run, report, err)
		return report, err
	}
	report.Units = append(report.Units, skips...)
	report.Skipped = len(skips)

	parsed := make([]*extract.ParsedUnit, len(units))
	byName := make(map[string]*SourceUnit, len(units))
	for i, su := range units {
		parsed[i] = su.Unit
		byName[su.Unit.Name] = su
	}

	// A cycle is fatal: no partial plan, nothing is written.
	plan, err := dag.Build(parsed)
	if err != nil {
		e.finishFailed(run, report, err)
		return report, err
	}
	report.Plan = plan

	var mu sync.Mutex
	record := func(r UnitReport) {
		mu.Lock()
		defer mu.Unlock()
		report.Units = append(report.Units, r)
		switch r.Action {
		case "produced":
			report.Produced++
		case "reused":
			report.Reused++
		case "failed":
			report.Failed++
		}
	}

	for _, group := range plan.Groups {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers())
		for _, id := range group {
			su := byName[id]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := e.processUnit(su)
				record(r)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			e.finishFailed(run, report, err)
			return report, err
		}
	}

	run.Produced = report.Produced
	run.Reused = report.Reused
	run.Skipped = report.Skipped
	if err := e.registry.FinishRun(run); err != nil {
		return report, fmt.Errorf("failed to record run: %w", err)
	}

	e.logger.Info("migration run completed", "run_id", run.ID,
		"produced", report.Produced, "reused", report.Reused, "skipped", report.Skipped)
	return report, nil
}

// processUnit consults the registry and either reuses a prior output
// or translates the unit and writes a fresh model file.
func (e *Engine) processUnit(su *SourceUnit) (UnitReport, error) {
	r := UnitReport{Unit: su.Unit.Name, Source: su.Artifact.RelPath}

	dec, err := e.registry.CheckAndReserve(su.Artifact.Hash, su.Artifact.RelPath, su.Unit.Name)
	if err != nil {
		r.Action = "failed"
		r.Reason = err.Error()
		return r, fmt.Errorf("reservation for %s: %w", su.Unit.Name, err)
	}

	if dec.Action == registry.ActionReuse {
		e.logger.Debug("reusing prior output", "unit", su.Unit.Name, "model", dec.Prior.OutputID)
		r.Action = "reused"
		r.Model = dec.Prior.OutputID
		return r, nil
	}

	tu := &translatedUnit{artifact: su.Artifact, unit: su.Unit}
	notes := 0
	for _, step := range su.Unit.Steps {
		if step.SQL == "" {
			continue
		}
		res := e.translator.Translate(step.SQL)
		notes += len(res.Notes)
		tu.steps = append(tu.steps, res)
	}

	path, outputHash, err := e.writeModel(tu)
	if err != nil {
		_ = e.registry.Abort(su.Artifact.Hash)
		r.Action = "failed"
		r.Reason = err.Error()
		return r, err
	}

	if err := e.registry.Commit(su.Artifact.Hash, path, outputHash); err != nil {
		r.Action = "failed"
		r.Reason = err.Error()
		return r, fmt.Errorf("commit for %s: %w", su.Unit.Name, err)
	}

	e.logger.Debug("produced model", "unit", su.Unit.Name, "model", path, "confidence", tu.confidence())
	r.Action = "produced"
	r.Model = path
	r.Confidence = tu.confidence()
	r.Notes = notes
	return r, nil
}

func (e *Engine) finishFailed(run *registry.Run, report *RunReport, cause error) {
	run.Status = registry.RunStatusFailed
	run.Error = cause.Error()
	run.Produced = report.Produced
	run.Reused = report.Reused
	run.Skipped = report.Skipped
	if err := e.registry.FinishRun(run); err != nil {
		e.logger.Error("failed to record failed run", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return 1
}
