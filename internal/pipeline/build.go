package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/podsite/internal/config"
	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
	"github.com/dgallion1/podsite/internal/loader"
	"github.com/dgallion1/podsite/internal/parser"
	"github.com/dgallion1/podsite/internal/render"
	"github.com/dgallion1/podsite/internal/validate"
	"github.com/dgallion1/podsite/internal/xref"
)

// ErrPageConflict fails a source whose page path (its path without the
// extension) is already taken by an earlier source in path order.
var ErrPageConflict = errors.New("page conflict")

// Builder runs the load, parse, resolve and render stages over an input
// tree.
type Builder struct {
	cfg      config.Config
	log      *slog.Logger
	loader   *loader.Loader
	renderer render.Renderer
	writer   *render.Writer
}

// Result is a finished build: its report and the symbol index the pages
// were resolved against.
type Result struct {
	Report *Report
	Index  *xref.Index
}

// NewBuilder creates a builder for cfg. cfg should already be validated.
func NewBuilder(cfg config.Config, log *slog.Logger) (*Builder, error) {
	r, err := render.ForFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:      cfg,
		log:      log,
		loader:   loader.New(cfg.Input, cfg.Extensions, log),
		renderer: r,
		writer:   render.NewWriter(cfg.Output),
	}, nil
}

// Build processes every source once. Per-file failures are recorded in the
// report and never abort the build; an error is returned only when the
// input cannot be listed, the aggregate outputs cannot be written, or ctx
// is cancelled.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	paths, err := b.loader.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}
	b.log.Info("build started", "input", b.cfg.Input, "files", len(paths), "workers", b.cfg.Workers)

	files := make([]FileResult, len(paths))
	trees := make([]*doctree.Tree, len(paths))
	for i, p := range paths {
		files[i] = FileResult{Path: p, Status: StatusCancelled}
	}

	// Parse. Results are stored by index, so workers share nothing.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.cfg.Workers, 1))
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tree, err := b.parse(paths[i])
			if err != nil {
				files[i].fail(err)
				b.log.Warn("parse failed", "file", paths[i], "error", err)
				return nil
			}
			trees[i] = tree
			files[i].Title = tree.Title
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.claimPages(paths, files, trees)

	ix := xref.Build(trees)
	b.log.Debug("symbol index built", "symbols", ix.Len())

	// Resolve and render. The index is read-only from here on and each
	// worker rewrites only its own tree.
	perFile := make([][]diag.Diagnostic, len(paths))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(max(b.cfg.Workers, 1))
	for i, tree := range trees {
		if tree == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = b.renderOne(tree, ix, &files[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{StartedAt: start, Files: files}
	for _, ds := range perFile {
		report.Diagnostics = append(report.Diagnostics, ds...)
	}
	diag.Sort(report.Diagnostics)

	if err := b.writeAggregates(trees, ix); err != nil {
		return nil, err
	}
	removed, err := b.writer.Prune(b.expectedOutputs(paths), b.renderer.Ext())
	if err != nil {
		return nil, fmt.Errorf("pruning stale outputs: %w", err)
	}
	report.Removed = removed
	if len(removed) > 0 {
		b.log.Info("removed stale outputs", "count", len(removed))
	}

	report.summarize(ix.Len())
	report.Duration = time.Since(start)
	b.log.Info("build finished",
		"files", report.Summary.Files,
		"rendered", report.Summary.Rendered,
		"unchanged", report.Summary.Unchanged,
		"failed", report.Summary.Failed,
		"unresolved_links", report.Summary.UnresolvedLinks,
		"duration", report.Duration,
	)
	return &Result{Report: report, Index: ix}, nil
}

func (b *Builder) parse(path string) (*doctree.Tree, error) {
	src, err := b.loader.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := parser.ForFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(bytes.NewReader(src.Raw), path)
	if err != nil {
		return nil, err
	}
	// The loader's view of the metadata includes defaults from the path.
	tree.Meta = src.Meta
	return tree, nil
}

func (b *Builder) renderOne(tree *doctree.Tree, ix *xref.Index, res *FileResult) []diag.Diagnostic {
	log := b.log.With("file", tree.Source)

	ds := xref.Resolve(ix, tree)
	if b.cfg.ValidateExamples {
		ds = append(ds, validate.Examples(tree)...)
	}

	var buf bytes.Buffer
	if err := b.renderer.Render(&buf, tree); err != nil {
		res.fail(fmt.Errorf("rendering %s: %w", tree.Source, err))
		log.Warn("render failed", "error", err)
		return ds
	}
	out := render.OutputPath(tree.Page(), b.renderer)
	written, err := b.writer.WriteFile(out, buf.Bytes())
	if err != nil {
		res.fail(err)
		log.Warn("write failed", "error", err)
		return ds
	}
	res.Output = out
	res.Status = StatusRendered
	if !written {
		res.Status = StatusUnchanged
	}
	log.Debug("rendered", "output", out, "written", written, "diagnostics", len(ds))
	return ds
}

// claimPages fails every source whose page is already claimed by an
// earlier path, so two sources never write the same artifact. Paths are
// sorted, so the outcome does not depend on scheduling. A source that
// failed to parse still claims its page.
func (b *Builder) claimPages(paths []string, files []FileResult, trees []*doctree.Tree) {
	owner := make(map[string]string, len(paths))
	for i, p := range paths {
		page := doctree.PagePath(p)
		first, taken := owner[page]
		if !taken {
			owner[page] = p
			continue
		}
		trees[i] = nil
		if files[i].Status == StatusFailed {
			continue
		}
		files[i].fail(fmt.Errorf("%w: %s and %s both render to %s",
			ErrPageConflict, first, p, render.OutputPath(page, b.renderer)))
		b.log.Warn("page conflict", "file", p, "page", page, "owner", first)
	}
}

// expectedOutputs lists the artifacts the current sources own. Files that
// failed keep their previous output.
func (b *Builder) expectedOutputs(paths []string) map[string]bool {
	keep := map[string]bool{render.OutputPath("index", b.renderer): true}
	for _, p := range paths {
		keep[render.OutputPath(doctree.PagePath(p), b.renderer)] = true
	}
	return keep
}

// writeAggregates writes the symbol index and the site index page. The
// index page is skipped when a source already renders to it.
func (b *Builder) writeAggregates(trees []*doctree.Tree, ix *xref.Index) error {
	if _, err := b.writer.WriteSymbols(ix); err != nil {
		return fmt.Errorf("writing symbol index: %w", err)
	}

	var pages []render.Page
	for _, t := range trees {
		if t == nil {
			continue
		}
		if t.Page() == "index" {
			return nil
		}
		pages = append(pages, render.PageOf(t))
	}
	var buf bytes.Buffer
	if err := b.renderer.RenderIndex(&buf, pages); err != nil {
		return fmt.Errorf("rendering site index: %w", err)
	}
	if _, err := b.writer.WriteFile(render.OutputPath("index", b.renderer), buf.Bytes()); err != nil {
		return fmt.Errorf("writing site index: %w", err)
	}
	return nil
}
