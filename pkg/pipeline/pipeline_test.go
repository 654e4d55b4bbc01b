package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/gearlayout/pkg/cache"
	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

func testDocument() *document.Document {
	return &document.Document{
		Schema: document.Schema,
		Entities: []document.EntitySpec{
			{ID: 1, At: []float64{0, 0}, Radius: 10, Fixed: true},
			{ID: 2, At: []float64{50, 0}, Radius: 20},
		},
		Constraints: []document.ConstraintSpec{
			{ID: 1, Type: document.TypeDistance, Between: []int{1, 2}, Distance: 32},
		},
	}
}

func TestSampleDocumentValidates(t *testing.T) {
	if err := testDocument().Validate(); err != nil {
		t.Fatalf("testDocument does not validate: %v", err)
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"dot", false},
		{"json", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestValidateVizType(t *testing.T) {
	tests := []struct {
		vizType string
		wantErr bool
	}{
		{"plan", false},
		{"graph", false},
		{"tower", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateVizType(tt.vizType)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateVizType(%q) error = %v, wantErr %v", tt.vizType, err, tt.wantErr)
		}
	}
}

func TestSetRenderDefaults(t *testing.T) {
	var opts Options
	opts.SetRenderDefaults()

	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want [svg]", opts.Formats)
	}
	if opts.VizType != VizTypePlan {
		t.Errorf("VizType = %q, want %q", opts.VizType, VizTypePlan)
	}
	if opts.View != "xy" {
		t.Errorf("View = %q, want xy", opts.View)
	}
	if opts.Scale != DefaultScale {
		t.Errorf("Scale = %v, want %v", opts.Scale, DefaultScale)
	}
	if opts.Logger == nil {
		t.Error("Logger should be set")
	}
}

func TestOptionsValidateForRender(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"graph pdf", Options{VizType: VizTypeGraph, Formats: []string{"pdf"}}, false},
		{"bad view", Options{View: "top"}, true},
		{"bad format", Options{Formats: []string{"gif"}}, true},
		{"negative scale", Options{Scale: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateForRender()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateForRender() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsValidateForSolve(t *testing.T) {
	opts := Options{StepSize: 2}
	err := opts.ValidateForSolve()
	if err == nil {
		t.Fatal("expected error for step size above 1")
	}
	if !errs.IsInvalid(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}

	opts = Options{}
	if err := opts.ValidateForSolve(); err != nil {
		t.Fatalf("ValidateForSolve() error = %v", err)
	}
	if opts.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", opts.Concurrency, DefaultConcurrency)
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Formats: []string{"png"}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	first := opts.String()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if opts.String() != first {
		t.Errorf("options changed: %s -> %s", first, opts.String())
	}
}

func TestSolverOptions(t *testing.T) {
	opts := Options{MaxIterations: 50, Strict: true, MaxEntities: 8}
	so := opts.SolverOptions()
	if so.MaxIterations != 50 {
		t.Errorf("MaxIterations = %d, want 50", so.MaxIterations)
	}
	if so.Tolerance != 1e-6 || so.StepSize != 0.1 || so.MinDistance != 0.001 {
		t.Errorf("defaults not applied: %+v", so)
	}
	if !so.StrictReferences || so.MaxEntities != 8 {
		t.Errorf("limits not carried: %+v", so)
	}
}

func TestSolveKeyOptsIncludesDocumentSettings(t *testing.T) {
	doc := testDocument()
	var opts Options
	base := opts.SolveKeyOpts(doc)

	doc.Solver = &document.SolverSettings{MaxIterations: 7}
	withSettings := opts.SolveKeyOpts(doc)

	if base.MaxIterations == withSettings.MaxIterations {
		t.Errorf("document settings should change key opts: %+v", withSettings)
	}
	if withSettings.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want 7", withSettings.MaxIterations)
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := Options{VizType: VizTypeGraph, View: "xz", Labels: true}
	got := opts.ArtifactKeyOpts("svg")
	want := cache.ArtifactKeyOpts{Format: "svg", View: "graph:xz", Labels: true}
	if got != want {
		t.Errorf("ArtifactKeyOpts = %+v, want %+v", got, want)
	}
}

func TestRunnerSolve(t *testing.T) {
	mem, err := cache.NewMemoryCache(16)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(mem, nil, nil)
	ctx := context.Background()

	sol, hit, err := r.SolveWithCacheInfo(ctx, testDocument(), Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if hit {
		t.Error("first solve should miss the cache")
	}
	if !sol.Converged() {
		t.Fatalf("status = %s, want converged", sol.Status)
	}
	e, ok := sol.Entity(2)
	if !ok {
		t.Fatal("entity 2 missing")
	}
	if math.Abs(e.At[0]-32) > 1e-3 {
		t.Errorf("entity 2 x = %v, want 32", e.At[0])
	}

	again, hit, err := r.SolveWithCacheInfo(ctx, testDocument(), Options{})
	if err != nil {
		t.Fatalf("second Solve: %v", err)
	}
	if !hit {
		t.Error("second solve should hit the cache")
	}
	if again.Diagnostics.Iterations != sol.Diagnostics.Iterations {
		t.Errorf("cached iterations = %d, want %d", again.Diagnostics.Iterations, sol.Diagnostics.Iterations)
	}

	_, hit, err = r.SolveWithCacheInfo(ctx, testDocument(), Options{Refresh: true})
	if err != nil {
		t.Fatalf("refresh Solve: %v", err)
	}
	if hit {
		t.Error("refresh should bypass the cache")
	}
}

func TestRunnerSolveSettingsSplitCache(t *testing.T) {
	mem, _ := cache.NewMemoryCache(16)
	r := NewRunner(mem, nil, nil)
	ctx := context.Background()

	if _, err := r.Solve(ctx, testDocument(), Options{}); err != nil {
		t.Fatal(err)
	}
	sol, hit, err := r.SolveWithCacheInfo(ctx, testDocument(), Options{MaxIterations: 3})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("different settings should not share a cache entry")
	}
	if sol.Converged() || sol.Diagnostics.Iterations != 3 {
		t.Errorf("got %s after %d iterations, want not_converged after 3", sol.Status, sol.Diagnostics.Iterations)
	}
}

func TestRunnerSolveInvalidDocument(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	doc := testDocument()
	doc.Constraints[0].Distance = -1

	_, err := r.Solve(context.Background(), doc, Options{})
	if errs.GetCode(err) != errs.ErrCodeInvalidDocument {
		t.Errorf("code = %q, want %q (err=%v)", errs.GetCode(err), errs.ErrCodeInvalidDocument, err)
	}
}

func TestRunnerSolveStrict(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	doc := testDocument()
	doc.Constraints = append(doc.Constraints, document.ConstraintSpec{
		ID: 2, Type: document.TypeDistance, Between: []int{2, 9}, Distance: 5,
	})

	sol, err := r.Solve(context.Background(), doc, Options{})
	if err != nil {
		t.Fatalf("lenient Solve: %v", err)
	}
	if len(sol.Diagnostics.Skipped) != 1 || sol.Diagnostics.Skipped[0] != 2 {
		t.Errorf("Skipped = %v, want [2]", sol.Diagnostics.Skipped)
	}

	_, err = r.Solve(context.Background(), doc, Options{Strict: true})
	if errs.GetCode(err) != errs.ErrCodeDanglingReference {
		t.Errorf("code = %q, want %q", errs.GetCode(err), errs.ErrCodeDanglingReference)
	}
}

func TestRunnerExecute(t *testing.T) {
	mem, _ := cache.NewMemoryCache(16)
	r := NewRunner(mem, nil, nil)
	ctx := context.Background()
	opts := Options{Formats: []string{FormatSVG, FormatDOT, FormatJSON}, Labels: true}

	res, err := r.Execute(ctx, testDocument(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CacheInfo.SolveHit || res.CacheInfo.RenderHit {
		t.Errorf("first run should miss: %+v", res.CacheInfo)
	}
	if res.Stats.Entities != 2 || res.Stats.Constraints != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if len(res.DocumentHash) != 64 {
		t.Errorf("DocumentHash = %q", res.DocumentHash)
	}
	if !strings.Contains(string(res.Artifacts[FormatSVG]), "<svg") {
		t.Error("svg artifact missing")
	}
	if !strings.HasPrefix(string(res.Artifacts[FormatDOT]), "graph G {") {
		t.Error("dot artifact missing")
	}
	var decoded document.Solution
	if err := json.Unmarshal(res.Artifacts[FormatJSON], &decoded); err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	if decoded.Status != res.Solution.Status {
		t.Errorf("json status = %q, want %q", decoded.Status, res.Solution.Status)
	}

	res, err = r.Execute(ctx, testDocument(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !res.CacheInfo.SolveHit || !res.CacheInfo.RenderHit {
		t.Errorf("second run should hit: %+v", res.CacheInfo)
	}
}

func TestRenderCacheKeyedByDocument(t *testing.T) {
	mem, _ := cache.NewMemoryCache(16)
	r := NewRunner(mem, nil, nil)
	ctx := context.Background()
	opts := Options{Formats: []string{FormatSVG}}

	doc := testDocument()
	sol, err := r.Solve(ctx, doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, hit, err := r.RenderWithCacheInfo(ctx, &sol, doc, opts); err != nil || hit {
		t.Fatalf("first render: hit=%v err=%v", hit, err)
	}
	if _, hit, err := r.RenderWithCacheInfo(ctx, &sol, testDocument(), opts); err != nil || !hit {
		t.Fatalf("same document: hit=%v err=%v", hit, err)
	}

	// Same solution, different drawing inputs.
	other := testDocument()
	other.Entities[1].Radius = 5
	other.Constraints = append(other.Constraints, document.ConstraintSpec{
		ID: 2, Type: document.TypeDistance, Between: []int{2, 1}, Distance: 32,
	})
	if _, hit, err := r.RenderWithCacheInfo(ctx, &sol, other, opts); err != nil || hit {
		t.Errorf("different document reused artifacts: hit=%v err=%v", hit, err)
	}
}

func TestRenderSolutionGraphDOT(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	doc := testDocument()
	sol, err := r.Solve(context.Background(), doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{VizType: VizTypeGraph, Formats: []string{FormatDOT}}
	if err := opts.ValidateForRender(); err != nil {
		t.Fatal(err)
	}

	artifacts, err := RenderSolution(context.Background(), &sol, doc, opts)
	if err != nil {
		t.Fatalf("RenderSolution: %v", err)
	}
	if !strings.Contains(string(artifacts[FormatDOT]), "1 -- 2") {
		t.Errorf("dot missing edge:\n%s", artifacts[FormatDOT])
	}
}

func TestSolveFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	data, err := document.Marshal(testDocument(), document.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, data, 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.json")

	r := NewRunner(nil, nil, nil)
	results, err := r.SolveFiles(context.Background(), []string{good, bad, missing}, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("SolveFiles: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Err != nil || !results[0].Solution.Converged() {
		t.Errorf("good: err=%v status=%s", results[0].Err, results[0].Solution.Status)
	}
	if errs.GetCode(results[1].Err) != errs.ErrCodeInvalidDocument {
		t.Errorf("bad: err=%v", results[1].Err)
	}
	if errs.GetCode(results[2].Err) != errs.ErrCodeFileNotFound {
		t.Errorf("missing: err=%v", results[2].Err)
	}
	for i, want := range []string{good, bad, missing} {
		if results[i].Path != want {
			t.Errorf("results[%d].Path = %q, want %q", i, results[i].Path, want)
		}
	}
}

func TestSolveFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, nil, nil)
	_, err := r.SolveFiles(ctx, []string{"a.json"}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDescribe(t *testing.T) {
	caps := Describe(Options{MaxIterations: 42})
	if caps.Solver.MaxIterations != 42 {
		t.Errorf("MaxIterations = %d, want 42", caps.Solver.MaxIterations)
	}
	if caps.Solver.Tolerance != 1e-6 {
		t.Errorf("Tolerance = %g, want 1e-6", caps.Solver.Tolerance)
	}
	if caps.Schema != document.Schema {
		t.Errorf("Schema = %q", caps.Schema)
	}
	if len(caps.Constraints) != 2 || len(caps.ExportFormats) != len(ValidFormats) {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
}
