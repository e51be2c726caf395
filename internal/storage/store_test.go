package storage

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/san-kum/invlab/internal/invert"
)

func sampleRun() (*invert.Result, invert.Vector, invert.Vector, invert.Vector) {
	res := &invert.Result{
		Model:      invert.Vector{2, 0.5},
		Response:   invert.Vector{2.0, 2.5, 3.0},
		Status:     invert.Converged,
		Stop:       invert.TargetReached,
		Iterations: 2,
		ChiSq:      []float64{50, 4, 0.5},
		Lambdas:    []float64{1, 0.8},
		StepNorms:  []float64{2.5, 0.1},
	}
	x := invert.Vector{0, 1, 2}
	data := invert.Vector{2.1, 2.4, 3.0}
	errs := invert.Vector{0.1, 0.1, 0.1}
	return res, x, data, errs
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, x, data, errs := sampleRun()
	meta := RunMetadata{
		Model:     "polynomial",
		Seed:      42,
		Lambda:    1.0,
		Transform: "none",
		Policy:    "cooling",
		Metrics:   map[string]float64{"chi2": 0.5, "rms": 0.05},
	}

	runID, err := st.Save(meta, res, x, data, errs)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	got, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Model != "polynomial" {
		t.Errorf("expected model 'polynomial', got '%s'", got.Model)
	}
	if got.Seed != 42 {
		t.Errorf("expected seed 42, got %d", got.Seed)
	}
	if got.Status != "converged" {
		t.Errorf("expected status converged, got %s", got.Status)
	}
	if got.Iterations != 2 || got.Parameters != 2 || got.DataPoints != 3 {
		t.Errorf("counts = %d/%d/%d, want 2/2/3", got.Iterations, got.Parameters, got.DataPoints)
	}
	if got.Metrics["chi2"] != 0.5 {
		t.Errorf("expected chi2 metric 0.5, got %f", got.Metrics["chi2"])
	}
}

func TestStoreRoundTripsModelHistoryFit(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, x, data, errs := sampleRun()
	runID, err := st.Save(RunMetadata{Model: "polynomial"}, res, x, data, errs)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	model, err := st.LoadModel(runID)
	if err != nil {
		t.Fatalf("load model failed: %v", err)
	}
	if !reflect.DeepEqual(model, res.Model) {
		t.Errorf("model = %v, want %v", model, res.Model)
	}

	hist, err := st.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history failed: %v", err)
	}
	if !reflect.DeepEqual(hist.ChiSq, res.ChiSq) {
		t.Errorf("chi2 trajectory = %v, want %v", hist.ChiSq, res.ChiSq)
	}
	if !reflect.DeepEqual(hist.Lambda, res.Lambdas) {
		t.Errorf("lambda trajectory = %v, want %v", hist.Lambda, res.Lambdas)
	}
	if !reflect.DeepEqual(hist.Step, res.StepNorms) {
		t.Errorf("step trajectory = %v, want %v", hist.Step, res.StepNorms)
	}

	fit, err := st.LoadFit(runID)
	if err != nil {
		t.Fatalf("load fit failed: %v", err)
	}
	if !reflect.DeepEqual(fit.X, []float64(x)) {
		t.Errorf("fit x = %v, want %v", fit.X, x)
	}
	for i := range fit.Residual {
		want := data[i] - res.Response[i]
		if math.Abs(fit.Residual[i]-want) > 1e-15 {
			t.Errorf("residual[%d] = %v, want %v", i, fit.Residual[i], want)
		}
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	res, x, data, errs := sampleRun()
	if _, err := st.Save(RunMetadata{Model: "polynomial"}, res, x, data, errs); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreListSkipsJunkEntries(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "not_a_run"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected junk entries skipped, got %d runs", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, x, data, errs := sampleRun()
	runID, err := st.Save(RunMetadata{Model: "polynomial"}, res, x, data, errs)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(dir, runID)
	for _, name := range []string{"metadata.json", "model.txt", "history.csv", "fit.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestStoreSavePartialRun(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// A run that failed before producing a response still persists its
	// metadata and whatever trajectory exists.
	res := &invert.Result{
		Model:  invert.Vector{1},
		Status: invert.Failed,
		Stop:   invert.StoppedOnError,
		ChiSq:  []float64{120},
	}
	runID, err := st.Save(RunMetadata{Model: "expdecay"}, res, invert.Vector{0, 1}, invert.Vector{1, 2}, invert.Vector{0.1, 0.1})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Status != "failed" {
		t.Errorf("status = %s, want failed", meta.Status)
	}

	if _, err := st.LoadFit(runID); err == nil {
		t.Error("expected missing fit table for partial run")
	}

	hist, err := st.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history failed: %v", err)
	}
	if len(hist.ChiSq) != 1 || hist.ChiSq[0] != 120 {
		t.Errorf("history chi2 = %v, want [120]", hist.ChiSq)
	}
	if len(hist.Lambda) != 0 {
		t.Errorf("lambda trajectory = %v, want empty", hist.Lambda)
	}
}

func TestExportRun(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, x, data, errs := sampleRun()
	meta := RunMetadata{
		Model:   "polynomial",
		Lambda:  1.0,
		Policy:  "cooling",
		Metrics: map[string]float64{"chi2": 0.5},
	}
	runID, err := st.Save(meta, res, x, data, errs)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	exp, err := st.ExportRun(runID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if exp.ID != runID || exp.Model != "polynomial" || exp.Policy != "cooling" {
		t.Errorf("export header = %s/%s/%s", exp.ID, exp.Model, exp.Policy)
	}
	if !reflect.DeepEqual(exp.FinalModel, []float64(res.Model)) {
		t.Errorf("export model = %v", exp.FinalModel)
	}
	if !reflect.DeepEqual(exp.ChiSq, res.ChiSq) {
		t.Errorf("export chi2 = %v", exp.ChiSq)
	}
	if !reflect.DeepEqual(exp.Response, []float64(res.Response)) {
		t.Errorf("export response = %v", exp.Response)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, exp); err != nil {
		t.Fatalf("export json failed: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Error("export file missing or empty")
	}
}
