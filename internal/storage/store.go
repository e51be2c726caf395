package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/invlab/internal/dataio"
	"github.com/san-kum/invlab/internal/invert"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Lambda     float64            `json:"lambda"`
	Transform  string             `json:"transform"`
	Policy     string             `json:"policy"`
	Status     string             `json:"status"`
	Stop       string             `json:"stop"`
	Iterations int                `json:"iterations"`
	Parameters int                `json:"parameters"`
	DataPoints int                `json:"data_points"`
	Metrics    map[string]float64 `json:"metrics"`
}

// History is the per-iteration trajectory of a stored run. ChiSq carries
// the start model's misfit first; Lambda and Step pair with the accepted
// steps, so both run one shorter than ChiSq.
type History struct {
	ChiSq  []float64
	Lambda []float64
	Step   []float64
}

// FitTable is the stored final fit: observations and the winning
// response side by side.
type FitTable struct {
	X        []float64
	Data     []float64
	Err      []float64
	Response []float64
	Residual []float64
}

// Save writes one run directory: metadata.json, model.txt, history.csv
// and fit.csv. The caller fills the descriptive metadata fields; ID,
// timestamp and the result-derived fields are set here. It returns the
// generated run ID.
func (s *Store) Save(meta RunMetadata, res *invert.Result, x, data, errs invert.Vector) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Model, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Status = res.Status.String()
	meta.Stop = res.Stop.String()
	meta.Iterations = res.Iterations
	meta.Parameters = len(res.Model)
	meta.DataPoints = len(data)

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if len(res.Model) > 0 {
		if err := dataio.SaveVector(filepath.Join(runDir, "model.txt"), res.Model); err != nil {
			return "", err
		}
	}

	if len(res.ChiSq) > 0 {
		iters := make([]float64, len(res.ChiSq))
		lambdas := make([]float64, len(res.ChiSq))
		steps := make([]float64, len(res.ChiSq))
		for i := range res.ChiSq {
			iters[i] = float64(i)
			if i > 0 && i-1 < len(res.Lambdas) {
				lambdas[i] = res.Lambdas[i-1]
			}
			if i > 0 && i-1 < len(res.StepNorms) {
				steps[i] = res.StepNorms[i-1]
			}
		}
		err := dataio.SaveTable(filepath.Join(runDir, "history.csv"),
			[]string{"iter", "chi2", "lambda", "step"},
			iters, res.ChiSq, lambdas, steps)
		if err != nil {
			return "", err
		}
	}

	if len(x) == len(data) && len(res.Response) == len(data) && len(errs) == len(data) {
		residual := make([]float64, len(data))
		for i := range data {
			residual[i] = data[i] - res.Response[i]
		}
		err := dataio.SaveTable(filepath.Join(runDir, "fit.csv"),
			[]string{"x", "data", "error", "response", "residual"},
			x, data, errs, res.Response, residual)
		if err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadModel(runID string) (invert.Vector, error) {
	v, err := dataio.LoadVector(filepath.Join(s.baseDir, runID, "model.txt"))
	if err != nil {
		return nil, err
	}
	return invert.Vector(v), nil
}

func (s *Store) LoadHistory(runID string) (*History, error) {
	cols, err := dataio.LoadTable(filepath.Join(s.baseDir, runID, "history.csv"))
	if err != nil {
		return nil, err
	}
	if len(cols) != 4 {
		return nil, fmt.Errorf("history for %s has %d columns, want 4", runID, len(cols))
	}
	h := &History{ChiSq: cols[1]}
	// Drop the placeholder start-row entries so Lambda/Step pair with
	// accepted steps only.
	if len(cols[2]) > 0 {
		h.Lambda = cols[2][1:]
		h.Step = cols[3][1:]
	}
	return h, nil
}

func (s *Store) LoadFit(runID string) (*FitTable, error) {
	cols, err := dataio.LoadTable(filepath.Join(s.baseDir, runID, "fit.csv"))
	if err != nil {
		return nil, err
	}
	if len(cols) != 5 {
		return nil, fmt.Errorf("fit table for %s has %d columns, want 5", runID, len(cols))
	}
	return &FitTable{
		X:        cols[0],
		Data:     cols[1],
		Err:      cols[2],
		Response: cols[3],
		Residual: cols[4],
	}, nil
}
