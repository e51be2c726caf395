package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Transform  string             `json:"transform"`
	Policy     string             `json:"policy"`
	Lambda     float64            `json:"lambda"`
	Status     string             `json:"status"`
	Stop       string             `json:"stop"`
	Iterations int                `json:"iterations"`
	FinalModel []float64          `json:"final_model"`
	ChiSq      []float64          `json:"chi2"`
	Lambdas    []float64          `json:"lambdas"`
	Steps      []float64          `json:"steps"`
	X          []float64          `json:"x"`
	Data       []float64          `json:"data"`
	Errors     []float64          `json:"errors"`
	Response   []float64          `json:"response"`
	Metrics    map[string]float64 `json:"metrics"`
}

// ExportRun assembles the full JSON view of a stored run from its
// metadata and files. Missing model or fit files leave the matching
// fields empty rather than failing, so partial runs still export.
func (s *Store) ExportRun(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	data := &ExportData{
		ID:         meta.ID,
		Model:      meta.Model,
		Transform:  meta.Transform,
		Policy:     meta.Policy,
		Lambda:     meta.Lambda,
		Status:     meta.Status,
		Stop:       meta.Stop,
		Iterations: meta.Iterations,
		Metrics:    meta.Metrics,
	}

	if m, err := s.LoadModel(runID); err == nil {
		data.FinalModel = m
	}
	if h, err := s.LoadHistory(runID); err == nil {
		data.ChiSq = h.ChiSq
		data.Lambdas = h.Lambda
		data.Steps = h.Step
	}
	if fit, err := s.LoadFit(runID); err == nil {
		data.X = fit.X
		data.Data = fit.Data
		data.Errors = fit.Err
		data.Response = fit.Response
	}

	return data, nil
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeJSON(file, data)
}

func ExportJSONStdout(data *ExportData) error {
	return writeJSON(os.Stdout, data)
}

func writeJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
