package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquisition-cli/internal/model"
)

// WriteResults writes the scan document to path atomically: a temp file in
// the same directory is renamed into place, so readers never observe a
// partially written document.
func WriteResults(path string, result *model.ScanResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal results")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "pipeline: create temp results file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "pipeline: write results")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "pipeline: close results")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "pipeline: replace results file")
	}
	return nil
}

// ReadResults loads a previously emitted scan document.
func ReadResults(path string) (*model.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read results %s", path)
	}

	var result model.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse results %s", path)
	}
	return &result, nil
}
