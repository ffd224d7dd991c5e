package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that failed to load, run, or pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns every .yaml or .yml file under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunDir loads and runs every scenario under dir.
// A scenario that fails to load or run counts as a failure; it does not
// stop the suite.
func RunDir(ctx context.Context, dir string) (*SuiteResult, error) {
	files, err := FindScenarios(dir)
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	suite := &SuiteResult{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++

		scenario, result, err := RunFile(ctx, path)
		if err != nil {
			name := filepath.Base(path)
			if scenario != nil {
				name = scenario.Name
			}
			suite.fail(name, path, []string{err.Error()})
			continue
		}
		if !result.Pass {
			suite.fail(scenario.Name, path, result.Errors)
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

// RunFile loads and runs one scenario file. The scenario is returned
// whenever it loaded, even if running it failed.
func RunFile(ctx context.Context, path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := RunContext(ctx, scenario)
	if err != nil {
		return scenario, nil, err
	}
	return scenario, result, nil
}

func (s *SuiteResult) fail(name, path string, errs []string) {
	s.Failed++
	s.Failures = append(s.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
}
