package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0888060509/champong-admin/internal/engine"
	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
)

// readJSON returns the JSON form of a .json, .yaml or .yml file. YAML is
// converted so the rule tree codec sees a single wire format.
func readJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// LoadTree reads a rule tree file. The file holds either a bare root group
// or an object with a "conditions" key.
func LoadTree(path string) (*rules.Group, error) {
	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Conditions json.RawMessage `json:"conditions"`
		Type       string          `json:"type"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if wrapper.Type == "" && len(wrapper.Conditions) > 0 {
		data = wrapper.Conditions
	}

	tree, err := rules.ParseTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tree, nil
}

// LoadRuleSet reads a rule set definition (id, name, description,
// conditions...). A missing id means create.
func LoadRuleSet(path string) (store.UpsertParams, error) {
	var params store.UpsertParams
	data, err := readJSON(path)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if params.Conditions == nil {
		return params, fmt.Errorf("%s: conditions are required", path)
	}
	return params, nil
}

// LoadRecords reads a list of records, either a bare array or an object
// with a "records" key.
func LoadRecords(path string) ([]engine.MapRecord, error) {
	data, err := readJSON(path)
	if err != nil {
		return nil, err
	}

	var records []engine.MapRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapper struct {
		Records []engine.MapRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapper.Records, nil
}
