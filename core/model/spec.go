package model

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// FormatVersion is the envelope version written by ExportModel.
const FormatVersion = "1.0"

// ModelSpec is the metadata block of an exported model.
type ModelSpec struct {
	Name          string `json:"name"`           // model name, e.g. "DecisionTreeClassifier"
	FormatVersion string `json:"format_version"` // envelope version
}

// Envelope is a JSON document carrying one exported model.
type Envelope struct {
	ModelSpec ModelSpec       `json:"model_spec"`
	Params    json.RawMessage `json:"params"`
}

// ExportModel writes params wrapped in a versioned envelope to w.
func ExportModel(modelName string, params interface{}, w io.Writer) error {
	env := Envelope{
		ModelSpec: ModelSpec{
			Name:          modelName,
			FormatVersion: FormatVersion,
		},
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	env.Params = paramsJSON

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&env); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	return nil
}

// ImportModel reads an envelope from r, checks that it holds modelName, and
// unmarshals its params into params.
func ImportModel(modelName string, r io.Reader, params interface{}) error {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	if env.ModelSpec.FormatVersion == "" {
		return errors.NewValueError("ImportModel", "format_version is required")
	}
	if env.ModelSpec.FormatVersion != FormatVersion {
		return errors.NewValueError("ImportModel",
			fmt.Sprintf("unsupported format version: %s", env.ModelSpec.FormatVersion))
	}
	if env.ModelSpec.Name != modelName {
		return errors.NewValueError("ImportModel",
			fmt.Sprintf("expected %s, got %s", modelName, env.ModelSpec.Name))
	}

	if err := json.Unmarshal(env.Params, params); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}
