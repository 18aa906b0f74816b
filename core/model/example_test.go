package model_test

import (
	"bytes"
	"fmt"

	"github.com/madlib/archived-madlib-sub001/core/model"
)

// ExampleStateManager demonstrates state management
func ExampleStateManager() {
	state := model.NewStateManager()

	fmt.Printf("Initially fitted: %t\n", state.IsFitted())

	state.SetFitted()
	state.SetDimensions(4, 100)
	nFeatures, nSamples := state.Dimensions()
	fmt.Printf("After SetFitted: %t (%d features, %d samples)\n", state.IsFitted(), nFeatures, nSamples)

	state.Reset()
	fmt.Printf("After Reset: %t\n", state.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true (4 features, 100 samples)
	// After Reset: false
}

// ExampleExportModel shows the JSON envelope round trip.
func ExampleExportModel() {
	type params struct {
		MaxDepth int `json:"max_depth"`
	}

	var buf bytes.Buffer
	if err := model.ExportModel("DecisionTreeRegressor", params{MaxDepth: 5}, &buf); err != nil {
		fmt.Println(err)
		return
	}

	var loaded params
	if err := model.ImportModel("DecisionTreeRegressor", &buf, &loaded); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(loaded.MaxDepth)

	// Output: 5
}
