package common

import (
	"encoding/json"
	"fmt"
	"os"
)

type ciResult struct {
	Name    string   `json:"name"`
	Passed  bool     `json:"passed"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult emits one machine-readable JSON line for pipeline parsing.
func PrintCIResult(passed bool, name string, details []string, err error) {
	result := ciResult{Name: name, Passed: passed, Details: details}
	if err != nil {
		result.Error = err.Error()
	}
	raw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "ci result marshal failed: %v\n", marshalErr)
		return
	}
	fmt.Println(string(raw))
}
