// pkg/registry/schema.go
package registry

import "encoding/json"

// ActivityRegistry is the catalogue of service tasks the BPMN modeler can
// offer, one Activity per Zeebe job type this repository implements.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string          `json:"id"`
	DisplayName          string          `json:"displayName"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Version              string          `json:"version"`
	TaskType             string          `json:"taskType"`
	ImplementationStatus string          `json:"implementationStatus"`
	InputSchema          json.RawMessage `json:"inputSchema"`
	OutputSchema         json.RawMessage `json:"outputSchema"`
	ErrorCodes           []string        `json:"errorCodes"`
	Timeout              string          `json:"timeout"`
	Retries              int             `json:"retries"`
	Tags                 []string        `json:"tags,omitempty"`
}

// Implementation states, in order of maturity.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusVerified   = "verified"
)

var statuses = map[string]bool{
	StatusPlanned:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusVerified:   true,
}
