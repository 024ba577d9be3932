// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry with activities sorted by ID and stamps
// LastUpdated.
func (r *ActivityRegistry) Save(path string, now time.Time) error {
	sort.Slice(r.Activities, func(i, j int) bool { return r.Activities[i].ID < r.Activities[j].ID })
	r.LastUpdated = now.UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *ActivityRegistry) Find(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Upsert replaces the activity with the same ID or appends it. It reports
// whether anything changed.
func (r *ActivityRegistry) Upsert(a Activity) bool {
	if existing, ok := r.Find(a.ID); ok {
		before, _ := json.Marshal(existing)
		after, _ := json.Marshal(a)
		if string(before) == string(after) {
			return false
		}
		*existing = a
		return true
	}
	r.Activities = append(r.Activities, a)
	return true
}

// Validate returns every problem found, not just the first.
func (r *ActivityRegistry) Validate() []error {
	var errs []error
	seen := make(map[string]bool)
	for i, a := range r.Activities {
		where := fmt.Sprintf("activities[%d]", i)
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seen[a.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, a.ID))
		}
		seen[a.ID] = true

		if a.TaskType == "" {
			errs = append(errs, fmt.Errorf("%s: taskType is required", where))
		}
		if !statuses[a.ImplementationStatus] {
			errs = append(errs, fmt.Errorf("%s: unknown implementationStatus %q", where, a.ImplementationStatus))
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("%s: timeout %q: %v", where, a.Timeout, err))
			}
		}
		for _, s := range []struct {
			name string
			raw  json.RawMessage
		}{{"inputSchema", a.InputSchema}, {"outputSchema", a.OutputSchema}} {
			if len(s.raw) > 0 && !json.Valid(s.raw) {
				errs = append(errs, fmt.Errorf("%s: %s is not valid JSON", where, s.name))
			}
		}
	}
	return errs
}
