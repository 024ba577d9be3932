// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/takeymahesh06/silaiwala/pkg/registry"

	cpq "github.com/takeymahesh06/silaiwala/internal/workers/pricing/calculate-price-quote"
)

// builtin lists the activities implemented in this repository.
var builtin = []func() registry.Activity{
	cpq.Activity,
}

func main() {
	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncPath := syncCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	statusPath := statusCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	statusID := statusCmd.String("id", "", "Activity ID to update")
	statusValue := statusCmd.String("value", "", "planned, in-progress, completed or verified")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "sync":
		syncCmd.Parse(os.Args[2:])
		err = syncRegistry(*syncPath, os.Stdout, time.Now())
	case "status":
		statusCmd.Parse(os.Args[2:])
		if *statusID == "" || *statusValue == "" {
			fmt.Println("Error: id and value are required for status.")
			statusCmd.Usage()
			os.Exit(1)
		}
		err = setStatus(*statusPath, *statusID, *statusValue, time.Now())
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath, os.Stdout)
	default:
		help(os.Stdout)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadOrCreate(path string) (*registry.ActivityRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if os.IsNotExist(err) {
		return &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

// syncRegistry writes every builtin activity into the registry. Manually
// set implementation status survives a sync.
func syncRegistry(path string, out io.Writer, now time.Time) error {
	reg, err := loadOrCreate(path)
	if err != nil {
		return err
	}

	changed := 0
	for _, describe := range builtin {
		a := describe()
		if existing, ok := reg.Find(a.ID); ok && existing.ImplementationStatus != "" {
			a.ImplementationStatus = existing.ImplementationStatus
		}
		if reg.Upsert(a) {
			changed++
			fmt.Fprintf(out, "synced %s\n", a.ID)
		}
	}
	if changed == 0 {
		fmt.Fprintln(out, "registry already up to date")
		return nil
	}
	return reg.Save(path, now)
}

func setStatus(path, id, status string, now time.Time) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	a, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}
	a.ImplementationStatus = status
	if errs := reg.Validate(); len(errs) > 0 {
		return errs[0]
	}
	return reg.Save(path, now)
}

func validateRegistry(path string, out io.Writer) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	errs := reg.Validate()
	for _, e := range errs {
		fmt.Fprintln(out, e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed with %d problem(s)", len(errs))
	}
	fmt.Fprintf(out, "Registry validation passed (%d activities).\n", len(reg.Activities))
	return nil
}

func help(w io.Writer) {
	fmt.Fprintln(w, `Usage: registry-updater <command> [options]

Commands:
  sync      write the activities implemented in this repository into the registry
  status    set the implementation status of one activity
  validate  check the registry for problems`)
}
