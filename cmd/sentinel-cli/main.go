package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sentinelsla/sentinel/internal/incident"
	"github.com/sentinelsla/sentinel/internal/policy"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateDir := validateCmd.String("dir", "", "directory containing SLA policy YAML files")

	replayCmd := flag.NewFlagSet("replay", flag.ExitOnError)
	replayFixture := replayCmd.String("fixture", "", "JSON sample fixture file to replay")
	replayHysteresis := replayCmd.Int("hysteresis", 3, "consecutive down samples before an incident opens")
	replayMinDuration := replayCmd.Duration("min-duration", 30*time.Second, "minimum incident duration")
	replayMergeGap := replayCmd.Duration("merge-gap", 60*time.Second, "merge incidents separated by less than this")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *validateDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*validateDir))
	case "replay":
		replayCmd.Parse(os.Args[2:])
		if *replayFixture == "" {
			fmt.Fprintln(os.Stderr, "Error: --fixture flag is required")
			replayCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runReplay(*replayFixture, incident.Config{
			HysteresisFailures:  *replayHysteresis,
			MinIncidentDuration: *replayMinDuration,
			MergeGap:            *replayMergeGap,
		}))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: sentinel <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate --dir <path>        Validate SLA policy YAML files in a directory")
	fmt.Println("  replay --fixture <path>      Run incident detection over a sample fixture file")
	fmt.Println()
}

func runValidate(dirPath string) int {
	schemaPath := findSchemaFile()
	if schemaPath == "" {
		fmt.Fprintln(os.Stderr, "Error: could not find schemas/policy_v1.json")
		return 1
	}

	validator, err := policy.NewValidator(schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	errors := validator.ValidateDirectory(dirPath)

	if len(errors) == 0 {
		fmt.Println("✓ All policy files are valid")
		return 0
	}

	// Group errors by file
	errorsByFile := make(map[string][]policy.ValidationError)
	for _, err := range errors {
		errorsByFile[err.File] = append(errorsByFile[err.File], err)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(os.Stderr, "✗ Validation failed with %d error(s):\n\n", len(errors))
	for _, file := range files {
		for _, err := range errorsByFile[file] {
			if err.Path != "" {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", filepath.Base(err.File), err.Path, err.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(err.File), err.Message)
			}
		}
	}

	return 1
}

func runReplay(fixturePath string, cfg incident.Config) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid detection config: %v\n", err)
		return 1
	}

	serviceID, samples, err := incident.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	builder := incident.NewBuilder(cfg, nil)
	spans, skipped := builder.Detect(samples, time.Now())

	fmt.Printf("Service %s: %d samples, %d skipped, %d incidents\n",
		serviceID, len(samples), skipped, len(spans))
	for _, span := range spans {
		fmt.Printf("  %s -> %s (%s)\n",
			span.Start.Format(time.RFC3339),
			span.End.Format(time.RFC3339),
			span.Duration())
	}

	return 0
}

// findSchemaFile looks for the schema file in common locations.
func findSchemaFile() string {
	candidates := []string{
		"schemas/policy_v1.json",
		"../schemas/policy_v1.json",
		"../../schemas/policy_v1.json",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
