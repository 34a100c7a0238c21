package policy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// Validator handles policy validation.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file.
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory loads and validates all policy files in a directory.
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	policies, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	if len(policies) == 0 {
		return allErrors
	}

	for _, pwf := range policies {
		allErrors = append(allErrors, v.validateSchema(pwf.File, pwf.Policy)...)
	}

	allErrors = append(allErrors, ValidateRules(policies)...)

	return allErrors
}

// validateSchema validates a single policy against the JSON schema.
func (v *Validator) validateSchema(file string, pol *Policy) []ValidationError {
	var errors []ValidationError

	// Round-trip through YAML to get plain maps for schema validation.
	yamlBytes, err := yaml.Marshal(pol)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal policy: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors.
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// ValidateRules applies semantic validation beyond the JSON schema: unique
// ids, exactly one subject, sane target, known timezone, coherent activation
// bounds, and parseable detection overrides.
func ValidateRules(policies []PolicyWithFile) []ValidationError {
	var errors []ValidationError

	idSeen := make(map[string]string)
	for _, pwf := range policies {
		pol := pwf.Policy
		file := pwf.File

		id := pol.Metadata.ID
		if prevFile, exists := idSeen[id]; exists {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "metadata.id",
				Message: fmt.Sprintf("duplicate ID %q (also in %s)", id, filepath.Base(prevFile)),
			})
		} else {
			idSeen[id] = file
		}

		// Default policies act as a fallback for any subject and may omit
		// service and system; all other policies need exactly one.
		bothSet := pol.Metadata.Service != "" && pol.Metadata.System != ""
		noneSet := pol.Metadata.Service == "" && pol.Metadata.System == ""
		if bothSet || (noneSet && !pol.Spec.Default) {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "metadata",
				Message: "exactly one of service or system must be set",
			})
		}

		if pol.Spec.TargetPct < 0 || pol.Spec.TargetPct > 100 {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.targetPct",
				Message: fmt.Sprintf("must be in [0, 100], got %v", pol.Spec.TargetPct),
			})
		}

		if pol.Spec.Period != PeriodMonth {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.period",
				Message: fmt.Sprintf("unsupported period %q (only %s)", pol.Spec.Period, PeriodMonth),
			})
		}

		if _, ok := sla.ZoneOffset(pol.Spec.Timezone); !ok {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.timezone",
				Message: fmt.Sprintf("unknown timezone %q", pol.Spec.Timezone),
			})
		}

		errors = append(errors, validateActivation(file, pol)...)
		errors = append(errors, validateDetection(file, pol.Spec.Detection)...)
	}

	return errors
}

func validateActivation(file string, pol *Policy) []ValidationError {
	var errors []ValidationError

	from, err := time.Parse(time.RFC3339, pol.Spec.ActiveFrom)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.activeFrom",
			Message: fmt.Sprintf("invalid timestamp: %v", err),
		})
		return errors
	}

	if pol.Spec.ActiveTo == "" {
		return errors
	}

	to, err := time.Parse(time.RFC3339, pol.Spec.ActiveTo)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.activeTo",
			Message: fmt.Sprintf("invalid timestamp: %v", err),
		})
		return errors
	}

	if !to.After(from) {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.activeTo",
			Message: "must be after activeFrom",
		})
	}

	return errors
}

func validateDetection(file string, det Detection) []ValidationError {
	var errors []ValidationError

	if det.HysteresisFailures < 0 {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.detection.hysteresisFailures",
			Message: fmt.Sprintf("must be >= 0, got %d", det.HysteresisFailures),
		})
	}

	for path, value := range map[string]string{
		"spec.detection.minIncidentDuration": det.MinIncidentDuration,
		"spec.detection.mergeGap":            det.MergeGap,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseDuration(value); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    path,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	return errors
}
