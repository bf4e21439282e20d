package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String lists every issue with its suggestions.
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}
	write("errors", vr.Errors)
	write("warnings", vr.Warnings)

	return builder.String()
}

// ValidateConfigWithDetails reports every problem of config, errors and
// warnings alike.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateProjectConfigDetails(&config.Project, result)
	validateBuildConfigDetails(config, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

// validateConfig returns the first error found as a config error.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid, "invalid configuration: "+first.Error()).
		WithContext("field", first.Field).
		WithContext("value", first.Value)
}

func validateProjectConfigDetails(config *ProjectConfig, result *ValidationResult) {
	if err := validation.ValidatePath(config.Dir); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "project.dir",
			Value:   config.Dir,
			Message: err.Error(),
			Suggestions: []string{
				"Point project.dir at the directory holding project.yml",
			},
		})
		return
	}

	if !pathExists(config.Dir) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "project.dir",
			Value:   config.Dir,
			Message: "directory does not exist",
			Suggestions: []string{
				"Create the directory or pass the project path as argument",
			},
		})
	}
}

func validateBuildConfigDetails(config *Config, result *ValidationResult) {
	build := &config.Build
	if err := validation.ValidatePath(build.Output); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "build.output",
			Value:       build.Output,
			Message:     err.Error(),
			Suggestions: []string{"Use a directory like 'build' or 'dist'"},
		})
	} else if !filepath.IsAbs(build.Output) {
		if err := validation.ValidateContained(build.Output); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "build.output",
				Value:   build.Output,
				Message: err.Error(),
				Suggestions: []string{
					"Relative outputs live inside the project directory",
					"Use an absolute path to build elsewhere",
				},
			})
		} else if validation.Inside(build.Output, ".") {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "build.output",
				Value:       build.Output,
				Message:     "output would overwrite the project sources",
				Suggestions: []string{"Use a sub directory like 'build'"},
			})
		}
	} else if dir, err := filepath.Abs(config.Project.Dir); err == nil && validation.Inside(build.Output, dir) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "build.output",
			Value:       build.Output,
			Message:     "output contains the project directory",
			Suggestions: []string{"Build into a directory next to or below the project"},
		})
	}

	if build.Number < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "build.number",
			Value:   build.Number,
			Message: fmt.Sprintf("build number %d is negative", build.Number),
			Suggestions: []string{
				"Use 0 to keep the original file names",
				"Use a positive number to insert it before each extension",
			},
		})
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "watch.debounce",
			Value:       config.Debounce,
			Message:     "debounce cannot be negative",
			Suggestions: []string{"Use a duration like '300ms'"},
		})
	} else if config.Debounce == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "watch.debounce",
			Value:       config.Debounce,
			Message:     "every file event triggers a rebuild",
			Suggestions: []string{"Editors save in bursts; '300ms' coalesces them"},
		})
	}

	for _, pattern := range config.Ignore {
		if err := validation.ValidatePattern(pattern); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "watch.ignore",
				Value:       pattern,
				Message:     err.Error(),
				Suggestions: []string{"Patterns use doublestar syntax, e.g. '**/.git/**'"},
			})
		}
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Available levels: debug, info, warn, error"},
		})
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.format",
			Value:       config.Format,
			Message:     fmt.Sprintf("unknown log format '%s'", config.Format),
			Suggestions: []string{"Available formats: " + strings.Join(validFormats, ", ")},
		})
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
