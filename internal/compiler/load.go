package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/calcsync/internal/ir"
)

// LoadMode controls how errors are handled during template loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the templates found in a directory or file.
type LoadResult struct {
	Templates []ir.TemplateSpec
	FileCount int // Number of CUE files found
}

// Template returns the loaded template with the given name.
func (r *LoadResult) Template(name string) (ir.TemplateSpec, bool) {
	for _, t := range r.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return ir.TemplateSpec{}, false
}

// LoadError represents an error that occurred during template loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes, shared by every command that reads templates.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Template shape errors
	ErrCodeCategory  = "E101" // Missing category
	ErrCodeFields    = "E102" // Missing or empty field list
	ErrCodeKind      = "E103" // Field without kind
	ErrCodeAttribute = "E104" // Unknown attribute
	ErrCodeCUE       = "E105" // CUE evaluation error
)

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "category":
		return ErrCodeCategory
	case "fields":
		return ErrCodeFields
	case "kind":
		return ErrCodeKind
	case "attribute":
		return ErrCodeAttribute
	case "cue":
		return ErrCodeCUE
	case "template":
		return ErrCodeNotFound
	default:
		return ErrCodeGeneric
	}
}

// LoadDir loads every template declared under the top-level "template"
// struct of the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("templates directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing templates directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	return result, extractTemplates(value, mode, result)
}

// LoadFile loads the templates declared in a single CUE file. The file
// need not belong to a package.
func LoadFile(path string, mode LoadMode) (*LoadResult, []error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("template file not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
	}

	value := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, []error{convertCompileError(formatCUEError(err), path)}
	}

	result := &LoadResult{FileCount: 1}
	return result, extractTemplates(value, mode, result)
}

// Load dispatches to LoadDir or LoadFile depending on what path names.
func Load(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		return LoadFile(path, mode)
	}
	return LoadDir(path, mode)
}

// extractTemplates compiles and validates each template under the
// "template" struct into result.
func extractTemplates(value cue.Value, mode LoadMode, result *LoadResult) []error {
	var errs []error

	templatesVal := value.LookupPath(cue.ParsePath("template"))
	if templatesVal.Exists() {
		iter, iterErr := templatesVal.Fields()
		if iterErr != nil {
			return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating templates: %v", iterErr)}}
		}
		for iter.Next() {
			spec, compileErr := CompileTemplate(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "template."+iter.Label()))
				if mode == LoadModeFailFast {
					return errs
				}
				continue
			}
			if verrs := Validate(spec); len(verrs) > 0 {
				for _, ve := range verrs {
					errs = append(errs, &LoadError{
						Code:    ve.Code,
						Message: fmt.Sprintf("template.%s: %s: %s", iter.Label(), ve.Field, ve.Message),
						Pos:     iter.Value().Pos(),
					})
				}
				if mode == LoadModeFailFast {
					return errs
				}
				continue
			}
			result.Templates = append(result.Templates, *spec)
		}
	}

	if len(result.Templates) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no templates found"})
	}
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
