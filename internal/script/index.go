package script

import (
	"context"
	"fmt"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
)

// Index maps declared classes to the project scripts declaring them. It is
// built once per build run and is not safe for concurrent use.
type Index struct {
	project  *project.Project
	logger   logging.Logger
	analyses map[project.FilePath]*Analysis
	failures map[project.FilePath]error
	classes  map[string]project.FilePath
}

// NewIndex analyses every project script. Scripts that fail to parse are
// remembered and only reported when a page needs them.
func NewIndex(ctx context.Context, p *project.Project, logger logging.Logger) (*Index, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ix := &Index{
		project:  p,
		logger:   logger.WithComponent("script"),
		analyses: make(map[project.FilePath]*Analysis),
		failures: make(map[project.FilePath]error),
		classes:  make(map[string]project.FilePath),
	}

	files, err := p.ScriptFiles()
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis, err := ix.analyse(file)
		if err != nil {
			ix.logger.Debug(ctx, "Script not indexed", "file", file.String(), "error", err.Error())
			continue
		}
		for _, class := range analysis.Declared {
			if prev, dup := ix.classes[class]; dup {
				ix.logger.Warn(ctx, nil, "Class declared by more than one script",
					"class", class, "kept", prev.String(), "ignored", file.String())
				continue
			}
			ix.classes[class] = file
		}
	}
	ix.logger.Debug(ctx, "Indexed project scripts", "scripts", len(files), "classes", len(ix.classes))
	return ix, nil
}

// Analysis returns the cached analysis of file, analysing it on first use.
func (ix *Index) Analysis(file project.FilePath) (*Analysis, error) {
	if analysis, ok := ix.analyses[file]; ok {
		return analysis, nil
	}
	if err, ok := ix.failures[file]; ok {
		return nil, err
	}
	if !ix.project.Exists(file) {
		return nil, arborerrors.NewDependencyError(arborerrors.ErrCodeMissingScript,
			fmt.Sprintf("script %s not found", file), nil).WithFile(file.String())
	}
	return ix.analyse(file)
}

func (ix *Index) analyse(file project.FilePath) (*Analysis, error) {
	data, err := ix.project.ReadFile(file)
	if err == nil {
		var analysis *Analysis
		if analysis, err = Analyze(file, data); err == nil {
			ix.analyses[file] = analysis
			return analysis, nil
		}
	}
	ix.failures[file] = err
	return nil, err
}

// ClassFile returns the script declaring class.
func (ix *Index) ClassFile(class string) (project.FilePath, bool) {
	file, ok := ix.classes[class]
	return file, ok
}

// Classes returns the number of indexed classes.
func (ix *Index) Classes() int {
	return len(ix.classes)
}
