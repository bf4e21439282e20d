package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

// CycleError reports scripts that each need the other loaded first.
type CycleError struct {
	Cycle []project.FilePath
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, file := range e.Cycle {
		names[i] = file.String()
	}
	return "script dependency cycle: " + strings.Join(names, " -> ")
}

// errSoftCycle unwinds an attempt to pull a dependency forward that would
// need the script currently being placed.
var errSoftCycle = errors.New("soft dependency cycle")

type edge struct {
	file project.FilePath
	src  string
	kind DependencyKind
}

type frame struct {
	file project.FilePath
	soft bool
}

type orderer struct {
	ctx     context.Context
	ix      *Index
	listed  map[string]project.ScriptDescriptor
	edges   map[project.FilePath][]edge
	strong  map[project.FilePath]bool
	active  map[project.FilePath]bool
	emitted map[string]bool
	path    []frame
	out     []project.ScriptDescriptor
}

// Order returns the scripts a page loads, in load order. Local scripts are
// preceded by the scripts declaring the classes they use while loading.
// Classes needed only inside functions follow the script unless another
// script on the page needs them while loading. Remote scripts keep their
// position and dynamic scripts are left out.
func (ix *Index) Order(ctx context.Context, scripts []project.ScriptDescriptor) ([]project.ScriptDescriptor, error) {
	o := &orderer{
		ctx:     ctx,
		ix:      ix,
		listed:  make(map[string]project.ScriptDescriptor),
		edges:   make(map[project.FilePath][]edge),
		strong:  make(map[project.FilePath]bool),
		active:  make(map[project.FilePath]bool),
		emitted: make(map[string]bool),
	}

	scripts = append([]project.ScriptDescriptor(nil), scripts...)
	var roots []project.FilePath
	for i := range scripts {
		scripts[i].Src = scripts[i].Key()
		s := scripts[i]
		if _, ok := o.listed[s.Src]; !ok {
			o.listed[s.Src] = s
		}
		if s.Dynamic || project.IsRemote(s.Src) {
			continue
		}
		file, err := project.NewFilePath(s.Src)
		if err != nil {
			return nil, arborerrors.Wrap(err, arborerrors.ErrorTypeDependency, arborerrors.ErrCodeMissingScript,
				fmt.Sprintf("invalid script source %q", s.Src))
		}
		roots = append(roots, file)
	}
	if err := o.merge(roots); err != nil {
		return nil, err
	}

	for _, s := range scripts {
		if s.Dynamic {
			continue
		}
		if project.IsRemote(s.Src) {
			o.emit(s.Src)
			continue
		}
		file, _ := project.NewFilePath(s.Src)
		if err := o.visit(file, false); err != nil {
			return nil, err
		}
	}
	return o.out, nil
}

// merge walks the page closure and marks every script some script on the
// page needs while loading.
func (o *orderer) merge(roots []project.FilePath) error {
	seen := make(map[project.FilePath]bool)
	queue := append([]project.FilePath(nil), roots...)
	for _, file := range roots {
		seen[file] = true
	}
	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		edges, err := o.edgesOf(file)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.kind == ThirdParty {
				continue
			}
			if e.kind == Strong {
				o.strong[e.file] = true
			}
			if !seen[e.file] {
				seen[e.file] = true
				queue = append(queue, e.file)
			}
		}
	}
	return nil
}

func (o *orderer) edgesOf(file project.FilePath) ([]edge, error) {
	if edges, ok := o.edges[file]; ok {
		return edges, nil
	}
	analysis, err := o.ix.Analysis(file)
	if err != nil {
		return nil, err
	}

	var edges []edge
	for _, dep := range analysis.Dependencies {
		if dep.Kind == ThirdParty {
			edges = append(edges, edge{src: dep.Name, kind: ThirdParty})
			continue
		}
		target, ok := o.ix.ClassFile(dep.Name)
		if !ok {
			o.ix.logger.Debug(o.ctx, "Class not declared by any project script",
				"class", dep.Name, "script", file.String())
			continue
		}
		if target == file {
			continue
		}
		edges = append(edges, edge{file: target, kind: dep.Kind})
	}
	o.edges[file] = edges
	return edges, nil
}

func (o *orderer) visit(file project.FilePath, soft bool) error {
	if o.emitted[file.String()] {
		return nil
	}
	if o.active[file] {
		return o.cycle(file)
	}
	if err := o.ctx.Err(); err != nil {
		return err
	}

	o.active[file] = true
	o.path = append(o.path, frame{file: file, soft: soft})
	later, err := o.visitEdges(file)
	o.path = o.path[:len(o.path)-1]
	delete(o.active, file)
	if err != nil {
		return err
	}

	o.emit(file.String())
	for _, dep := range later {
		if err := o.visit(dep, false); err != nil {
			return err
		}
	}
	return nil
}

// visitEdges places the dependencies file needs first and returns the ones
// that may follow it.
func (o *orderer) visitEdges(file project.FilePath) ([]project.FilePath, error) {
	edges, err := o.edgesOf(file)
	if err != nil {
		return nil, err
	}

	var later []project.FilePath
	for _, e := range edges {
		switch {
		case e.kind == ThirdParty:
			o.emit(e.src)
		case e.kind == Strong:
			if err := o.visit(e.file, false); err != nil {
				return nil, err
			}
		case o.strong[e.file] && !o.active[e.file]:
			err := o.visit(e.file, true)
			if errors.Is(err, errSoftCycle) {
				later = append(later, e.file)
				continue
			}
			if err != nil {
				return nil, err
			}
		default:
			later = append(later, e.file)
		}
	}
	return later, nil
}

// cycle builds the error for a strong edge back to an active script. When a
// pulled forward dependency sits on the cycle the attempt is abandoned
// instead.
func (o *orderer) cycle(file project.FilePath) error {
	start := 0
	for i, f := range o.path {
		if f.file == file {
			start = i
			break
		}
	}
	for _, f := range o.path[start+1:] {
		if f.soft {
			return errSoftCycle
		}
	}

	cycle := make([]project.FilePath, 0, len(o.path)-start+1)
	for _, f := range o.path[start:] {
		cycle = append(cycle, f.file)
	}
	cycle = append(cycle, file)
	return arborerrors.NewDependencyError(arborerrors.ErrCodeScriptCycle,
		"scripts need each other while loading", &CycleError{Cycle: cycle}).
		WithFile(file.String()).
		WithContext("cycle", cycle)
}

func (o *orderer) emit(src string) {
	src = project.ScriptDescriptor{Src: src}.Key()
	if o.emitted[src] {
		return
	}
	o.emitted[src] = true
	descriptor, ok := o.listed[src]
	if !ok {
		descriptor = project.ScriptDescriptor{Src: src}
	}
	if descriptor.Dynamic {
		return
	}
	o.out = append(o.out, descriptor)
}
