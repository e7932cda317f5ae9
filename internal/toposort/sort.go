package toposort

import (
	"github.com/conduit-lang/apiextractor/internal/metalang"
)

// Result is the outcome of Sort.
type Result struct {
	Classes []*metalang.Class
	// Broken lists the edges ignored to break cycles.
	Broken []Edge
}

// Sort orders classes so each one follows its base classes, the classes it
// uses as field, argument or return types, and the extra dependencies
// (qualified name -> qualified names it depends on). Input order is the
// declaration order used for ties and cycle breaking, so equal input gives
// equal output.
func Sort(classes []*metalang.Class, extraDependencies map[string][]string) Result {
	dg := BuildGraph(classes, extraDependencies)
	order, broken := dg.TopologicalOrder()

	byName := make(map[string]*metalang.Class, len(classes))
	for _, c := range classes {
		byName[c.QualifiedName] = c
	}
	sorted := make([]*metalang.Class, 0, len(classes))
	for _, name := range order {
		if c, ok := byName[name]; ok {
			sorted = append(sorted, c)
		}
	}
	return Result{Classes: sorted, Broken: broken}
}

// BuildGraph creates the dependency graph of classes. Dependencies on types
// outside the list are ignored.
func BuildGraph(classes []*metalang.Class, extraDependencies map[string][]string) *DependencyGraph {
	dg := NewDependencyGraph()
	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		dg.AddNode(c.QualifiedName)
		known[c.QualifiedName] = true
	}

	for _, c := range classes {
		from := c.QualifiedName
		for _, base := range c.BaseClasses() {
			if known[base.QualifiedName] {
				dg.AddDependency(from, base.QualifiedName, Hard)
			}
		}
		if c.TemplateBase != nil && known[c.TemplateBase.QualifiedName] {
			dg.AddDependency(from, c.TemplateBase.QualifiedName, Hard)
		}
		for _, dep := range extraDependencies[from] {
			if known[dep] {
				dg.AddDependency(from, dep, Hard)
			}
		}

		soft := func(t *metalang.Type) {
			for _, name := range referencedNames(t) {
				if known[name] {
					dg.AddDependency(from, name, Soft)
				}
			}
		}
		for _, f := range c.Fields {
			soft(f.Type)
		}
		for _, f := range c.Functions {
			if f.Removed {
				continue
			}
			soft(f.ReturnType)
			for _, a := range f.Arguments {
				soft(a.Type)
			}
		}
	}
	return dg
}

// referencedNames lists the entry names a type mentions, including template
// arguments and array elements.
func referencedNames(t *metalang.Type) []string {
	if t == nil {
		return nil
	}
	if t.ArrayElement != nil {
		return referencedNames(t.ArrayElement)
	}
	var out []string
	if t.Entry != nil {
		out = append(out, t.Entry.QualifiedName())
	}
	for _, inst := range t.Instantiations {
		out = append(out, referencedNames(inst)...)
	}
	return out
}
