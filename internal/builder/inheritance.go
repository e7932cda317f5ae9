package builder

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// linkInheritance sets the primary base and interfaces of every class. The
// primary base is the first polymorphic base, or the first declared one;
// the other bases become interfaces.
func (r *run) linkInheritance() {
	memo := make(map[*metalang.Class]bool)
	visiting := make(map[*metalang.Class]bool)
	var polymorphic func(c *metalang.Class) bool
	polymorphic = func(c *metalang.Class) bool {
		if done, ok := memo[c]; ok {
			return done
		}
		if visiting[c] {
			return c.Polymorphic
		}
		visiting[c] = true
		result := c.Polymorphic
		for _, b := range r.bases[c] {
			if polymorphic(b) {
				result = true
			}
		}
		memo[c] = result
		return result
	}

	for _, c := range r.order {
		bases := r.bases[c]
		if len(bases) == 0 {
			continue
		}
		primary := 0
		for i, b := range bases {
			if polymorphic(b) {
				primary = i
				break
			}
		}
		c.BaseClass = bases[primary]
		c.Interfaces = nil
		for i, b := range bases {
			if i != primary {
				c.Interfaces = append(c.Interfaces, b)
			}
		}
		if polymorphic(c) && !c.Polymorphic {
			r.markPolymorphic(c)
		}
	}
}

// instantiateTypedefs gives every typedef instantiation class its template
// and a copy of the template's non-constructor members with the template
// arguments substituted.
func (r *run) instantiateTypedefs() {
	for _, inst := range r.instantiations {
		c := inst.class
		t, err := r.resolver.Resolve(inst.source.StripQualifiers(), inst.scope)
		var template *metalang.Class
		if err == nil {
			template = r.classOf(t)
		}
		if template == nil || template == c {
			r.warn(errors.NewRejection(errors.ErrUnresolvedBaseClass, c.QualifiedName,
				"template '"+inst.source.String()+"' is not a known class", c.Loc))
			continue
		}
		c.TemplateBase = template
		c.TemplateArguments = t.Instantiations
		r.addClassFunctions(template)
		if template.Polymorphic {
			r.markPolymorphic(c)
		}

		scope := classScope(c)
		for _, f := range template.Functions {
			if f.IsConstructor() || f.Removed || f.IsPrivate() {
				continue
			}
			clone := f.Clone()
			r.substituteFunction(clone, template.TemplateParameters, c.TemplateArguments)
			c.AddFunction(clone)
			r.applyModifications(clone, c.Entry.FunctionModifications, scope)
		}
		for _, fld := range template.Fields {
			clone := *fld
			clone.Type = substitute(fld.Type, template.TemplateParameters, c.TemplateArguments)
			c.AddField(&clone)
		}
		r.logger.Debug("typedef instantiated",
			zap.String("class", c.QualifiedName),
			zap.String("template", template.QualifiedName),
			zap.Int("functions", len(c.Functions)))
	}
}

func (r *run) substituteFunction(f *metalang.Function, params []*typesystem.TypeEntry, args []*metalang.Type) {
	f.ReturnType = substitute(f.ReturnType, params, args)
	for _, a := range f.Arguments {
		a.Type = substitute(a.Type, params, args)
		a.OriginalType = substitute(a.OriginalType, params, args)
	}
}

// substitute replaces template parameters with the matching arguments,
// keeping the qualifiers written on the parameter use.
func substitute(t *metalang.Type, params []*typesystem.TypeEntry, args []*metalang.Type) *metalang.Type {
	if t == nil {
		return nil
	}
	out := t.Clone()
	if out.ArrayElement != nil {
		out.ArrayElement = substitute(t.ArrayElement, params, args)
		return out
	}
	if out.Entry != nil && out.Entry.Kind == typesystem.TemplateArgumentEntry {
		for i, p := range params {
			if p != out.Entry || i >= len(args) {
				continue
			}
			arg := args[i].Clone()
			arg.Const = arg.Const || out.Const
			arg.Volatile = arg.Volatile || out.Volatile
			arg.Indirections = append(arg.Indirections, out.Indirections...)
			if out.Reference != codemodel.NoReference {
				arg.Reference = out.Reference
			}
			return arg
		}
		return out
	}
	for i, inst := range out.Instantiations {
		out.Instantiations[i] = substitute(inst, params, args)
	}
	return out
}

// inheritInterfaceVirtuals copies the virtual functions of auxiliary
// interfaces onto their descendants. A binding object only exposes the
// members of its primary base chain, so a virtual inherited through a
// secondary base would otherwise be unreachable.
func (r *run) inheritInterfaceVirtuals() {
	done := make(map[*metalang.Class]bool)
	var visit func(c *metalang.Class)
	visit = func(c *metalang.Class) {
		if done[c] {
			return
		}
		done[c] = true
		for _, b := range c.BaseClasses() {
			visit(b)
		}
		if len(c.Interfaces) == 0 || c.Entry.Kind == typesystem.InterfaceEntry {
			return
		}

		chain := []*metalang.Class{c}
		for p := c.BaseClass; p != nil && !contains(chain, p); p = p.BaseClass {
			chain = append(chain, p)
		}
		var auxiliary []*metalang.Class
		for _, iface := range c.Interfaces {
			for _, a := range append([]*metalang.Class{iface}, iface.AllBaseClasses()...) {
				if !contains(chain, a) && !contains(auxiliary, a) {
					auxiliary = append(auxiliary, a)
				}
			}
		}
		scope := classScope(c)
		for _, a := range auxiliary {
			for _, f := range a.Functions {
				if !f.Virtual || f.Removed || f.IsConstructor() {
					continue
				}
				if hasSignature(chain, f.MinimalSignature()) {
					continue
				}
				clone := f.Clone()
				c.AddFunction(clone)
				r.applyModifications(clone, c.Entry.FunctionModifications, scope)
			}
		}
	}
	for _, c := range r.order {
		visit(c)
	}
}

func contains(list []*metalang.Class, c *metalang.Class) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func hasSignature(classes []*metalang.Class, signature string) bool {
	for _, c := range classes {
		if c.FindFunctionBySignature(signature) != nil {
			return true
		}
	}
	return false
}
