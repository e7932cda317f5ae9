package builder

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// instantiation is a class that aliases a template instantiation, either a
// header typedef with a class entry or a typedef-type entry.
type instantiation struct {
	class  *metalang.Class
	source codemodel.TypeInfo
	scope  []string
}

// buildClasses accepts or rejects every namespace and class declaration.
func (r *run) buildClasses() {
	r.walkClasses(&r.model.Scope, nil, false)
	r.collectTypedefEntries()
}

func (r *run) walkClasses(s *codemodel.Scope, owner *metalang.Class, detached bool) {
	r.owners[s] = owner
	if detached {
		r.detached[s] = true
	}
	if owner != nil {
		r.scopes[owner] = append(r.scopes[owner], s)
	}

	for _, ns := range s.Namespaces {
		nsClass := r.namespaceClass(ns, owner)
		r.walkClasses(&ns.Scope, nsClass, false)
	}
	for _, cls := range s.Classes {
		c := r.declaredClass(cls, owner, detached)
		if c == nil {
			// Inner declarations of a rejected class are visited but never
			// attached to it.
			r.walkClasses(&cls.Scope, nil, true)
			continue
		}
		r.walkClasses(&cls.Scope, c, false)
	}
	for _, td := range s.Typedefs {
		r.typedefClass(td, owner, detached)
	}
}

// namespaceClass returns the namespace class of a namespace declaration, or
// nil when the namespace is not registered. Reopened namespaces share one
// class.
func (r *run) namespaceClass(ns *codemodel.Namespace, owner *metalang.Class) *metalang.Class {
	name := ns.QualifiedName()
	if c, ok := r.classes[name]; ok && c.IsNamespace {
		return c
	}
	if r.status[itemKey{ClassItem, name}] == Rejected {
		return nil
	}
	if r.registry.IsClassRejected(name) {
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: RejectedByRule, Loc: ns.Loc})
		return nil
	}
	entry, reason, detail, ok := r.lookupEntry(name)
	switch {
	case !ok:
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: reason, Detail: detail, Loc: ns.Loc})
		return nil
	case !entry.IsNamespace():
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: RedefinedToNotClass,
			Detail: "namespace registered as " + entry.Kind.String(), Loc: ns.Loc})
		return nil
	case entry.GenerationDisabled:
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: GenerationDisabled, Loc: ns.Loc})
		return nil
	}

	c := &metalang.Class{
		Name:          ns.Name,
		QualifiedName: name,
		Package:       entry.Package,
		Entry:         entry,
		IsNamespace:   true,
		Deprecated:    entry.Deprecated,
		Loc:           ns.Loc,
	}
	r.register(c, owner)
	return c
}

// declaredClass accepts a class declaration, or records why it is rejected
// and returns nil.
func (r *run) declaredClass(cls *codemodel.Class, owner *metalang.Class, detached bool) *metalang.Class {
	name := cls.QualifiedName()
	if c, ok := r.classes[name]; ok {
		// a second definition of the same class adds nothing
		return c
	}
	if r.registry.IsClassRejected(name) {
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: RejectedByRule, Loc: cls.Loc})
		return nil
	}
	entry, reason, detail, ok := r.lookupEntry(name)
	switch {
	case !ok:
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: reason, Detail: detail, Loc: cls.Loc})
		return nil
	case !entry.IsComplex() || entry.IsNamespace():
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: RedefinedToNotClass,
			Detail: "registered as " + entry.Kind.String(), Loc: cls.Loc})
		return nil
	case entry.GenerationDisabled:
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: GenerationDisabled, Loc: cls.Loc})
		return nil
	}

	c := &metalang.Class{
		Name:          cls.Name,
		QualifiedName: name,
		Package:       entry.Package,
		Entry:         entry,
		Final:         cls.Final,
		Polymorphic:   entry.Polymorphic,
		Deprecated:    entry.Deprecated,
		Loc:           cls.Loc,
	}
	for _, base := range cls.Bases {
		c.BaseClassNames = append(c.BaseClassNames, base.Name)
	}
	for i, param := range cls.TemplateParameters {
		te := typesystem.NewTypeEntry(typesystem.TemplateArgumentEntry, name+"::"+param)
		te.Value = strconv.Itoa(i)
		te.Parent = entry
		r.resolver.AddLocalEntry(te)
		c.TemplateParameters = append(c.TemplateParameters, te)
	}
	if detached {
		owner = nil
	}
	r.register(c, owner)
	r.decls[c] = cls
	return c
}

// typedefClass creates the class of "typedef QList<int> IntList" when
// IntList has a class entry.
func (r *run) typedefClass(td *codemodel.Typedef, owner *metalang.Class, detached bool) {
	if len(td.Type.Instantiations) == 0 || isSelfAlias(td) {
		return
	}
	name := td.QualifiedName()
	if _, ok := r.classes[name]; ok {
		return
	}
	entry, status := r.registry.Lookup(name)
	switch status {
	case typesystem.NotFound:
		// a plain typedef, resolved through the resolver
		return
	case typesystem.Found:
		if !entry.IsValue() && !entry.IsObject() && !entry.IsTypedef() {
			return
		}
		if entry.GenerationDisabled {
			r.reject(Rejection{Item: name, Kind: ClassItem, Reason: GenerationDisabled, Loc: td.Loc})
			return
		}
	default:
		_, reason, detail, _ := r.lookupEntry(name)
		r.reject(Rejection{Item: name, Kind: ClassItem, Reason: reason, Detail: detail, Loc: td.Loc})
		return
	}

	c := &metalang.Class{
		Name:                 td.Name,
		QualifiedName:        name,
		Package:              entry.Package,
		Entry:                entry,
		TypedefInstantiation: true,
		Deprecated:           entry.Deprecated,
		Loc:                  td.Loc,
	}
	if detached {
		owner = nil
	}
	r.register(c, owner)
	r.instantiations = append(r.instantiations, &instantiation{
		class:  c,
		source: td.Type,
		scope:  td.EnclosingScope(),
	})
}

// collectTypedefEntries creates the classes of typedef-type entries that no
// header typedef declared.
func (r *run) collectTypedefEntries() {
	for _, e := range r.registry.Entries() {
		if !e.IsTypedef() || e.GenerationDisabled {
			continue
		}
		if _, ok := r.classes[e.QualifiedName()]; ok {
			continue
		}
		source, err := codemodel.ParseTypeInfo(e.Source)
		if err != nil {
			continue
		}
		var owner *metalang.Class
		scope := parentScope(e.QualifiedName())
		if len(scope) > 0 {
			owner = r.classes[strings.Join(scope, "::")]
		}
		c := &metalang.Class{
			Name:                 e.Name(),
			QualifiedName:        e.QualifiedName(),
			Package:              e.Package,
			Entry:                e,
			TypedefInstantiation: true,
			Deprecated:           e.Deprecated,
		}
		r.register(c, owner)
		r.instantiations = append(r.instantiations, &instantiation{class: c, source: source, scope: scope})
	}
}

func parentScope(qualifiedName string) []string {
	i := strings.LastIndex(qualifiedName, "::")
	if i < 0 {
		return nil
	}
	return strings.Split(qualifiedName[:i], "::")
}

// resolveBaseScopes finds the base classes written in each class
// declaration and tells the resolver, so inherited names resolve in the
// derived class.
func (r *run) resolveBaseScopes() {
	for _, c := range r.order {
		cls, ok := r.decls[c]
		if !ok {
			continue
		}
		var names []string
		for _, spec := range cls.Bases {
			base := r.findBase(spec.Name, cls.EnclosingScope())
			if base == nil {
				r.warn(errors.NewRejection(errors.ErrUnresolvedBaseClass, c.QualifiedName,
					"base class '"+spec.Name+"' is not a known class", cls.Loc))
				continue
			}
			if base == c {
				continue
			}
			r.bases[c] = append(r.bases[c], base)
			names = append(names, base.QualifiedName)
		}
		if len(names) > 0 {
			r.resolver.SetBaseScopes(c.QualifiedName, names)
			r.logger.Debug("base classes found",
				zap.String("class", c.QualifiedName),
				zap.Strings("bases", names))
		}
	}
}

// findBase looks up a base class as written; template arguments are
// ignored ("Base<int>" names the class template Base). Typedef aliases of
// classes are followed.
func (r *run) findBase(spelling string, scope []string) *metalang.Class {
	info, err := codemodel.ParseTypeInfo(spelling)
	if err != nil {
		return nil
	}
	if c := r.findClass(info.QualifiedName(), scope); c != nil {
		return c
	}
	t, err := r.resolver.Resolve(info.StripQualifiers(), scope)
	if err != nil {
		return nil
	}
	return r.classOf(t)
}
