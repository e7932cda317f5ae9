package builder

import (
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/resolver"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// indexDeclarations records typedefs and enum values as resolver facts
// before any type is resolved.
func (r *run) indexDeclarations() {
	var enums []*codemodel.Enum
	r.eachScope(func(s *codemodel.Scope) {
		for _, td := range s.Typedefs {
			if isSelfAlias(td) {
				continue
			}
			r.resolver.AddTypedef(td.QualifiedName(), td.Type, td.EnclosingScope())
		}
		enums = append(enums, s.Enums...)
	})
	r.evaluateEnumValues(enums)
}

// isSelfAlias reports "typedef enum E {...} E", which introduces no new name.
func isSelfAlias(td *codemodel.Typedef) bool {
	t := td.Type
	return len(t.Name) == 1 && t.Name[0] == td.Name && !t.Const && t.Reference == codemodel.NoReference &&
		len(t.Indirections) == 0 && len(t.Instantiations) == 0 && len(t.ArrayDimensions) == 0
}

// enumScope is the scope enumerator initializers are written in.
func enumScope(e *codemodel.Enum) []string {
	scope := e.EnclosingScope()
	if e.IsAnonymous() {
		return scope
	}
	return append(append([]string(nil), scope...), e.Name)
}

// evaluateEnumValues computes every enumerator. Initializers may refer to
// enumerators declared later or in other enums, so passes repeat until no
// value makes progress. An implicit value is the previous value plus one.
func (r *run) evaluateEnumValues(enums []*codemodel.Enum) {
	next := make(map[*codemodel.Enum]int, len(enums))
	lastErr := make(map[*codemodel.EnumValue]error)

	for progress := true; progress; {
		progress = false
		for _, e := range enums {
			scope := enumScope(e)
			for i := next[e]; i < len(e.Values); i++ {
				v := e.Values[i]
				value, err := r.enumeratorValue(e, i, scope)
				if err != nil {
					lastErr[v] = err
					break
				}
				r.recordEnumValue(e, v, value)
				next[e] = i + 1
				progress = true
			}
		}
	}

	// What is left is unresolvable; fall back to the implicit value so
	// later enumerators still get one.
	for _, e := range enums {
		for i := next[e]; i < len(e.Values); i++ {
			v := e.Values[i]
			value := int64(0)
			if i > 0 {
				value = r.evaluated[e.Values[i-1]] + 1
			}
			if v.Expression != "" {
				if got, err := r.enumeratorValue(e, i, enumScope(e)); err == nil {
					value = got
				} else {
					cause := lastErr[v]
					if cause == nil {
						cause = err
					}
					if !r.registry.IsDropped(e.QualifiedName()) {
						r.warn(errors.NewUnevaluatedEnumValue(v.Loc, qualify(enumScope(e), v.Name), v.Expression, cause))
					}
				}
			}
			r.recordEnumValue(e, v, value)
		}
	}
}

func (r *run) enumeratorValue(e *codemodel.Enum, i int, scope []string) (int64, error) {
	v := e.Values[i]
	if strings.TrimSpace(v.Expression) == "" {
		if i == 0 {
			return 0, nil
		}
		prev, ok := r.evaluated[e.Values[i-1]]
		if !ok {
			return 0, resolver.ErrUnknownIdentifier
		}
		return prev + 1, nil
	}
	return resolver.Evaluate(v.Expression, func(name string) (int64, bool) {
		for _, candidate := range r.resolver.Candidates(name, scope) {
			if value, ok := r.enumValues[candidate]; ok {
				return value, true
			}
		}
		return 0, false
	})
}

// recordEnumValue stores an enumerator under the enum scope and, for
// unscoped enums, under the enclosing scope as well. Dropped enums are not
// published to the resolver.
func (r *run) recordEnumValue(e *codemodel.Enum, v *codemodel.EnumValue, value int64) {
	r.evaluated[v] = value
	names := []string{qualify(enumScope(e), v.Name)}
	if !e.Scoped && !e.IsAnonymous() {
		names = append(names, qualify(e.EnclosingScope(), v.Name))
	}
	dropped := r.registry.IsDropped(names[0])
	for _, name := range names {
		if _, exists := r.enumValues[name]; !exists {
			r.enumValues[name] = value
		}
		if !dropped {
			r.resolver.AddEnumValue(name, value)
		}
	}
}

// buildEnums attaches registered enums to their classes or to the global
// enum list.
func (r *run) buildEnums() {
	r.eachScope(func(s *codemodel.Scope) {
		if r.detached[s] {
			return
		}
		owner := r.owners[s]
		for _, e := range s.Enums {
			if me := r.buildEnum(e, owner); me != nil {
				if owner != nil {
					owner.AddEnum(me)
				} else {
					r.globalEnums = append(r.globalEnums, me)
				}
			}
		}
	})
}

func (r *run) buildEnum(e *codemodel.Enum, owner *metalang.Class) *metalang.Enum {
	scopeName := strings.Join(e.EnclosingScope(), "::")
	entry, ok := r.enumEntry(e, scopeName)
	if !ok {
		return nil
	}

	me := &metalang.Enum{
		Name:          e.Name,
		QualifiedName: entry.QualifiedName(),
		Entry:         entry,
		Signed:        e.IsSigned(),
		Scoped:        e.Scoped,
		Anonymous:     e.IsAnonymous(),
		Deprecated:    e.Deprecated || entry.Deprecated,
		Access:        e.Access,
		Loc:           e.Loc,
	}
	if entry.Target != nil && entry.Target.IsFlags() {
		me.FlagsEntry = entry.Target
	}
	for _, v := range e.Values {
		if entry.IsEnumValueRejected(v.Name) {
			continue
		}
		me.Values = append(me.Values, &metalang.EnumValue{
			Name:       v.Name,
			Value:      r.evaluated[v],
			Expression: v.Expression,
			Enum:       me,
		})
	}
	for _, rejected := range entry.RejectedValues {
		if !hasEnumerator(e, rejected) {
			r.warn(errors.NewUnknownRejectedEnumValue(me.QualifiedName, rejected))
		}
	}

	r.accept(EnumItem, me.QualifiedName)
	r.logger.Debug("enum built",
		zap.String("enum", me.QualifiedName),
		zap.Int("values", len(me.Values)),
		zap.Bool("flags", me.HasFlags()))
	return me
}

// enumEntry finds the entry of an enum declaration, recording a rejection
// when there is none. Anonymous enums are identified by one of their values.
func (r *run) enumEntry(e *codemodel.Enum, scopeName string) (*typesystem.TypeEntry, bool) {
	if e.IsAnonymous() {
		for _, v := range e.Values {
			if entry := r.registry.FindEnumByValue(scopeName, v.Name); entry != nil {
				return entry, true
			}
		}
		item := "(anonymous)"
		if len(e.Values) > 0 {
			item = "(anonymous " + e.Values[0].Name + ")"
		}
		r.reject(Rejection{Item: qualify(e.EnclosingScope(), item), Kind: EnumItem, Reason: NotInTypeSystem, Loc: e.Loc})
		return nil, false
	}

	name := e.QualifiedName()
	if r.registry.IsEnumRejected(scopeName, e.Name) {
		r.reject(Rejection{Item: name, Kind: EnumItem, Reason: RejectedByRule, Loc: e.Loc})
		return nil, false
	}
	entry, reason, detail, ok := r.lookupEntry(name)
	switch {
	case !ok:
		r.reject(Rejection{Item: name, Kind: EnumItem, Reason: reason, Detail: detail, Loc: e.Loc})
		return nil, false
	case !entry.IsEnum():
		r.reject(Rejection{Item: name, Kind: EnumItem, Reason: RedefinedToNotClass,
			Detail: "registered as " + entry.Kind.String(), Loc: e.Loc})
		return nil, false
	case entry.GenerationDisabled:
		r.reject(Rejection{Item: name, Kind: EnumItem, Reason: GenerationDisabled, Loc: e.Loc})
		return nil, false
	}
	return entry, true
}

func hasEnumerator(e *codemodel.Enum, name string) bool {
	for _, v := range e.Values {
		if v.Name == name {
			return true
		}
	}
	return false
}
