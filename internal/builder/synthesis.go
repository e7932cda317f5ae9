package builder

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// addUserFunctions merges add-function rules into their classes and the
// global function list. An added function whose signature is already
// declared is reported and skipped.
func (r *run) addUserFunctions() {
	for _, c := range r.order {
		r.addClassFunctions(c)
	}

	for _, af := range r.registry.GlobalAddedFunctions() {
		if !af.AppliesTo(r.apiVersion()) {
			continue
		}
		f := r.addedFunction(af, nil, nil)
		if f == nil {
			continue
		}
		if r.hasGlobalFunction(f.MinimalSignature()) {
			r.warn(errors.NewDuplicateAddedFunction("", af.Signature()))
			continue
		}
		r.globalFunctions = append(r.globalFunctions, f)
		r.applyModifications(f, r.registry.GlobalModifications(), nil)
		r.accept(FunctionItem, f.QualifiedName())
	}
}

// addClassFunctions merges the add-function rules of one class. It runs
// once per class; templates are merged before their typedef
// instantiations copy their members.
func (r *run) addClassFunctions(c *metalang.Class) {
	if r.userAdded[c] {
		return
	}
	r.userAdded[c] = true
	scope := classScope(c)
	for _, af := range c.Entry.AddedFunctions {
		if !af.AppliesTo(r.apiVersion()) {
			continue
		}
		f := r.addedFunction(af, c, scope)
		if f == nil {
			continue
		}
		if existing := c.FindFunctionBySignature(f.MinimalSignature()); existing != nil && !existing.Synthesized {
			r.warn(errors.NewDuplicateAddedFunction(c.QualifiedName, af.Signature()))
			continue
		}
		c.AddFunction(f)
		r.applyModifications(f, r.classModifications(c, af.Name), scope)
		r.accept(FunctionItem, f.QualifiedName())
	}
}

func (r *run) hasGlobalFunction(signature string) bool {
	for _, f := range r.globalFunctions {
		if f.MinimalSignature() == signature {
			return true
		}
	}
	return false
}

// addedFunction resolves an add-function rule in scope. owner is nil for
// global functions.
func (r *run) addedFunction(af *typesystem.AddedFunction, owner *metalang.Class, scope []string) *metalang.Function {
	item := qualify(scope, af.Signature())
	f := &metalang.Function{
		Name:           af.Name,
		OriginalName:   af.Name,
		Access:         af.Access,
		OriginalAccess: af.Access,
		Static:         af.Static || (owner != nil && owner.IsNamespace),
		Constant:       af.Constant,
		UserAdded:      true,
		CodeSnips:      append([]typesystem.CodeSnip(nil), af.CodeSnips...),
	}
	if owner != nil && !owner.IsNamespace && af.Name == owner.Name {
		f.Kind = metalang.ConstructorFunction
	}
	f.SetDeclaredSignature(af.Signature())

	if !af.ReturnType.IsEmpty() && !af.ReturnType.IsVoid() && !f.IsConstructor() {
		t, err := r.resolver.Resolve(af.ReturnType, scope)
		if err != nil {
			r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: UnmatchedReturnType, Detail: err.Error()})
			return nil
		}
		f.ReturnType = t
	}
	for i, a := range af.Arguments {
		t, err := r.resolver.Resolve(a.Type, scope)
		if err != nil {
			r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: UnmatchedArgumentType,
				Detail: fmt.Sprintf("argument %d: %v", i+1, err)})
			return nil
		}
		f.Arguments = append(f.Arguments, &metalang.Argument{
			Name:            a.Name,
			OriginalName:    a.Name,
			Type:            t,
			OriginalType:    t.Clone(),
			OriginalDefault: a.DefaultValue,
			Default:         a.DefaultValue,
			Index:           i,
		})
	}
	if f.Kind == metalang.ConstructorFunction {
		f.Kind = constructorKind(f, owner)
	}

	if len(af.ArgumentModifications) > 0 {
		r.applyArgumentModifications(f, af.ArgumentModifications, scope)
		f.Modifications = append(f.Modifications, metalang.AppliedModification{
			Kind:      typesystem.ModArguments,
			Signature: af.Signature(),
		})
	}
	if len(af.CodeSnips) > 0 {
		f.Modifications = append(f.Modifications, metalang.AppliedModification{
			Kind:      typesystem.ModCodeInjection,
			Signature: af.Signature(),
		})
	}
	return f
}

// synthesizeConstructors gives classes without declared constructors a
// public default constructor and, unless the type is non-copyable, a copy
// constructor. Value types that declare public constructors but no copy or
// move constructor get the implicit copy constructor.
func (r *run) synthesizeConstructors() {
	for _, c := range r.order {
		if c.IsNamespace || c.Entry.IsContainer() || c.Entry.IsSmartPointer() {
			continue
		}
		var added []*metalang.Function
		switch {
		case !c.HasConstructors():
			added = append(added, defaultConstructor(c))
			if !c.Entry.IsNonCopyable() {
				added = append(added, copyConstructor(c))
			}
		case c.Entry.IsValue() && !c.Entry.IsNonCopyable() && c.HasNonPrivateConstructor() &&
			!c.HasCopyConstructor() && !hasMoveConstructor(c):
			added = append(added, copyConstructor(c))
		}
		for _, f := range added {
			c.AddFunction(f)
			r.logger.Debug("constructor synthesized",
				zap.String("class", c.QualifiedName),
				zap.String("signature", f.MinimalSignature()))
		}
	}
}

func defaultConstructor(c *metalang.Class) *metalang.Function {
	f := &metalang.Function{
		Name:           c.Name,
		OriginalName:   c.Name,
		Access:         codemodel.Public,
		OriginalAccess: codemodel.Public,
		Kind:           metalang.ConstructorFunction,
		Synthesized:    true,
		Loc:            c.Loc,
	}
	f.SetDeclaredSignature(c.Name + "()")
	return f
}

func copyConstructor(c *metalang.Class) *metalang.Function {
	f := defaultConstructor(c)
	f.Kind = metalang.CopyConstructorFunction
	t := &metalang.Type{Entry: c.Entry, Const: true, Reference: codemodel.LValueReference}
	f.Arguments = []*metalang.Argument{{
		Name:         "other",
		OriginalName: "other",
		Type:         t,
		OriginalType: t.Clone(),
	}}
	f.SetDeclaredSignature(f.MinimalSignature())
	return f
}

func hasMoveConstructor(c *metalang.Class) bool {
	for _, f := range c.Functions {
		if f.IsMoveConstructor() {
			return true
		}
	}
	return false
}

// collectConversions registers every conversion operator with the class it
// converts to.
func (r *run) collectConversions() {
	for _, c := range r.order {
		for _, f := range c.Functions {
			if !f.IsConversionOperator() || f.Removed {
				continue
			}
			target := r.classOf(f.ReturnType)
			if target == nil || target == c {
				continue
			}
			target.AddExternalConversionOperator(f)
		}
	}
}

// checkConsistency reports ruleset entries that never matched a
// declaration.
func (r *run) checkConsistency() {
	seen := make(map[*typesystem.TypeEntry]bool)
	for _, c := range r.order {
		if seen[c.Entry] {
			continue
		}
		seen[c.Entry] = true
		r.reportUnmatched(c.QualifiedName, c.Entry.FunctionModifications)
	}
	for _, e := range r.registry.Entries() {
		if !e.IsFunction() || seen[e] {
			continue
		}
		seen[e] = true
		r.reportUnmatched(strings.Join(parentScope(e.QualifiedName()), "::"), e.FunctionModifications)
	}
	r.reportUnmatched("", r.registry.GlobalModifications())

	dropped := r.registry.UnmatchedDropEntries()
	sort.Strings(dropped)
	for _, name := range dropped {
		r.warn(errors.NewUnmatchedDropEntry(name))
	}
}

func (r *run) reportUnmatched(className string, mods []*typesystem.FunctionModification) {
	for _, m := range mods {
		if !r.matched[m] {
			r.warn(errors.NewUnmatchedModification(className, m.Signature))
		}
	}
}
