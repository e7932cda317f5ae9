package builder

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/resolver"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// pipeline is the order modification steps are applied in.
var pipeline = []typesystem.ModificationKind{
	typesystem.ModRemove,
	typesystem.ModRename,
	typesystem.ModAccess,
	typesystem.ModDeprecate,
	typesystem.ModArguments,
	typesystem.ModCodeInjection,
}

// matchingModifications returns the rules matching one of the function's
// signatures, marking them as used. Rules of a later API version match but
// are not returned.
func (r *run) matchingModifications(f *metalang.Function, mods []*typesystem.FunctionModification) []*typesystem.FunctionModification {
	var active []*typesystem.FunctionModification
	signatures := f.Signatures()
	for _, m := range mods {
		matches := false
		for _, sig := range signatures {
			if m.Matches(sig) {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		r.matched[m] = true
		if m.AppliesTo(r.apiVersion()) {
			active = append(active, m)
		}
	}
	return active
}

// applyModifications runs the modification pipeline on f. Removal
// short-circuits every later step; other rules aimed at a removed function
// are reported.
func (r *run) applyModifications(f *metalang.Function, mods []*typesystem.FunctionModification, scope []string) {
	active := r.matchingModifications(f, mods)
	if len(active) == 0 {
		return
	}

	warned := make(map[*typesystem.FunctionModification]bool)
	for _, kind := range pipeline {
		for _, m := range active {
			if !carries(m, kind) {
				continue
			}
			if f.Removed && kind != typesystem.ModRemove {
				if !m.Removed && !warned[m] {
					warned[m] = true
					r.warn(errors.NewModificationOfRemoved(f.QualifiedName(), m.Signature))
				}
				continue
			}
			r.applyStep(f, m, kind, scope)
			f.Modifications = append(f.Modifications, metalang.AppliedModification{Kind: kind, Signature: m.Signature})
		}
	}
	r.logger.Debug("modifications applied",
		zap.String("function", f.QualifiedName()),
		zap.Int("rules", len(active)),
		zap.Bool("removed", f.Removed))
}

func carries(m *typesystem.FunctionModification, kind typesystem.ModificationKind) bool {
	for _, k := range m.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *run) applyStep(f *metalang.Function, m *typesystem.FunctionModification, kind typesystem.ModificationKind, scope []string) {
	switch kind {
	case typesystem.ModRemove:
		f.Removed = true
	case typesystem.ModRename:
		f.Name = m.RenamedTo
	case typesystem.ModAccess:
		f.Access = *m.Access
	case typesystem.ModDeprecate:
		f.Deprecated = true
	case typesystem.ModArguments:
		r.applyArgumentModifications(f, m.ArgumentModifications, scope)
	case typesystem.ModCodeInjection:
		f.CodeSnips = append(f.CodeSnips, m.CodeSnips...)
	}
}

// applyArgumentModifications applies modify-argument rules. Index 0 is the
// return value.
func (r *run) applyArgumentModifications(f *metalang.Function, mods []*typesystem.ArgumentModification, scope []string) {
	for _, am := range mods {
		if am.Index == 0 {
			r.modifyReturn(f, am, scope)
			continue
		}
		a := f.Argument(am.Index - 1)
		if a == nil {
			r.warn(errors.NewUnmatchedArgumentModification(f.QualifiedName(), am.Index, len(f.Arguments)))
			continue
		}
		if am.RenamedTo != "" {
			a.Name = am.RenamedTo
		}
		if am.ReplacedType != "" {
			if t := r.replacementType(f, am.ReplacedType, scope); t != nil {
				a.Type = t
			}
		}
		if am.ReplacedDefault != "" {
			a.Default = am.ReplacedDefault
		}
		if am.RemovedDefault {
			a.Default = ""
		}
		if am.Removed {
			a.Removed = true
		}
		if am.Ownership != typesystem.OwnershipUnchanged {
			a.Ownership = am.Ownership
		}
		a.ReferenceCounts = append(a.ReferenceCounts, am.ReferenceCounts...)
		a.InvalidateAfterUse = a.InvalidateAfterUse || am.InvalidateAfterUse
		if am.NoNullPointer {
			a.NoNullPointer = true
			a.NullPointerDefault = am.NullPointerDefault
		}
		a.ConversionRules = append(a.ConversionRules, am.ConversionRules...)
	}
}

func (r *run) modifyReturn(f *metalang.Function, am *typesystem.ArgumentModification, scope []string) {
	if am.Ownership != typesystem.OwnershipUnchanged {
		f.ReturnOwnership = am.Ownership
	}
	f.ReturnReferenceCounts = append(f.ReturnReferenceCounts, am.ReferenceCounts...)
	if am.ReplacedType != "" {
		if t := r.replacementType(f, am.ReplacedType, scope); t != nil {
			f.ReturnType = t
		}
	}
}

// replacementType resolves a replace-type spelling; failures are reported
// and leave the declared type in place.
func (r *run) replacementType(f *metalang.Function, spelling string, scope []string) *metalang.Type {
	t, err := r.resolver.ResolveSpelling(spelling, scope)
	if err == nil {
		return t
	}
	var re *resolver.ResolutionError
	if stderrors.As(err, &re) {
		r.warn(re.Diagnostic(f.Loc).WithItem(f.QualifiedName()))
	}
	return nil
}
