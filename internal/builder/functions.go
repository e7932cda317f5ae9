package builder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

var functionKinds = map[codemodel.FunctionKind]metalang.FunctionKind{
	codemodel.Constructor:        metalang.ConstructorFunction,
	codemodel.CopyConstructor:    metalang.CopyConstructorFunction,
	codemodel.MoveConstructor:    metalang.MoveConstructorFunction,
	codemodel.Destructor:         metalang.DestructorFunction,
	codemodel.ConversionOperator: metalang.ConversionOperatorFunction,
	codemodel.Signal:             metalang.SignalFunction,
	codemodel.Slot:               metalang.SlotFunction,
}

// functionKind classifies a declaration. className is empty for free
// functions.
func functionKind(f *codemodel.Function, className string) metalang.FunctionKind {
	if kind, ok := functionKinds[f.Kind]; ok {
		return kind
	}
	switch {
	case f.IsConversionOperator():
		return metalang.ConversionOperatorFunction
	case typesystem.NormalizeFunctionName(f.Name) == "operator=":
		return metalang.AssignmentOperatorFunction
	case f.IsOperator():
		return metalang.OperatorFunction
	case className != "" && f.Name == className:
		return metalang.ConstructorFunction
	case className != "" && f.Name == "~"+className:
		return metalang.DestructorFunction
	}
	return metalang.NormalFunction
}

// declaredSignature spells a declaration the way modification rules are
// normalized.
func declaredSignature(name string, args []*codemodel.Argument, constant bool) string {
	types := make([]codemodel.TypeInfo, 0, len(args))
	for _, a := range args {
		types = append(types, a.Type)
	}
	return typesystem.FormatSignature(typesystem.NormalizeFunctionName(name), types, constant)
}

// declaredArguments drops the "(void)" spelling of an empty argument list.
func declaredArguments(f *codemodel.Function) []*codemodel.Argument {
	if len(f.Arguments) == 1 && f.Arguments[0].Type.IsVoid() && f.Arguments[0].Name == "" {
		return nil
	}
	return f.Arguments
}

// translateFunction resolves a declaration inside scope. owner is the class
// the function will belong to, used to recognize copy and move
// constructors. A failed resolution is recorded as a rejection of item.
func (r *run) translateFunction(f *codemodel.Function, scope []string, owner *metalang.Class, item string) *metalang.Function {
	className := ""
	if owner != nil && !owner.IsNamespace {
		className = owner.Name
	}
	name := typesystem.NormalizeFunctionName(f.Name)
	if name == "" {
		name = f.Name
	}
	args := declaredArguments(f)

	mf := &metalang.Function{
		Name:           name,
		OriginalName:   name,
		Access:         f.Access,
		OriginalAccess: f.Access,
		Static:         f.Static,
		Virtual:        f.Virtual || f.PureVirtual,
		Abstract:       f.PureVirtual,
		Constant:       f.Constant,
		Explicit:       f.Explicit,
		Deleted:        f.Deleted,
		Final:          f.Final,
		Deprecated:     f.Deprecated,
		Kind:           functionKind(f, className),
		Loc:            f.Loc,
	}
	mf.SetDeclaredSignature(declaredSignature(name, args, f.Constant))

	returnInfo := f.ReturnType
	if mf.Kind == metalang.ConversionOperatorFunction && returnInfo.IsEmpty() {
		spelled := strings.TrimSpace(strings.TrimPrefix(name, "operator"))
		if info, err := codemodel.ParseTypeInfo(spelled); err == nil {
			returnInfo = info
		}
	}
	if !mf.IsConstructor() && mf.Kind != metalang.DestructorFunction &&
		!returnInfo.IsEmpty() && !returnInfo.IsVoid() {
		t, err := r.resolver.Resolve(returnInfo, scope)
		if err != nil {
			r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: UnmatchedReturnType,
				Detail: err.Error(), Loc: f.Loc})
			return nil
		}
		mf.ReturnType = t
	}

	for i, a := range args {
		t, err := r.resolver.Resolve(a.Type, scope)
		if err != nil {
			r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: UnmatchedArgumentType,
				Detail: fmt.Sprintf("argument %d: %v", i+1, err), Loc: f.Loc})
			return nil
		}
		mf.Arguments = append(mf.Arguments, &metalang.Argument{
			Name:            a.Name,
			OriginalName:    a.Name,
			Type:            t,
			OriginalType:    t.Clone(),
			OriginalDefault: a.DefaultValue,
			Default:         a.DefaultValue,
			Index:           i,
		})
	}

	if mf.Kind == metalang.ConstructorFunction && owner != nil {
		mf.Kind = constructorKind(mf, owner)
	}
	return mf
}

// constructorKind recognizes T(const T&) and T(T&&) among constructors the
// parser did not classify.
func constructorKind(f *metalang.Function, owner *metalang.Class) metalang.FunctionKind {
	if len(f.Arguments) == 0 {
		return metalang.ConstructorFunction
	}
	for _, a := range f.Arguments[1:] {
		if !a.HasDefault() {
			return metalang.ConstructorFunction
		}
	}
	first := f.Arguments[0].Type
	if first.Entry != owner.Entry || len(first.Indirections) > 0 {
		return metalang.ConstructorFunction
	}
	switch first.Reference {
	case codemodel.LValueReference:
		if first.Const {
			return metalang.CopyConstructorFunction
		}
	case codemodel.RValueReference:
		return metalang.MoveConstructorFunction
	}
	return metalang.ConstructorFunction
}

func classScope(c *metalang.Class) []string {
	return strings.Split(c.QualifiedName, "::")
}

// buildMembers resolves the fields and member functions of every accepted
// class. Namespace classes get their non-operator functions as static
// members.
func (r *run) buildMembers() {
	for _, c := range r.order {
		if cls, ok := r.decls[c]; ok {
			r.buildFields(c, cls)
		}
	}
	r.eachScope(func(s *codemodel.Scope) {
		owner := r.owners[s]
		if owner == nil || r.detached[s] {
			return
		}
		for _, f := range s.Functions {
			if owner.IsNamespace {
				if f.IsOperator() && !f.IsConversionOperator() {
					continue
				}
			} else if f.Friend {
				continue
			}
			r.addMember(owner, f, s.QualifiedNameParts())
		}
	})
}

func (r *run) addMember(owner *metalang.Class, f *codemodel.Function, scope []string) {
	kind := functionKind(f, owner.Name)
	if kind == metalang.DestructorFunction && !owner.IsNamespace {
		if f.Access == codemodel.Private {
			owner.HasPrivateDestructor = true
		}
		if f.Virtual || f.PureVirtual {
			owner.HasVirtualDestructor = true
			r.markPolymorphic(owner)
		}
		return
	}

	item := owner.QualifiedName + "::" + declaredSignature(f.Name, declaredArguments(f), f.Constant)
	if r.registry.IsFunctionRejected(owner.QualifiedName, f.Name) {
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: RejectedByRule, Loc: f.Loc})
		return
	}
	constructor := kind == metalang.ConstructorFunction || kind == metalang.CopyConstructorFunction ||
		kind == metalang.MoveConstructorFunction
	// private constructors and virtuals decide what the class allows
	if f.Access == codemodel.Private && !constructor && !f.Virtual && !f.PureVirtual {
		return
	}
	if f.Deleted && !constructor {
		return
	}

	mf := r.translateFunction(f, scope, owner, item)
	if mf == nil {
		return
	}
	if owner.IsNamespace {
		mf.Static = true
	}
	owner.AddFunction(mf)
	if mf.Virtual {
		r.markPolymorphic(owner)
	}
	if mf.Abstract {
		owner.Abstract = true
	}

	r.applyModifications(mf, r.classModifications(owner, f.Name), scope)
	r.accept(FunctionItem, item)
}

// classModifications returns the rules that may apply to a member of owner.
// Functions of a namespace also pick up the rules of a <function> entry.
func (r *run) classModifications(owner *metalang.Class, name string) []*typesystem.FunctionModification {
	mods := owner.Entry.FunctionModifications
	if owner.IsNamespace {
		if fe := r.registry.FindFunction(owner.QualifiedName + "::" + name); fe != nil {
			mods = append(append([]*typesystem.FunctionModification(nil), mods...), fe.FunctionModifications...)
		}
	}
	return mods
}

func (r *run) markPolymorphic(c *metalang.Class) {
	c.Polymorphic = true
	// a discovered fact, recorded on the entry for resolvers of later builds
	c.Entry.Polymorphic = true
}

// buildFields resolves the data members of a class declaration and applies
// field modifications.
func (r *run) buildFields(c *metalang.Class, cls *codemodel.Class) {
	scope := classScope(c)
	matched := make(map[string]bool)
	for _, fld := range cls.Fields {
		if fld.Access == codemodel.Private {
			continue
		}
		item := c.QualifiedName + "::" + fld.Name
		mod := c.Entry.FindFieldModification(fld.Name)
		if mod != nil {
			matched[mod.Name] = true
		}
		if r.registry.IsFieldRejected(c.QualifiedName, fld.Name) {
			r.reject(Rejection{Item: item, Kind: FieldItem, Reason: RejectedByRule, Loc: fld.Loc})
			continue
		}
		if mod != nil && mod.Removed {
			continue
		}
		t, err := r.resolver.Resolve(fld.Type, scope)
		if err != nil {
			r.reject(Rejection{Item: item, Kind: FieldItem, Reason: UnmatchedFieldType,
				Detail: err.Error(), Loc: fld.Loc})
			continue
		}

		field := &metalang.Field{
			Name:         fld.Name,
			OriginalName: fld.Name,
			Type:         t,
			Access:       fld.Access,
			Static:       fld.Static,
			Readable:     true,
			Writable:     !t.Const || t.IsPointer(),
			Loc:          fld.Loc,
		}
		if mod != nil {
			if mod.RenamedTo != "" {
				field.Name = mod.RenamedTo
			}
			field.Readable = mod.Readable
			field.Writable = field.Writable && mod.Writable
		}
		c.AddField(field)
		r.accept(FieldItem, item)
	}

	for _, mod := range c.Entry.FieldModifications {
		if !matched[mod.Name] {
			r.warn(errors.NewUnmatchedFieldModification(c.QualifiedName, mod.Name))
		}
	}
}

// buildFreeFunctions places free functions: operators attach to the class
// of an operand, other functions need a <function> entry and go to the
// global list.
func (r *run) buildFreeFunctions() {
	r.eachScope(func(s *codemodel.Scope) {
		if r.detached[s] {
			return
		}
		owner := r.owners[s]
		scope := s.QualifiedNameParts()
		for _, f := range s.Functions {
			operator := f.IsOperator() && !f.IsConversionOperator()
			switch {
			case owner != nil && !owner.IsNamespace:
				if f.Friend && operator {
					r.placeOperator(f, scope)
				}
			case operator:
				r.placeOperator(f, scope)
			case owner == nil:
				r.addGlobalFunction(f, scope)
			}
		}
	})
}

func (r *run) addGlobalFunction(f *codemodel.Function, scope []string) {
	name := f.QualifiedName()
	item := qualify(scope, declaredSignature(f.Name, declaredArguments(f), f.Constant))
	if r.registry.IsFunctionRejected("", f.Name) {
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: RejectedByRule, Loc: f.Loc})
		return
	}
	entry, reason, detail, ok := r.lookupEntry(name)
	switch {
	case !ok:
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: reason, Detail: detail, Loc: f.Loc})
		return
	case !entry.IsFunction():
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: NotInTypeSystem,
			Detail: name + " is registered as " + entry.Kind.String(), Loc: f.Loc})
		return
	case entry.GenerationDisabled:
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: GenerationDisabled, Loc: f.Loc})
		return
	}

	mf := r.translateFunction(f, scope, nil, item)
	if mf == nil {
		return
	}
	r.globalFunctions = append(r.globalFunctions, mf)
	mods := append(append([]*typesystem.FunctionModification(nil), entry.FunctionModifications...),
		r.registry.GlobalModifications()...)
	r.applyModifications(mf, mods, scope)
	r.accept(FunctionItem, item)
}

// placeOperator attaches a free operator to a class. The class of the first
// operand takes it as a member; otherwise the class of the second operand
// takes it as a reverse operator. Stream operators ("s << value") always go
// to the streamed value's class.
func (r *run) placeOperator(f *codemodel.Function, scope []string) {
	args := declaredArguments(f)
	item := qualify(scope, declaredSignature(f.Name, args, f.Constant))
	mf := r.translateFunction(f, scope, nil, item)
	if mf == nil {
		return
	}

	var first, second *metalang.Class
	if len(mf.Arguments) > 0 {
		first = r.classOf(mf.Arguments[0].Type)
	}
	if len(mf.Arguments) > 1 {
		second = r.classOf(mf.Arguments[1].Type)
	}
	if first != nil && first.IsNamespace {
		first = nil
	}
	if second != nil && second.IsNamespace {
		second = nil
	}
	if isStreamOperator(mf) && second != nil {
		first = nil
	}

	var owner *metalang.Class
	drop := 0
	switch {
	case first != nil:
		owner = first
		this := mf.Arguments[0].Type
		mf.Constant = this.Const || !this.IsReference()
	case second != nil:
		owner = second
		drop = 1
		mf.ReverseOperator = true
	default:
		r.reject(Rejection{Item: item, Kind: FunctionItem, Reason: UnmatchedOperator,
			Detail: "no operand is a known class", Loc: f.Loc})
		return
	}

	mf.Arguments = append(mf.Arguments[:drop:drop], mf.Arguments[drop+1:]...)
	remaining := append(args[:drop:drop], args[drop+1:]...)
	for i, a := range mf.Arguments {
		a.Index = i
	}
	mf.Static = false
	mf.SetDeclaredSignature(declaredSignature(mf.OriginalName, remaining, mf.Constant))
	owner.AddFunction(mf)

	r.applyModifications(mf, owner.Entry.FunctionModifications, classScope(owner))
	r.accept(FunctionItem, item)
	r.logger.Debug("free operator attached",
		zap.String("operator", item),
		zap.String("class", owner.QualifiedName),
		zap.Bool("reverse", mf.ReverseOperator))
}

func isStreamOperator(f *metalang.Function) bool {
	if (f.Name != "operator<<" && f.Name != "operator>>") || len(f.Arguments) != 2 {
		return false
	}
	stream := f.Arguments[0].Type
	return stream.Reference == codemodel.LValueReference && !stream.Const
}
