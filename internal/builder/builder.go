// Package builder turns a declaration tree and a frozen type registry into
// the metamodel: resolved classes, functions and enums with the ruleset's
// modifications applied, sorted so every class follows its dependencies.
//
// A build runs in phases. Each phase reads what earlier phases produced:
//
//	index        typedefs and enum values become resolver facts
//	classes      namespaces and classes are accepted or rejected
//	enums        enums are attached to their classes
//	members      functions and fields are resolved and modified
//	free         free functions and operators are placed
//	inheritance  bases are linked, typedef instantiations filled in
//	additions    ruleset added functions are merged
//	synthesis    constructors, conversions and interface virtuals
//	consistency  unmatched rules are reported
//	sort         classes are ordered by dependency
//
// Rejections never abort a build; they are recorded in the Result.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/resolver"
	"github.com/conduit-lang/apiextractor/internal/toposort"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// Builder builds metamodels against one registry.
type Builder struct {
	registry          *typesystem.Registry
	logger            *zap.Logger
	cacheSize         int
	extraDependencies map[string][]string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithCacheSize sets the size of the type resolution cache.
func WithCacheSize(size int) Option {
	return func(b *Builder) { b.cacheSize = size }
}

// WithExtraDependencies adds ordering constraints to the class sort, from a
// qualified class name to the names it must follow.
func WithExtraDependencies(deps map[string][]string) Option {
	return func(b *Builder) { b.extraDependencies = deps }
}

// New creates a builder. The registry is frozen by the first Build.
func New(registry *typesystem.Registry, opts ...Option) *Builder {
	b := &Builder{
		registry:  registry,
		cacheSize: resolver.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Result is a built metamodel.
type Result struct {
	RunID      string
	APIVersion string

	// Classes holds value, object, interface and namespace classes plus
	// typedef instantiations, in dependency order.
	Classes metalang.ClassList
	// Templates holds container classes and other class templates.
	Templates metalang.ClassList
	// SmartPointers holds smart pointer classes.
	SmartPointers metalang.ClassList

	GlobalFunctions []*metalang.Function
	GlobalEnums     []*metalang.Enum
	GlobalCodeSnips []typesystem.CodeSnip

	Rejections  []Rejection
	Diagnostics errors.DiagnosticList

	// BrokenDependencies lists the edges ignored to break dependency cycles.
	BrokenDependencies []toposort.Edge

	status map[itemKey]Status
}

// FindClass returns the class, template or smart pointer with the qualified
// name, or nil.
func (r *Result) FindClass(qualifiedName string) *metalang.Class {
	for _, list := range []metalang.ClassList{r.Classes, r.Templates, r.SmartPointers} {
		if c := list.Find(qualifiedName); c != nil {
			return c
		}
	}
	return nil
}

// FindGlobalFunctions returns the global functions with the given name.
func (r *Result) FindGlobalFunctions(name string) []*metalang.Function {
	var out []*metalang.Function
	for _, f := range r.GlobalFunctions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// FindEnum returns an enum by qualified name, global or nested in a class.
func (r *Result) FindEnum(qualifiedName string) *metalang.Enum {
	for _, e := range r.GlobalEnums {
		if e.QualifiedName == qualifiedName {
			return e
		}
	}
	for _, list := range []metalang.ClassList{r.Classes, r.Templates, r.SmartPointers} {
		for _, c := range list {
			for _, e := range c.Enums {
				if e.QualifiedName == qualifiedName {
					return e
				}
			}
		}
	}
	return nil
}

// RejectionsOf returns the rejections recorded for an item.
func (r *Result) RejectionsOf(item string) []Rejection {
	var out []Rejection
	for _, rej := range r.Rejections {
		if rej.Item == item {
			out = append(out, rej)
		}
	}
	return out
}

// Status returns the final state of a declaration. Declarations the build
// never reached are Pending.
func (r *Result) Status(kind ItemKind, item string) Status {
	return r.status[itemKey{kind, item}]
}

// Build builds the metamodel of a declaration tree. Only a missing tree or
// a resolver that cannot be created fail the build; everything else is
// reported in the Result.
func (b *Builder) Build(model *codemodel.Model) (*Result, error) {
	if model == nil {
		return nil, errors.NewInvalidDeclarations("", fmt.Errorf("no declaration tree"))
	}
	b.registry.Freeze()

	res, err := resolver.New(b.registry, resolver.WithLogger(b.logger), resolver.WithCacheSize(b.cacheSize))
	if err != nil {
		return nil, err
	}
	r := newRun(b, res, model)

	b.logger.Info("building metamodel",
		zap.String("run_id", r.runID),
		zap.String("source", model.Source),
		zap.String("api_version", r.apiVersionString()))

	r.indexDeclarations()
	r.buildClasses()
	r.resolveBaseScopes()
	r.buildEnums()
	r.buildMembers()
	r.buildFreeFunctions()
	r.linkInheritance()
	r.instantiateTypedefs()
	r.addUserFunctions()
	r.synthesizeConstructors()
	r.collectConversions()
	r.inheritInterfaceVirtuals()
	r.checkConsistency()

	result := r.finish(b.extraDependencies)
	hits, misses := res.CacheStats()
	b.logger.Info("metamodel built",
		zap.String("run_id", r.runID),
		zap.Int("classes", len(result.Classes)),
		zap.Int("templates", len(result.Templates)),
		zap.Int("global_functions", len(result.GlobalFunctions)),
		zap.Int("rejections", len(result.Rejections)),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses))
	return result, nil
}

// run holds the state of one build.
type run struct {
	runID    string
	registry *typesystem.Registry
	resolver *resolver.Resolver
	logger   *zap.Logger
	model    *codemodel.Model

	// classes maps qualified names of accepted classes; order keeps
	// declaration order.
	classes map[string]*metalang.Class
	order   []*metalang.Class
	byEntry map[*typesystem.TypeEntry]*metalang.Class

	// owners maps each declaration scope to the class its members attach
	// to, nil for the global scope and unregistered namespaces.
	owners map[*codemodel.Scope]*metalang.Class
	// detached marks scopes inside a rejected class.
	detached map[*codemodel.Scope]bool
	// scopes lists the declaration scopes of each class; a namespace may be
	// reopened several times.
	scopes map[*metalang.Class][]*codemodel.Scope
	decls  map[*metalang.Class]*codemodel.Class
	bases  map[*metalang.Class][]*metalang.Class

	instantiations []*instantiation
	enumValues     map[string]int64
	evaluated      map[*codemodel.EnumValue]int64

	globalFunctions []*metalang.Function
	globalEnums     []*metalang.Enum

	matched   map[*typesystem.FunctionModification]bool
	userAdded map[*metalang.Class]bool

	rejections  []Rejection
	diagnostics errors.DiagnosticList
	status      map[itemKey]Status
}

func newRun(b *Builder, res *resolver.Resolver, model *codemodel.Model) *run {
	return &run{
		runID:      uuid.New().String(),
		registry:   b.registry,
		resolver:   res,
		logger:     b.logger,
		model:      model,
		classes:    make(map[string]*metalang.Class),
		byEntry:    make(map[*typesystem.TypeEntry]*metalang.Class),
		owners:     make(map[*codemodel.Scope]*metalang.Class),
		detached:   make(map[*codemodel.Scope]bool),
		scopes:     make(map[*metalang.Class][]*codemodel.Scope),
		decls:      make(map[*metalang.Class]*codemodel.Class),
		bases:      make(map[*metalang.Class][]*metalang.Class),
		enumValues: make(map[string]int64),
		evaluated:  make(map[*codemodel.EnumValue]int64),
		matched:    make(map[*typesystem.FunctionModification]bool),
		userAdded:  make(map[*metalang.Class]bool),
		status:     make(map[itemKey]Status),
	}
}

func (r *run) apiVersion() typesystem.Version {
	return r.registry.APIVersion()
}

func (r *run) apiVersionString() string {
	if v := r.apiVersion(); !v.IsZero() {
		return v.String()
	}
	return ""
}

// reject records a rejection once per item.
func (r *run) reject(rej Rejection) {
	key := itemKey{rej.Kind, rej.Item}
	if r.status[key] == Rejected {
		return
	}
	r.status[key] = Rejected
	r.rejections = append(r.rejections, rej)
	r.diagnostics = append(r.diagnostics, rej.Diagnostic())
	r.logger.Debug("declaration rejected",
		zap.String("kind", rej.Kind.String()),
		zap.String("item", rej.Item),
		zap.String("reason", rej.Reason.String()),
		zap.String("detail", rej.Detail))
}

func (r *run) accept(kind ItemKind, item string) {
	r.status[itemKey{kind, item}] = Resolved
}

func (r *run) warn(d *errors.Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
	r.logger.Debug("consistency warning",
		zap.String("code", string(d.Code)),
		zap.String("item", d.Item),
		zap.String("message", d.Message))
}

// register makes an accepted class known to later phases.
func (r *run) register(c *metalang.Class, owner *metalang.Class) {
	r.classes[c.QualifiedName] = c
	r.order = append(r.order, c)
	if _, ok := r.byEntry[c.Entry]; !ok {
		r.byEntry[c.Entry] = c
	}
	if owner != nil {
		owner.AddInnerClass(c)
	}
	r.accept(ClassItem, c.QualifiedName)
}

// findClass looks up an accepted class by a name written inside scope.
func (r *run) findClass(name string, scope []string) *metalang.Class {
	for _, candidate := range r.resolver.Candidates(name, scope) {
		if c, ok := r.classes[candidate]; ok {
			return c
		}
	}
	return nil
}

// classOf returns the class a resolved type refers to, ignoring qualifiers.
func (r *run) classOf(t *metalang.Type) *metalang.Class {
	if t == nil || t.Entry == nil || t.ArrayElement != nil {
		return nil
	}
	return r.byEntry[t.Entry]
}

// lookupEntry classifies the registry state of a declaration name into an
// entry or a rejection reason.
func (r *run) lookupEntry(name string) (*typesystem.TypeEntry, Reason, string, bool) {
	e, status := r.registry.Lookup(name)
	switch status {
	case typesystem.Found:
		return e, 0, "", true
	case typesystem.VersionExcluded:
		return nil, APIIncompatible, "not in API version " + r.apiVersionString(), false
	case typesystem.Dropped:
		return nil, GenerationDisabled, "dropped by drop-type-entries", false
	}
	return nil, NotInTypeSystem, "", false
}

// eachScope calls fn for every scope of the tree, parents first.
func (r *run) eachScope(fn func(s *codemodel.Scope)) {
	var walk func(s *codemodel.Scope)
	walk = func(s *codemodel.Scope) {
		fn(s)
		for _, ns := range s.Namespaces {
			walk(&ns.Scope)
		}
		for _, c := range s.Classes {
			walk(&c.Scope)
		}
	}
	walk(&r.model.Scope)
}

func qualify(scope []string, name string) string {
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, "::") + "::" + name
}

// finish sorts the accepted classes into the result lists.
func (r *run) finish(extraDependencies map[string][]string) *Result {
	var classes, templates, smartPointers []*metalang.Class
	for _, c := range r.order {
		switch {
		case c.Entry.IsSmartPointer():
			smartPointers = append(smartPointers, c)
		case c.Entry.IsContainer() || (c.IsTemplate() && !c.TypedefInstantiation):
			templates = append(templates, c)
		default:
			classes = append(classes, c)
		}
	}

	sorted := toposort.Sort(r.order, extraDependencies)
	position := make(map[*metalang.Class]int, len(sorted.Classes))
	for i, c := range sorted.Classes {
		position[c] = i
	}
	byPosition := func(list []*metalang.Class) metalang.ClassList {
		out := make(metalang.ClassList, len(list))
		copy(out, list)
		sortByPosition(out, position)
		return out
	}
	for _, e := range sorted.Broken {
		r.logger.Debug("dependency cycle broken",
			zap.String("from", e.From),
			zap.String("to", e.To),
			zap.String("strength", e.Strength.String()))
	}

	return &Result{
		RunID:              r.runID,
		APIVersion:         r.apiVersionString(),
		Classes:            byPosition(classes),
		Templates:          byPosition(templates),
		SmartPointers:      byPosition(smartPointers),
		GlobalFunctions:    r.globalFunctions,
		GlobalEnums:        r.globalEnums,
		GlobalCodeSnips:    r.registry.GlobalCodeSnips(),
		Rejections:         r.rejections,
		Diagnostics:        r.diagnostics,
		BrokenDependencies: sorted.Broken,
		status:             r.status,
	}
}

func sortByPosition(list metalang.ClassList, position map[*metalang.Class]int) {
	sort.SliceStable(list, func(i, j int) bool {
		return position[list[i]] < position[list[j]]
	})
}
