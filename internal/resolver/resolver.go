// Package resolver turns raw declared types into resolved metamodel types.
//
// Names are looked up nearest scope first: the enclosing class and its
// bases, then each enclosing namespace outwards, then the global scope.
// Results are memoized per scope and spelling.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// DefaultCacheSize is the number of resolved spellings kept in memory.
const DefaultCacheSize = 4096

const maxTypedefDepth = 32

type typedefFact struct {
	info  codemodel.TypeInfo
	scope []string
}

// Resolver resolves codemodel.TypeInfo values against a frozen registry
// plus the scope facts the builder discovers while walking declarations.
type Resolver struct {
	registry *typesystem.Registry
	logger   *zap.Logger
	cache    *lru.Cache[string, *metalang.Type]

	locals     map[string]*typesystem.TypeEntry
	constants  map[string]*typesystem.TypeEntry
	typedefs   map[string]typedefFact
	enumValues map[string]int64
	bases      map[string][]string

	hits   int
	misses int
}

// Option configures a Resolver.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	cacheSize int
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCacheSize sets the number of memoized resolutions.
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// New creates a resolver over registry.
func New(registry *typesystem.Registry, opts ...Option) (*Resolver, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	cache, err := lru.New[string, *metalang.Type](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}
	return &Resolver{
		registry:   registry,
		logger:     o.logger,
		cache:      cache,
		locals:     make(map[string]*typesystem.TypeEntry),
		constants:  make(map[string]*typesystem.TypeEntry),
		typedefs:   make(map[string]typedefFact),
		enumValues: make(map[string]int64),
		bases:      make(map[string][]string),
	}, nil
}

// Registry returns the registry the resolver reads.
func (r *Resolver) Registry() *typesystem.Registry {
	return r.registry
}

// AddLocalEntry makes an entry that is not part of the registry resolvable
// under its qualified name, for example the template parameter "QList::T".
func (r *Resolver) AddLocalEntry(e *typesystem.TypeEntry) {
	r.locals[e.QualifiedName()] = e
	r.cache.Purge()
}

// AddTypedef records "typedef info qualifiedName" declared in scope.
func (r *Resolver) AddTypedef(qualifiedName string, info codemodel.TypeInfo, scope []string) {
	r.typedefs[qualifiedName] = typedefFact{info: info.Clone(), scope: append([]string(nil), scope...)}
	r.cache.Purge()
}

// Typedef returns the aliased type of a recorded typedef.
func (r *Resolver) Typedef(qualifiedName string) (codemodel.TypeInfo, []string, bool) {
	fact, ok := r.typedefs[qualifiedName]
	return fact.info, fact.scope, ok
}

// AddEnumValue records the value of a qualified enumerator.
func (r *Resolver) AddEnumValue(qualifiedName string, value int64) {
	r.enumValues[qualifiedName] = value
	r.cache.Purge()
}

// SetBaseScopes records the qualified base classes of a class so names
// inherited from a base resolve inside the derived class.
func (r *Resolver) SetBaseScopes(class string, bases []string) {
	r.bases[class] = append([]string(nil), bases...)
	r.cache.Purge()
}

// CacheStats returns the number of cache hits and misses.
func (r *Resolver) CacheStats() (hits, misses int) {
	return r.hits, r.misses
}

// LookupEnumValue finds an enumerator by a possibly qualified name, nearest
// scope first. It returns the value and the qualified name it matched.
func (r *Resolver) LookupEnumValue(name string, scope []string) (int64, string, bool) {
	for _, candidate := range r.Candidates(name, scope) {
		if v, ok := r.enumValues[candidate]; ok {
			return v, candidate, true
		}
	}
	return 0, "", false
}

// Candidates lists the qualified names name may refer to from scope, nearest
// first. A qualified name is never shortened; it is only prefixed.
func (r *Resolver) Candidates(name string, scope []string) []string {
	name = strings.TrimPrefix(name, "::")
	seen := make(map[string]bool)
	var out []string
	add := func(prefix string) {
		c := name
		if prefix != "" {
			c = prefix + "::" + name
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for i := len(scope); i > 0; i-- {
		prefix := strings.Join(scope[:i], "::")
		add(prefix)
		for _, base := range r.baseScopes(prefix) {
			add(base)
		}
	}
	add("")
	return out
}

func (r *Resolver) baseScopes(class string) []string {
	var out []string
	seen := map[string]bool{class: true}
	queue := append([]string(nil), r.bases[class]...)
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
		queue = append(queue, r.bases[b]...)
	}
	return out
}

// Resolve resolves info as written inside scope, the qualified name parts
// of the enclosing class or namespace. Failures are *ResolutionError.
func (r *Resolver) Resolve(info codemodel.TypeInfo, scope []string) (*metalang.Type, error) {
	key := strings.Join(scope, "::") + "|" + info.String()
	if t, ok := r.cache.Get(key); ok {
		r.hits++
		return t.Clone(), nil
	}
	r.misses++

	t, err := r.resolve(info, scope, 0)
	if err != nil {
		r.logger.Debug("type not resolved",
			zap.String("type", info.String()),
			zap.Strings("scope", scope),
			zap.Error(err))
		return nil, err
	}
	r.cache.Add(key, t)
	return t.Clone(), nil
}

// ResolveSpelling parses and resolves a type spelling.
func (r *Resolver) ResolveSpelling(spelling string, scope []string) (*metalang.Type, error) {
	info, err := codemodel.ParseTypeInfo(spelling)
	if err != nil {
		return nil, notFound(spelling, spelling, err.Error())
	}
	return r.Resolve(info, scope)
}

func (r *Resolver) resolve(info codemodel.TypeInfo, scope []string, depth int) (*metalang.Type, error) {
	spelling := info.String()
	if depth > maxTypedefDepth {
		return nil, notFound(spelling, info.QualifiedName(), "typedef chain too deep")
	}
	if info.IsEmpty() {
		return nil, notFound(spelling, "", "no type written")
	}

	if n := len(info.ArrayDimensions); n > 0 {
		element := info.Clone()
		dim := element.ArrayDimensions[0]
		element.ArrayDimensions = element.ArrayDimensions[1:]
		elemType, err := r.resolve(element, scope, depth)
		if err != nil {
			return nil, err
		}
		count, err := r.arraySize(dim, scope)
		if err != nil {
			return nil, &ResolutionError{
				Reason:   UnresolvableArraySize,
				Spelling: spelling,
				Subject:  dim,
				cause:    err,
			}
		}
		return &metalang.Type{ArrayElement: elemType, ArrayCount: count}, nil
	}

	if info.FunctionPointer {
		void, _ := r.registry.Lookup("void")
		return &metalang.Type{Entry: void, Indirections: []codemodel.Indirection{codemodel.Pointer}}, nil
	}

	name := info.QualifiedName()
	for _, candidate := range r.Candidates(name, scope) {
		if e, ok := r.locals[candidate]; ok {
			return r.fromEntry(e, info, scope, depth)
		}

		e, status := r.registry.Lookup(candidate)
		switch status {
		case typesystem.Found:
			if e.IsFunction() || e.IsNamespace() {
				break
			}
			return r.fromEntry(e, info, scope, depth)
		case typesystem.VersionExcluded:
			return nil, &ResolutionError{
				Reason:   APIVersionExcluded,
				Spelling: spelling,
				Subject:  candidate,
				Version:  r.registry.APIVersion().String(),
			}
		case typesystem.Dropped:
			return nil, notFound(spelling, candidate, "dropped by drop-type-entries")
		}

		if fact, ok := r.typedefs[candidate]; ok {
			return r.followTypedef(candidate, fact, info, depth)
		}
	}
	return nil, notFound(spelling, name, "")
}

func (r *Resolver) followTypedef(alias string, fact typedefFact, use codemodel.TypeInfo, depth int) (*metalang.Type, error) {
	target, err := r.resolve(fact.info, fact.scope, depth+1)
	if err != nil {
		return nil, err
	}
	if target.ArrayElement == nil && target.Entry != nil && target.Entry.IsPrimitive() &&
		len(target.Indirections) == 0 {
		target.Alias = alias
	}
	target.Const = target.Const || use.Const
	target.Volatile = target.Volatile || use.Volatile
	target.Indirections = append(target.Indirections, use.Indirections...)
	if use.Reference != codemodel.NoReference {
		target.Reference = use.Reference
	}
	return target, nil
}

func (r *Resolver) fromEntry(e *typesystem.TypeEntry, info codemodel.TypeInfo, scope []string, depth int) (*metalang.Type, error) {
	t := &metalang.Type{
		Entry:        e,
		Const:        info.Const,
		Volatile:     info.Volatile,
		Reference:    info.Reference,
		Indirections: append([]codemodel.Indirection(nil), info.Indirections...),
	}
	for _, arg := range info.Instantiations {
		inst, err := r.templateArgument(arg, scope, depth)
		if err != nil {
			return nil, &ResolutionError{
				Reason:   UnresolvableTemplateArgument,
				Spelling: info.String(),
				Subject:  arg.String(),
				cause:    err,
			}
		}
		t.Instantiations = append(t.Instantiations, inst)
	}

	// A typedef-type carries the arguments of the instantiation it names.
	if e.IsTypedef() && len(t.Instantiations) == 0 && e.Source != "" {
		source, err := codemodel.ParseTypeInfo(e.Source)
		if err != nil {
			return nil, notFound(info.String(), e.Source, err.Error())
		}
		target, err := r.resolve(source, entryScope(e), depth+1)
		if err != nil {
			return nil, err
		}
		t.Instantiations = target.Instantiations
	}
	return t, nil
}

func entryScope(e *typesystem.TypeEntry) []string {
	name := e.QualifiedName()
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return nil
	}
	return strings.Split(name[:i], "::")
}

// templateArgument resolves a type, an integer literal or an enum value.
func (r *Resolver) templateArgument(arg codemodel.TypeInfo, scope []string, depth int) (*metalang.Type, error) {
	if arg.IsNumericLiteral() {
		return &metalang.Type{Entry: r.constant(arg.Name[0])}, nil
	}
	t, err := r.resolve(arg, scope, depth+1)
	if err == nil {
		return t, nil
	}
	if len(arg.Indirections) == 0 && !arg.Const && len(arg.Instantiations) == 0 {
		if v, qualified, ok := r.LookupEnumValue(arg.QualifiedName(), scope); ok {
			e := typesystem.NewTypeEntry(typesystem.EnumValueEntry, qualified)
			e.Value = strconv.FormatInt(v, 10)
			return &metalang.Type{Entry: e}, nil
		}
	}
	return nil, err
}

func (r *Resolver) constant(literal string) *typesystem.TypeEntry {
	if e, ok := r.constants[literal]; ok {
		return e
	}
	e := typesystem.NewTypeEntry(typesystem.ConstantValueEntry, literal)
	if v, err := codemodel.ParseIntegerLiteral(literal); err == nil {
		e.Value = strconv.FormatInt(v, 10)
	}
	r.constants[literal] = e
	return e
}

// arraySize returns -1 for "[]", the literal value or an evaluated enum
// expression.
func (r *Resolver) arraySize(dim string, scope []string) (int, error) {
	dim = strings.TrimSpace(dim)
	if dim == "" {
		return -1, nil
	}
	v, err := codemodel.ParseIntegerLiteral(dim)
	if err != nil {
		v, err = r.EvaluateExpression(dim, scope)
		if err != nil {
			return 0, err
		}
	}
	if v < 0 {
		return 0, fmt.Errorf("negative array size %d", v)
	}
	return int(v), nil
}
