package typesystem

import (
	"regexp"
	"strings"

	"github.com/conduit-lang/apiextractor/internal/errors"
)

// LookupStatus tells why a name did or did not resolve to an entry.
type LookupStatus int

const (
	// Found means a visible entry exists
	Found LookupStatus = iota
	// NotFound means no entry is registered under the name
	NotFound
	// VersionExcluded means entries exist, none for the active API version
	VersionExcluded
	// Dropped means the name or an enclosing name is on the drop list
	Dropped
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case VersionExcluded:
		return "version-excluded"
	case Dropped:
		return "dropped"
	}
	return "not-found"
}

// Rejection is a rejection rule. Empty fields match anything; a value
// starting with "^" is a regular expression.
type Rejection struct {
	ClassName    string
	FunctionName string
	FieldName    string
	EnumName     string

	patterns map[string]*regexp.Regexp
}

// NewRejection compiles the pattern fields of a rejection rule.
func NewRejection(className, functionName, fieldName, enumName string) (*Rejection, error) {
	r := &Rejection{
		ClassName:    className,
		FunctionName: functionName,
		FieldName:    fieldName,
		EnumName:     enumName,
		patterns:     make(map[string]*regexp.Regexp),
	}
	for _, v := range []string{className, functionName, fieldName, enumName} {
		if strings.HasPrefix(v, "^") {
			re, err := regexp.Compile(v)
			if err != nil {
				return nil, err
			}
			r.patterns[v] = re
		}
	}
	return r, nil
}

func (r *Rejection) match(pattern, value string) bool {
	switch {
	case pattern == "" || pattern == "*":
		return true
	case r.patterns[pattern] != nil:
		return r.patterns[pattern].MatchString(value)
	}
	return pattern == value
}

// RejectsClass reports whether the rule rejects a whole class.
func (r *Rejection) RejectsClass(className string) bool {
	return r.FunctionName == "" && r.FieldName == "" && r.EnumName == "" &&
		r.ClassName != "" && r.match(r.ClassName, className)
}

// RejectsFunction reports whether the rule rejects a function of a class
// (className is empty for free functions).
func (r *Rejection) RejectsFunction(className, functionName string) bool {
	return r.FunctionName != "" && r.match(r.ClassName, className) &&
		r.match(r.FunctionName, functionName)
}

// RejectsField reports whether the rule rejects a field.
func (r *Rejection) RejectsField(className, fieldName string) bool {
	return r.FieldName != "" && r.match(r.ClassName, className) && r.match(r.FieldName, fieldName)
}

// RejectsEnum reports whether the rule rejects an enum.
func (r *Rejection) RejectsEnum(className, enumName string) bool {
	return r.EnumName != "" && r.match(r.ClassName, className) && r.match(r.EnumName, enumName)
}

// Registry is the table of type entries and global rules for one build. It
// is configured and loaded, then frozen before the build reads it.
type Registry struct {
	entries map[string][]*TypeEntry
	order   []*TypeEntry

	apiVersion Version
	dropped    map[string]bool
	frozen     bool

	rejections      []*Rejection
	globalFunctions []*AddedFunction
	globalMods      []*FunctionModification
	globalSnips     []CodeSnip
}

var builtinPrimitives = []string{
	"bool", "char", "signed char", "unsigned char", "wchar_t", "char8_t", "char16_t", "char32_t",
	"short", "unsigned short", "int", "unsigned int", "long", "unsigned long",
	"long long", "unsigned long long", "float", "double", "long double",
	"std::nullptr_t", "std::size_t", "size_t",
}

// NewRegistry creates a registry holding the builtin entries: void, the
// varargs ellipsis and the C++ fundamental types.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string][]*TypeEntry),
		dropped: make(map[string]bool),
	}
	for _, e := range []*TypeEntry{NewTypeEntry(VoidEntry, "void"), NewTypeEntry(VarargsEntry, "...")} {
		e.builtin = true
		r.add(e)
	}
	for _, name := range builtinPrimitives {
		e := NewTypeEntry(PrimitiveEntry, name)
		e.builtin = true
		r.add(e)
	}
	return r
}

func (r *Registry) add(e *TypeEntry) {
	r.entries[e.name] = append(r.entries[e.name], e)
	r.order = append(r.order, e)
}

func (r *Registry) checkMutable(operation string) error {
	if r.frozen {
		return errors.NewRegistryFrozen(operation)
	}
	return nil
}

// Register adds an entry. Registering the same entry twice is a no-op. A
// different entry with the same name and an overlapping version range is an
// error; disjoint ranges register versioned variants. A ruleset entry
// replaces a builtin of the same name.
func (r *Registry) Register(e *TypeEntry) error {
	if err := r.checkMutable("register " + e.name); err != nil {
		return err
	}
	existing := r.entries[e.name]
	for i, other := range existing {
		if other == e {
			return nil
		}
		if other.builtin {
			existing[i] = e
			r.replaceInOrder(other, e)
			return nil
		}
		if other.Versions.Overlaps(e.Versions) {
			return errors.NewDuplicateTypeEntry(e.name,
				other.Kind.String()+" ("+other.Versions.String()+") in "+fileOrUnknown(other.File),
				e.Kind.String()+" ("+e.Versions.String()+") in "+fileOrUnknown(e.File))
		}
	}
	r.add(e)
	return nil
}

// anyEntry returns the first entry registered under name, ignoring versions
// and the drop list.
func (r *Registry) anyEntry(name string) *TypeEntry {
	if variants := r.entries[name]; len(variants) > 0 {
		return variants[0]
	}
	return nil
}

func fileOrUnknown(file string) string {
	if file == "" {
		return "<builtin>"
	}
	return file
}

func (r *Registry) replaceInOrder(old, e *TypeEntry) {
	for i, cur := range r.order {
		if cur == old {
			r.order[i] = e
			return
		}
	}
}

// SetAPIVersion sets the active API version.
func (r *Registry) SetAPIVersion(v Version) error {
	if err := r.checkMutable("set the API version"); err != nil {
		return err
	}
	r.apiVersion = v
	return nil
}

// APIVersion returns the active API version; zero when none is set.
func (r *Registry) APIVersion() Version {
	return r.apiVersion
}

// SetDropTypeEntries replaces the drop list. Dropped names and everything
// nested under them are not found.
func (r *Registry) SetDropTypeEntries(names []string) error {
	if err := r.checkMutable("set dropped type entries"); err != nil {
		return err
	}
	r.dropped = make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			r.dropped[n] = true
		}
	}
	return nil
}

// DroppedEntries returns the drop list.
func (r *Registry) DroppedEntries() []string {
	out := make([]string, 0, len(r.dropped))
	for n := range r.dropped {
		out = append(out, n)
	}
	return out
}

// UnmatchedDropEntries returns drop list names that match no registered
// entry.
func (r *Registry) UnmatchedDropEntries() []string {
	var out []string
	for n := range r.dropped {
		if len(r.entries[n]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// IsDropped reports whether the qualified name, or a scope enclosing it, is
// on the drop list.
func (r *Registry) IsDropped(name string) bool {
	if len(r.dropped) == 0 {
		return false
	}
	for {
		if r.dropped[name] {
			return true
		}
		i := strings.LastIndex(name, "::")
		if i < 0 {
			return false
		}
		name = name[:i]
	}
}

// Freeze ends configuration. Later calls to Register, SetAPIVersion,
// SetDropTypeEntries and the global rule setters fail.
func (r *Registry) Freeze() {
	r.frozen = true
}

// IsFrozen reports whether Freeze was called.
func (r *Registry) IsFrozen() bool {
	return r.frozen
}

// Lookup finds the entry visible for the active API version.
func (r *Registry) Lookup(name string) (*TypeEntry, LookupStatus) {
	return r.lookup(name, nil)
}

func (r *Registry) lookup(name string, accept func(*TypeEntry) bool) (*TypeEntry, LookupStatus) {
	variants := r.entries[name]
	if len(variants) == 0 {
		return nil, NotFound
	}
	if r.IsDropped(name) {
		return nil, Dropped
	}
	status := NotFound
	for _, e := range variants {
		if accept != nil && !accept(e) {
			continue
		}
		if !r.visible(e) {
			status = VersionExcluded
			continue
		}
		return e, Found
	}
	return nil, status
}

// visible checks the entry and every enclosing entry against the API version.
func (r *Registry) visible(e *TypeEntry) bool {
	for cur := e; cur != nil; cur = cur.Parent {
		if !cur.Versions.Contains(r.apiVersion) {
			return false
		}
	}
	return true
}

// Find returns the visible entry for a qualified name, or nil.
func (r *Registry) Find(name string) *TypeEntry {
	e, _ := r.Lookup(name)
	return e
}

func (r *Registry) findKind(name string, accept func(*TypeEntry) bool) *TypeEntry {
	e, _ := r.lookup(name, accept)
	return e
}

// FindPrimitive returns a primitive entry.
func (r *Registry) FindPrimitive(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsPrimitive)
}

// FindComplex returns an entry whose declarations become classes.
func (r *Registry) FindComplex(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsComplex)
}

// FindContainer returns a container entry.
func (r *Registry) FindContainer(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsContainer)
}

// FindSmartPointer returns a smart pointer entry.
func (r *Registry) FindSmartPointer(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsSmartPointer)
}

// FindEnum returns an enum entry.
func (r *Registry) FindEnum(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsEnum)
}

// FindFlags returns a flags entry.
func (r *Registry) FindFlags(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsFlags)
}

// FindFunction returns the function entry registering a free function.
func (r *Registry) FindFunction(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsFunction)
}

// FindNamespace returns a namespace entry.
func (r *Registry) FindNamespace(name string) *TypeEntry {
	return r.findKind(name, (*TypeEntry).IsNamespace)
}

// FindEnumByValue returns the enum entry of an anonymous enum identified by
// one of its enumerators. scope is the qualified name of the enclosing scope.
func (r *Registry) FindEnumByValue(scope, value string) *TypeEntry {
	for _, e := range r.order {
		if e.Kind != EnumEntry || e.IdentifiedByValue != value {
			continue
		}
		if parentName(e.name) != scope {
			continue
		}
		if found, status := r.lookup(e.name, (*TypeEntry).IsEnum); status == Found && found == e {
			return e
		}
	}
	return nil
}

func parentName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[:i]
	}
	return ""
}

// Entries returns every visible, non-dropped entry in registration order.
func (r *Registry) Entries() []*TypeEntry {
	var out []*TypeEntry
	for _, e := range r.order {
		if r.visible(e) && !r.IsDropped(e.name) {
			out = append(out, e)
		}
	}
	return out
}

// AddRejection adds a rejection rule.
func (r *Registry) AddRejection(rej *Rejection) error {
	if err := r.checkMutable("add a rejection"); err != nil {
		return err
	}
	r.rejections = append(r.rejections, rej)
	return nil
}

// Rejections returns the rejection rules.
func (r *Registry) Rejections() []*Rejection {
	return r.rejections
}

// IsClassRejected reports whether a rejection rule rejects the class.
func (r *Registry) IsClassRejected(className string) bool {
	for _, rej := range r.rejections {
		if rej.RejectsClass(className) {
			return true
		}
	}
	return false
}

// IsFunctionRejected reports whether a rejection rule rejects the function.
func (r *Registry) IsFunctionRejected(className, functionName string) bool {
	for _, rej := range r.rejections {
		if rej.RejectsFunction(className, functionName) {
			return true
		}
	}
	return false
}

// IsFieldRejected reports whether a rejection rule rejects the field.
func (r *Registry) IsFieldRejected(className, fieldName string) bool {
	for _, rej := range r.rejections {
		if rej.RejectsField(className, fieldName) {
			return true
		}
	}
	return false
}

// IsEnumRejected reports whether a rejection rule rejects the enum.
func (r *Registry) IsEnumRejected(className, enumName string) bool {
	for _, rej := range r.rejections {
		if rej.RejectsEnum(className, enumName) {
			return true
		}
	}
	return false
}

// AddGlobalFunction adds a module scope add-function rule.
func (r *Registry) AddGlobalFunction(f *AddedFunction) error {
	if err := r.checkMutable("add a global function"); err != nil {
		return err
	}
	r.globalFunctions = append(r.globalFunctions, f)
	return nil
}

// GlobalAddedFunctions returns module scope added functions.
func (r *Registry) GlobalAddedFunctions() []*AddedFunction {
	return r.globalFunctions
}

// AddGlobalModification adds a modify-function rule for free functions.
func (r *Registry) AddGlobalModification(m *FunctionModification) error {
	if err := r.checkMutable("add a global modification"); err != nil {
		return err
	}
	r.globalMods = append(r.globalMods, m)
	return nil
}

// GlobalModifications returns modify-function rules for free functions.
func (r *Registry) GlobalModifications() []*FunctionModification {
	return r.globalMods
}

// AddGlobalCodeSnip adds module scope injected code.
func (r *Registry) AddGlobalCodeSnip(snip CodeSnip) error {
	if err := r.checkMutable("add global code"); err != nil {
		return err
	}
	r.globalSnips = append(r.globalSnips, snip)
	return nil
}

// GlobalCodeSnips returns module scope injected code.
func (r *Registry) GlobalCodeSnips() []CodeSnip {
	return r.globalSnips
}
