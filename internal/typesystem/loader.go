package typesystem

import (
	"bytes"
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
)

// node is a generic XML element. Child order is preserved.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr
	Children []node
	Text     string
	// Line is where the start tag ends.
	Line int
}

func (n *node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.XMLName = start.Name
	n.Attrs = start.Attr
	n.Line, _ = d.InputPos()
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var child node
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			n.Text += string(t)
		case xml.EndElement:
			return nil
		}
	}
}

// at places a diagnostic raised while reading n on n's line. Diagnostics
// that already carry a line, or belong to another file, are left alone.
func at(ctx loadContext, n *node, err error) error {
	var d *errors.Diagnostic
	if !stderrors.As(err, &d) || d.Location.Line != 0 {
		return err
	}
	if d.Location.File != "" && d.Location.File != ctx.file {
		return err
	}
	d.Location.File = ctx.file
	d.Location.Line = n.Line
	return err
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *node) hasAttr(name string) bool {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}

// Loader reads typesystem XML files into a Registry.
type Loader struct {
	registry    *Registry
	logger      *zap.Logger
	searchPaths []string
	loaded      map[string]bool
}

// NewLoader creates a loader that fills registry. Includes that are not found
// next to the including file are searched for in searchPaths.
func NewLoader(registry *Registry, logger *zap.Logger, searchPaths ...string) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		registry:    registry,
		logger:      logger,
		searchPaths: searchPaths,
		loaded:      make(map[string]bool),
	}
}

// LoadFile is a shorthand for NewLoader(registry, logger, searchPaths...).LoadFile(path).
func LoadFile(registry *Registry, path string, logger *zap.Logger, searchPaths ...string) error {
	return NewLoader(registry, logger, searchPaths...).LoadFile(path)
}

// loadContext carries what nested nodes inherit from their ancestors.
type loadContext struct {
	file          string
	dir           string
	pkg           string
	scope         string
	parent        *TypeEntry
	versions      VersionRange
	referenceOnly bool
}

func (c loadContext) qualify(name string) string {
	if c.scope == "" {
		return name
	}
	return c.scope + "::" + name
}

// LoadFile loads a typesystem file and its includes. A file that was already
// loaded is skipped, which also breaks include cycles.
func (l *Loader) LoadFile(path string) error {
	return l.loadFile(path, false)
}

func (l *Loader) loadFile(path string, referenceOnly bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if l.loaded[abs] {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewRulesetNotFound(path, filepath.Base(path), nil).WithCause(err)
		}
		return errors.NewMalformedRuleset(path, err)
	}
	defer f.Close()

	l.loaded[abs] = true
	return l.load(f, path, referenceOnly)
}

// LoadedFiles returns the absolute paths of every file read so far,
// includes included, sorted.
func (l *Loader) LoadedFiles() []string {
	files := make([]string, 0, len(l.loaded))
	for f := range l.loaded {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Load reads a typesystem document. file names the document in diagnostics
// and anchors relative includes.
func (l *Loader) Load(r io.Reader, file string) error {
	return l.load(r, file, false)
}

func (l *Loader) load(r io.Reader, file string, referenceOnly bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.NewMalformedRuleset(file, err)
	}
	var root node
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		d := errors.NewMalformedRuleset(file, err)
		var syntax *xml.SyntaxError
		if stderrors.As(err, &syntax) {
			d.Location.Line = syntax.Line
		}
		return d
	}
	if root.XMLName.Local != "typesystem" {
		return errors.NewMalformedRuleset(file,
			fmt.Errorf("root element is <%s>, expected <typesystem>", root.XMLName.Local))
	}

	ctx := loadContext{
		file:          file,
		dir:           filepath.Dir(file),
		pkg:           root.attr("package"),
		referenceOnly: referenceOnly,
	}
	if ctx.versions, err = l.versionRange(ctx, &root); err != nil {
		return at(ctx, &root, err)
	}

	before := len(l.registry.order)
	for i := range root.Children {
		if err := l.typesystemChild(ctx, &root.Children[i]); err != nil {
			return at(ctx, &root.Children[i], err)
		}
	}
	l.logger.Debug("loaded typesystem",
		zap.String("file", file),
		zap.String("package", ctx.pkg),
		zap.Bool("reference_only", referenceOnly),
		zap.Int("entries", len(l.registry.order)-before))
	return nil
}

func (l *Loader) versionRange(ctx loadContext, n *node) (VersionRange, error) {
	since, until := n.attr("since"), n.attr("until")
	if _, err := ParseVersion(since); err != nil {
		return VersionRange{}, errors.NewInvalidVersion(ctx.file, "since", since).WithCause(err)
	}
	if _, err := ParseVersion(until); err != nil {
		return VersionRange{}, errors.NewInvalidVersion(ctx.file, "until", until).WithCause(err)
	}
	r, err := ParseVersionRange(since, until)
	if err != nil {
		return VersionRange{}, errors.NewInvalidVersion(ctx.file, "since", since).WithCause(err)
	}
	return r.Intersect(ctx.versions), nil
}

func (l *Loader) typesystemChild(ctx loadContext, n *node) error {
	switch n.XMLName.Local {
	case "load-typesystem":
		return l.include(ctx, n)
	case "rejection":
		return l.rejection(ctx, n)
	case "add-function":
		f, err := l.addedFunction(ctx, n)
		if err != nil || f == nil {
			return err
		}
		return l.registry.AddGlobalFunction(f)
	case "modify-function":
		m, err := l.functionModification(ctx, n)
		if err != nil {
			return err
		}
		return l.registry.AddGlobalModification(m)
	case "inject-code":
		snip, err := l.codeSnip(ctx, n)
		if err != nil {
			return err
		}
		return l.registry.AddGlobalCodeSnip(snip)
	case "function":
		return l.function(ctx, n)
	case "template", "suppress-warning", "extra-includes", "include", "system-include":
		return nil
	}
	return l.typeEntry(ctx, n)
}

func (l *Loader) include(ctx loadContext, n *node) error {
	name := n.attr("name")
	if name == "" {
		return errors.NewInvalidAttribute(ctx.file, "load-typesystem", "name", "is required")
	}
	generate, err := boolAttr(ctx, n, "generate", true)
	if err != nil {
		return err
	}

	candidates := []string{filepath.Join(ctx.dir, name)}
	if filepath.IsAbs(name) {
		candidates = []string{name}
	}
	for _, dir := range l.searchPaths {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return l.loadFile(path, ctx.referenceOnly || !generate)
		}
	}
	return errors.NewRulesetNotFound(ctx.file, name, candidates)
}

func (l *Loader) rejection(ctx loadContext, n *node) error {
	rej, err := NewRejection(n.attr("class"), n.attr("function-name"), n.attr("field-name"), n.attr("enum-name"))
	if err != nil {
		return errors.NewInvalidPattern(ctx.file, n.attr("class"), err)
	}
	return l.registry.AddRejection(rej)
}

var complexKinds = map[string]EntryKind{
	"primitive-type":     PrimitiveEntry,
	"value-type":         ValueEntry,
	"object-type":        ObjectEntry,
	"interface-type":     InterfaceEntry,
	"namespace-type":     NamespaceEntry,
	"container-type":     ContainerEntry,
	"smart-pointer-type": SmartPointerEntry,
	"typedef-type":       TypedefEntry,
	"custom-type":        CustomEntry,
	"enum-type":          EnumEntry,
}

func (l *Loader) typeEntry(ctx loadContext, n *node) error {
	element := n.XMLName.Local
	kind, ok := complexKinds[element]
	if !ok {
		return errors.NewMalformedRuleset(ctx.file, fmt.Errorf("unknown element <%s>", element))
	}
	if kind == EnumEntry {
		return l.enumType(ctx, n)
	}

	name := n.attr("name")
	if name == "" {
		return errors.NewInvalidAttribute(ctx.file, element, "name", "is required")
	}
	e := NewTypeEntry(kind, ctx.qualify(name))
	if err := l.commonAttributes(ctx, n, e); err != nil {
		return err
	}

	switch kind {
	case PrimitiveEntry:
		e.DefaultConstructor = n.attr("default-constructor")
	case ValueEntry, ObjectEntry, InterfaceEntry:
		e.DefaultConstructor = n.attr("default-constructor")
		if n.hasAttr("copyable") {
			copyable, err := boolAttr(ctx, n, "copyable", true)
			if err != nil {
				return err
			}
			e.Copyable = NonCopyableSet
			if copyable {
				e.Copyable = CopyableSet
			}
		}
		polymorphic, err := boolAttr(ctx, n, "polymorphic-base", false)
		if err != nil {
			return err
		}
		e.Polymorphic = polymorphic
	case ContainerEntry:
		kindName := n.attr("type")
		if kindName == "" {
			kindName = "list"
		}
		ck, ok := containerKinds[kindName]
		if !ok {
			return errors.NewInvalidAttribute(ctx.file, element, "type", fmt.Sprintf("has unknown container kind %q", kindName))
		}
		e.ContainerKind = ck
	case SmartPointerEntry:
		e.SmartPointerGetter = n.attr("getter")
		e.RefCountMethod = n.attr("ref-count-method")
		if e.SmartPointerGetter == "" {
			e.SmartPointerGetter = "get"
		}
	case TypedefEntry:
		e.Source = strings.TrimSpace(n.attr("source"))
		if e.Source == "" {
			return errors.NewInvalidAttribute(ctx.file, element, "source", "is required")
		}
		if _, err := codemodel.ParseTypeInfo(e.Source); err != nil {
			return errors.NewInvalidTypeSpelling(ctx.file, e.Source, err)
		}
	}

	if err := l.registry.Register(e); err != nil {
		return err
	}

	inner := ctx
	inner.parent = e
	inner.scope = e.QualifiedName()
	inner.versions = e.Versions
	for i := range n.Children {
		if err := l.entryChild(inner, e, &n.Children[i]); err != nil {
			return at(inner, &n.Children[i], err)
		}
	}
	return nil
}

func (l *Loader) commonAttributes(ctx loadContext, n *node, e *TypeEntry) error {
	versions, err := l.versionRange(ctx, n)
	if err != nil {
		return err
	}
	e.Versions = versions
	e.File = ctx.file
	e.Package = ctx.pkg
	e.ReferenceOnly = ctx.referenceOnly
	e.Parent = ctx.parent
	if e.Parent == nil {
		e.Parent = l.registry.anyEntry(parentName(e.QualifiedName()))
	}
	if target := n.attr("target-lang-name"); target != "" {
		e.TargetName = target
	} else if target := n.attr("target-name"); target != "" {
		e.TargetName = target
	}
	generate, err := boolAttr(ctx, n, "generate", true)
	if err != nil {
		return err
	}
	e.GenerationDisabled = !generate
	e.Deprecated, err = boolAttr(ctx, n, "deprecated", false)
	return err
}

func (l *Loader) entryChild(ctx loadContext, e *TypeEntry, n *node) error {
	switch n.XMLName.Local {
	case "modify-function":
		m, err := l.functionModification(ctx, n)
		if err != nil {
			return err
		}
		e.FunctionModifications = append(e.FunctionModifications, m)
	case "add-function":
		f, err := l.addedFunction(ctx, n)
		if err != nil || f == nil {
			return err
		}
		e.AddedFunctions = append(e.AddedFunctions, f)
	case "modify-field":
		m, err := l.fieldModification(ctx, n)
		if err != nil {
			return err
		}
		e.FieldModifications = append(e.FieldModifications, m)
	case "inject-code":
		snip, err := l.codeSnip(ctx, n)
		if err != nil {
			return err
		}
		e.CodeSnips = append(e.CodeSnips, snip)
	case "conversion-rule":
		rule, err := l.conversionRule(ctx, n)
		if err != nil {
			return err
		}
		e.ConversionRule = rule
	case "function":
		if !e.IsNamespace() {
			return errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("<function> is only allowed at typesystem or namespace level, found in %s", e.QualifiedName()))
		}
		return l.function(ctx, n)
	case "include", "extra-includes", "suppress-warning", "template", "insert-template":
	default:
		if _, ok := complexKinds[n.XMLName.Local]; ok && e.IsComplex() {
			return l.typeEntry(ctx, n)
		}
		return errors.NewMalformedRuleset(ctx.file,
			fmt.Errorf("unexpected <%s> inside %s", n.XMLName.Local, e.QualifiedName()))
	}
	return nil
}

func (l *Loader) enumType(ctx loadContext, n *node) error {
	name := n.attr("name")
	byValue := n.attr("identified-by-value")
	if name == "" && byValue == "" {
		return errors.NewInvalidAttribute(ctx.file, "enum-type", "name", "or identified-by-value is required")
	}
	qualified := ctx.qualify(name)
	if name == "" {
		qualified = ctx.qualify(byValue)
	}
	e := NewTypeEntry(EnumEntry, qualified)
	e.IdentifiedByValue = byValue
	if err := l.commonAttributes(ctx, n, e); err != nil {
		return err
	}
	for i := range n.Children {
		child := &n.Children[i]
		switch child.XMLName.Local {
		case "reject-enum-value":
			value := child.attr("name")
			if value == "" {
				return errors.NewInvalidAttribute(ctx.file, "reject-enum-value", "name", "is required")
			}
			e.RejectedValues = append(e.RejectedValues, value)
		case "extra-includes", "include":
		default:
			return errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("unexpected <%s> inside enum %s", child.XMLName.Local, qualified))
		}
	}
	if err := l.registry.Register(e); err != nil {
		return err
	}

	if flags := n.attr("flags"); flags != "" {
		e.FlagsName = flags
		flagsName := flags
		if !strings.Contains(flags, "::") {
			flagsName = ctx.qualify(flags)
		}
		fe := NewTypeEntry(FlagsEntry, flagsName)
		fe.Versions = e.Versions
		fe.File = ctx.file
		fe.Package = ctx.pkg
		fe.Parent = e.Parent
		fe.ReferenceOnly = e.ReferenceOnly
		fe.Target = e
		e.Target = fe
		return l.registry.Register(fe)
	}
	return nil
}

func (l *Loader) function(ctx loadContext, n *node) error {
	signature := n.attr("signature")
	name := n.attr("name")
	if signature == "" && name == "" {
		return errors.NewInvalidAttribute(ctx.file, "function", "signature", "or name is required")
	}
	if name == "" {
		name = signature
		if i := strings.IndexByte(signature, '('); i > 0 {
			name = strings.TrimSpace(signature[:i])
		}
	}

	e := NewTypeEntry(FunctionEntry, ctx.qualify(name))
	if err := l.commonAttributes(ctx, n, e); err != nil {
		return err
	}
	// Overloads share one entry; a second <function> for the same name only
	// contributes modifications.
	if existing := l.registry.anyEntry(e.QualifiedName()); existing != nil && existing.IsFunction() &&
		existing.Versions == e.Versions {
		e = existing
	} else if err := l.registry.Register(e); err != nil {
		return err
	}

	if len(n.Children) == 0 {
		return nil
	}
	if signature == "" {
		return errors.NewInvalidAttribute(ctx.file, "function", "signature",
			"is required when the function carries modifications")
	}
	m, err := NewFunctionModification(signature)
	if err != nil {
		return errors.NewInvalidTypeSpelling(ctx.file, signature, err)
	}
	m.File = ctx.file
	if err := l.functionModificationChildren(ctx, n, m); err != nil {
		return err
	}
	e.FunctionModifications = append(e.FunctionModifications, m)
	return nil
}

func (l *Loader) functionModification(ctx loadContext, n *node) (*FunctionModification, error) {
	signature := n.attr("signature")
	if signature == "" {
		return nil, errors.NewInvalidAttribute(ctx.file, "modify-function", "signature", "is required")
	}
	m, err := NewFunctionModification(signature)
	if err != nil {
		if strings.HasPrefix(strings.TrimSpace(signature), "^") {
			return nil, errors.NewInvalidPattern(ctx.file, signature, err)
		}
		return nil, errors.NewInvalidTypeSpelling(ctx.file, signature, err)
	}
	m.File = ctx.file

	versions, err := l.versionRange(ctx, n)
	if err != nil {
		return nil, err
	}
	m.Since = versions.Since

	switch strings.ToLower(n.attr("remove")) {
	case "":
	case "all", "yes", "true", "target":
		m.Removed = true
	default:
		return nil, errors.NewInvalidAttribute(ctx.file, "modify-function", "remove",
			fmt.Sprintf("has unsupported value %q", n.attr("remove")))
	}
	m.RenamedTo = n.attr("rename")
	if access := n.attr("access"); access != "" {
		if err := setAccess(ctx, "modify-function", access, m); err != nil {
			return nil, err
		}
	}
	if m.Deprecated, err = boolAttr(ctx, n, "deprecated", false); err != nil {
		return nil, err
	}

	if err := l.functionModificationChildren(ctx, n, m); err != nil {
		return nil, err
	}
	return m, nil
}

func setAccess(ctx loadContext, element, value string, m *FunctionModification) error {
	var access codemodel.Access
	if err := access.UnmarshalText([]byte(value)); err != nil {
		return errors.NewInvalidAttribute(ctx.file, element, "access", err.Error())
	}
	m.Access = &access
	return nil
}

func (l *Loader) functionModificationChildren(ctx loadContext, n *node, m *FunctionModification) error {
	for i := range n.Children {
		child := &n.Children[i]
		switch child.XMLName.Local {
		case "modify-argument":
			am, err := l.argumentModification(ctx, child)
			if err != nil {
				return err
			}
			m.ArgumentModifications = append(m.ArgumentModifications, am)
		case "inject-code":
			snip, err := l.codeSnip(ctx, child)
			if err != nil {
				return err
			}
			m.CodeSnips = append(m.CodeSnips, snip)
		case "remove":
			m.Removed = true
		case "rename":
			m.RenamedTo = child.attr("to")
		case "access":
			if err := setAccess(ctx, "access", child.attr("modifier"), m); err != nil {
				return err
			}
		default:
			return errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("unexpected <%s> inside modify-function %s", child.XMLName.Local, m.Signature))
		}
	}
	return nil
}

func (l *Loader) argumentModification(ctx loadContext, n *node) (*ArgumentModification, error) {
	index := n.attr("index")
	am := &ArgumentModification{}
	switch index {
	case "return":
		am.Index = 0
	default:
		i, err := strconv.Atoi(index)
		if err != nil || i < 1 {
			return nil, errors.NewInvalidAttribute(ctx.file, "modify-argument", "index",
				fmt.Sprintf("must be \"return\" or a positive number, got %q", index))
		}
		am.Index = i
	}

	var err error
	if am.InvalidateAfterUse, err = boolAttr(ctx, n, "invalidate-after-use", false); err != nil {
		return nil, err
	}
	if rename := n.attr("rename"); rename != "" {
		am.RenamedTo = rename
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch child.XMLName.Local {
		case "rename":
			am.RenamedTo = child.attr("to")
		case "replace-type":
			am.ReplacedType = child.attr("modified-type")
			if _, err := codemodel.ParseTypeInfo(am.ReplacedType); err != nil {
				return nil, errors.NewInvalidTypeSpelling(ctx.file, am.ReplacedType, err)
			}
		case "replace-default-expression":
			am.ReplacedDefault = child.attr("with")
		case "remove-default-expression":
			am.RemovedDefault = true
		case "remove-argument", "remove":
			am.Removed = true
		case "define-ownership":
			owner := child.attr("owner")
			o, ok := ownershipNames[owner]
			if !ok {
				return nil, errors.NewInvalidAttribute(ctx.file, "define-ownership", "owner",
					fmt.Sprintf("has unknown value %q", owner))
			}
			am.Ownership = o
		case "reference-count":
			action := child.attr("action")
			if action == "" {
				action = "add"
			}
			a, ok := referenceCountActions[action]
			if !ok {
				return nil, errors.NewInvalidAttribute(ctx.file, "reference-count", "action",
					fmt.Sprintf("has unknown value %q", action))
			}
			am.ReferenceCounts = append(am.ReferenceCounts,
				ReferenceCount{Action: a, VariableName: child.attr("variable-name")})
		case "no-null-pointer":
			am.NoNullPointer = true
			am.NullPointerDefault = child.attr("default-value")
		case "conversion-rule":
			snip, err := l.codeSnip(ctx, child)
			if err != nil {
				return nil, err
			}
			am.ConversionRules = append(am.ConversionRules, snip)
		default:
			return nil, errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("unexpected <%s> inside modify-argument", child.XMLName.Local))
		}
	}
	return am, nil
}

func (l *Loader) fieldModification(ctx loadContext, n *node) (*FieldModification, error) {
	name := n.attr("name")
	if name == "" {
		return nil, errors.NewInvalidAttribute(ctx.file, "modify-field", "name", "is required")
	}
	m := NewFieldModification(name)
	m.RenamedTo = n.attr("rename")
	var err error
	if m.Removed, err = boolAttr(ctx, n, "remove", false); err != nil {
		if n.attr("remove") != "all" {
			return nil, err
		}
		m.Removed = true
	}
	if m.Readable, err = boolAttr(ctx, n, "read", true); err != nil {
		return nil, err
	}
	if m.Writable, err = boolAttr(ctx, n, "write", true); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Loader) addedFunction(ctx loadContext, n *node) (*AddedFunction, error) {
	signature := n.attr("signature")
	if signature == "" {
		return nil, errors.NewInvalidAttribute(ctx.file, "add-function", "signature", "is required")
	}
	f, err := ParseAddedFunction(signature, n.attr("return-type"))
	if err != nil {
		return nil, errors.NewInvalidAddedFunction(ctx.file, signature, err)
	}

	versions, err := l.versionRange(ctx, n)
	if err != nil {
		return nil, err
	}
	f.Since = versions.Since

	if access := n.attr("access"); access != "" {
		if err := f.Access.UnmarshalText([]byte(access)); err != nil {
			return nil, errors.NewInvalidAttribute(ctx.file, "add-function", "access", err.Error())
		}
	}
	if f.Static, err = boolAttr(ctx, n, "static", false); err != nil {
		return nil, err
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch child.XMLName.Local {
		case "modify-argument":
			am, err := l.argumentModification(ctx, child)
			if err != nil {
				return nil, err
			}
			if am.Index > len(f.Arguments) {
				return nil, errors.NewInvalidAttribute(ctx.file, "modify-argument", "index",
					fmt.Sprintf("%d is out of range for %s", am.Index, f.Signature()))
			}
			f.ArgumentModifications = append(f.ArgumentModifications, am)
		case "inject-code":
			snip, err := l.codeSnip(ctx, child)
			if err != nil {
				return nil, err
			}
			f.CodeSnips = append(f.CodeSnips, snip)
		default:
			return nil, errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("unexpected <%s> inside add-function %s", child.XMLName.Local, signature))
		}
	}
	return f, nil
}

func (l *Loader) codeSnip(ctx loadContext, n *node) (CodeSnip, error) {
	code, err := l.snippetText(ctx, n)
	if err != nil {
		return CodeSnip{}, err
	}
	class := n.attr("class")
	if class == "" {
		class = "target"
	}
	position := n.attr("position")
	if position == "" {
		position = "beginning"
	}
	return CodeSnip{Class: class, Position: position, Code: code}, nil
}

// snippetText returns the inline text of a node, or the contents of the file
// named by its file attribute, resolved like includes.
func (l *Loader) snippetText(ctx loadContext, n *node) (string, error) {
	file := n.attr("file")
	if file == "" {
		return trimSnippet(n.Text), nil
	}
	candidates := []string{filepath.Join(ctx.dir, file)}
	for _, dir := range l.searchPaths {
		candidates = append(candidates, filepath.Join(dir, file))
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return trimSnippet(string(data)), nil
		}
	}
	return "", errors.NewRulesetNotFound(ctx.file, file, candidates)
}

func trimSnippet(s string) string {
	return strings.Trim(s, "\n\r\t ")
}

func (l *Loader) conversionRule(ctx loadContext, n *node) (*ConversionRule, error) {
	rule := &ConversionRule{}
	if n.hasAttr("file") {
		code, err := l.snippetText(ctx, n)
		if err != nil {
			return nil, err
		}
		rule.NativeToTarget = code
	}
	for i := range n.Children {
		child := &n.Children[i]
		switch child.XMLName.Local {
		case "native-to-target":
			code, err := l.snippetText(ctx, child)
			if err != nil {
				return nil, err
			}
			rule.NativeToTarget = code
		case "target-to-native":
			replace, err := boolAttr(ctx, child, "replace", true)
			if err != nil {
				return nil, err
			}
			rule.ReplaceOriginal = replace
			for j := range child.Children {
				conv := &child.Children[j]
				if conv.XMLName.Local != "add-conversion" {
					return nil, errors.NewMalformedRuleset(ctx.file,
						fmt.Errorf("unexpected <%s> inside target-to-native", conv.XMLName.Local))
				}
				code, err := l.snippetText(ctx, conv)
				if err != nil {
					return nil, err
				}
				rule.TargetToNative = append(rule.TargetToNative, TargetToNativeConversion{
					SourceType: conv.attr("type"),
					Check:      conv.attr("check"),
					Code:       code,
				})
			}
		default:
			return nil, errors.NewMalformedRuleset(ctx.file,
				fmt.Errorf("unexpected <%s> inside conversion-rule", child.XMLName.Local))
		}
	}
	return rule, nil
}

func boolAttr(ctx loadContext, n *node, name string, def bool) (bool, error) {
	if !n.hasAttr(name) {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(n.attr(name))) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	}
	return false, errors.NewInvalidAttribute(ctx.file, n.XMLName.Local, name,
		fmt.Sprintf("must be yes or no, got %q", n.attr(name)))
}
