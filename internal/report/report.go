// Package report converts a built metamodel into a flat, JSON-friendly
// document for inspection and for tools that consume the metamodel outside
// the process.
package report

import (
	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
)

// Metamodel is the serialized form of a build result.
type Metamodel struct {
	RunID              string               `json:"run_id"`
	APIVersion         string               `json:"api_version,omitempty"`
	Classes            []ClassReport        `json:"classes"`
	Templates          []ClassReport        `json:"templates,omitempty"`
	SmartPointers      []ClassReport        `json:"smart_pointers,omitempty"`
	GlobalFunctions    []FunctionReport     `json:"global_functions,omitempty"`
	GlobalEnums        []EnumReport         `json:"global_enums,omitempty"`
	Rejections         []RejectionReport    `json:"rejections,omitempty"`
	Diagnostics        []*errors.Diagnostic `json:"diagnostics,omitempty"`
	BrokenDependencies []EdgeReport         `json:"broken_dependencies,omitempty"`
}

// ClassReport describes a class, namespace or typedef instantiation.
type ClassReport struct {
	Name                 string           `json:"name"`
	QualifiedName        string           `json:"qualified_name"`
	Package              string           `json:"package,omitempty"`
	EntryKind            string           `json:"entry_kind"`
	Enclosing            string           `json:"enclosing,omitempty"`
	BaseClass            string           `json:"base_class,omitempty"`
	Interfaces           []string         `json:"interfaces,omitempty"`
	TemplateBase         string           `json:"template_base,omitempty"`
	TemplateArguments    []string         `json:"template_arguments,omitempty"`
	Namespace            bool             `json:"namespace,omitempty"`
	TypedefInstantiation bool             `json:"typedef_instantiation,omitempty"`
	Abstract             bool             `json:"abstract,omitempty"`
	Polymorphic          bool             `json:"polymorphic,omitempty"`
	Final                bool             `json:"final,omitempty"`
	Deprecated           bool             `json:"deprecated,omitempty"`
	Copyable             bool             `json:"copyable"`
	GenerateCode         bool             `json:"generate_code"`
	Functions            []FunctionReport `json:"functions,omitempty"`
	Fields               []FieldReport    `json:"fields,omitempty"`
	Enums                []EnumReport     `json:"enums,omitempty"`
	ImplicitConversions  []string         `json:"implicit_conversions,omitempty"`
	Location             string           `json:"location,omitempty"`
}

// FunctionReport describes a function after modifications.
type FunctionReport struct {
	Name            string           `json:"name"`
	OriginalName    string           `json:"original_name,omitempty"`
	Signature       string           `json:"signature"`
	Kind            string           `json:"kind"`
	Access          string           `json:"access"`
	DeclaringClass  string           `json:"declaring_class,omitempty"`
	ReturnType      string           `json:"return_type,omitempty"`
	ReturnOwnership string           `json:"return_ownership,omitempty"`
	Arguments       []ArgumentReport `json:"arguments,omitempty"`
	Static          bool             `json:"static,omitempty"`
	Virtual         bool             `json:"virtual,omitempty"`
	Abstract        bool             `json:"abstract,omitempty"`
	Constant        bool             `json:"constant,omitempty"`
	Removed         bool             `json:"removed,omitempty"`
	Deprecated      bool             `json:"deprecated,omitempty"`
	UserAdded       bool             `json:"user_added,omitempty"`
	Synthesized     bool             `json:"synthesized,omitempty"`
	ReverseOperator bool             `json:"reverse_operator,omitempty"`
	Modifications   []string         `json:"modifications,omitempty"`
	CodeSnips       int              `json:"code_snips,omitempty"`
}

// ArgumentReport describes one argument.
type ArgumentReport struct {
	Name            string `json:"name,omitempty"`
	OriginalName    string `json:"original_name,omitempty"`
	Type            string `json:"type"`
	Pattern         string `json:"pattern"`
	Default         string `json:"default,omitempty"`
	OriginalDefault string `json:"original_default,omitempty"`
	Ownership       string `json:"ownership,omitempty"`
	Removed         bool   `json:"removed,omitempty"`
}

// FieldReport describes a data member.
type FieldReport struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Static   bool   `json:"static,omitempty"`
	Readable bool   `json:"readable"`
	Writable bool   `json:"writable"`
}

// EnumReport describes an enum and its surviving values.
type EnumReport struct {
	Name          string            `json:"name,omitempty"`
	QualifiedName string            `json:"qualified_name"`
	Flags         string            `json:"flags,omitempty"`
	Scoped        bool              `json:"scoped,omitempty"`
	Anonymous     bool              `json:"anonymous,omitempty"`
	Signed        bool              `json:"signed,omitempty"`
	Values        []EnumValueReport `json:"values"`
}

// EnumValueReport is one enumerator.
type EnumValueReport struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// RejectionReport records why a declaration was left out.
type RejectionReport struct {
	Item     string `json:"item"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Location string `json:"location,omitempty"`
}

// EdgeReport is a dependency ignored to break a cycle.
type EdgeReport struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Strength string `json:"strength"`
}

// FromResult converts a build result. Slices keep the result's order, which
// is deterministic for a given input.
func FromResult(result *builder.Result) *Metamodel {
	if result == nil {
		return nil
	}
	m := &Metamodel{
		RunID:       result.RunID,
		APIVersion:  result.APIVersion,
		Classes:     classReports(result.Classes),
		Diagnostics: result.Diagnostics,
	}
	m.Templates = classReports(result.Templates)
	m.SmartPointers = classReports(result.SmartPointers)
	for _, f := range result.GlobalFunctions {
		m.GlobalFunctions = append(m.GlobalFunctions, functionReport(f))
	}
	for _, e := range result.GlobalEnums {
		m.GlobalEnums = append(m.GlobalEnums, enumReport(e))
	}
	for _, rej := range result.Rejections {
		m.Rejections = append(m.Rejections, RejectionReport{
			Item:     rej.Item,
			Kind:     rej.Kind.String(),
			Reason:   rej.Reason.String(),
			Code:     string(rej.Reason.Code()),
			Detail:   rej.Detail,
			Location: locationString(rej.Loc.File, rej.Loc.String()),
		})
	}
	for _, e := range result.BrokenDependencies {
		m.BrokenDependencies = append(m.BrokenDependencies, EdgeReport{
			From:     e.From,
			To:       e.To,
			Strength: e.Strength.String(),
		})
	}
	return m
}

func classReports(classes metalang.ClassList) []ClassReport {
	out := make([]ClassReport, 0, len(classes))
	for _, c := range classes {
		out = append(out, classReport(c))
	}
	return out
}

func classReport(c *metalang.Class) ClassReport {
	cr := ClassReport{
		Name:                 c.Name,
		QualifiedName:        c.QualifiedName,
		Package:              c.Package,
		EntryKind:            c.Entry.Kind.String(),
		Namespace:            c.IsNamespace,
		TypedefInstantiation: c.TypedefInstantiation,
		Abstract:             c.Abstract,
		Polymorphic:          c.Polymorphic,
		Final:                c.Final,
		Deprecated:           c.Deprecated,
		Copyable:             c.IsCopyable(),
		GenerateCode:         c.GenerateCode(),
		Location:             locationString(c.Loc.File, c.Loc.String()),
	}
	if c.Enclosing != nil {
		cr.Enclosing = c.Enclosing.QualifiedName
	}
	if c.BaseClass != nil {
		cr.BaseClass = c.BaseClass.QualifiedName
	}
	for _, i := range c.Interfaces {
		cr.Interfaces = append(cr.Interfaces, i.QualifiedName)
	}
	if c.TemplateBase != nil {
		cr.TemplateBase = c.TemplateBase.QualifiedName
	}
	for _, t := range c.TemplateArguments {
		cr.TemplateArguments = append(cr.TemplateArguments, t.String())
	}
	for _, f := range c.Functions {
		cr.Functions = append(cr.Functions, functionReport(f))
	}
	for _, f := range c.Fields {
		cr.Fields = append(cr.Fields, FieldReport{
			Name:     f.Name,
			Type:     f.Type.String(),
			Static:   f.Static,
			Readable: f.Readable,
			Writable: f.Writable,
		})
	}
	for _, e := range c.Enums {
		cr.Enums = append(cr.Enums, enumReport(e))
	}
	for _, f := range c.ImplicitConversions() {
		cr.ImplicitConversions = append(cr.ImplicitConversions, f.QualifiedName()+" "+f.MinimalSignature())
	}
	return cr
}

func functionReport(f *metalang.Function) FunctionReport {
	fr := FunctionReport{
		Name:            f.Name,
		Signature:       f.MinimalSignature(),
		Kind:            f.Kind.String(),
		Access:          f.Access.String(),
		Static:          f.Static,
		Virtual:         f.Virtual,
		Abstract:        f.Abstract,
		Constant:        f.Constant,
		Removed:         f.Removed,
		Deprecated:      f.Deprecated,
		UserAdded:       f.UserAdded,
		Synthesized:     f.Synthesized,
		ReverseOperator: f.ReverseOperator,
		CodeSnips:       len(f.CodeSnips),
	}
	if f.OriginalName != f.Name {
		fr.OriginalName = f.OriginalName
	}
	if f.DeclaringClass != nil && f.DeclaringClass != f.Owner {
		fr.DeclaringClass = f.DeclaringClass.QualifiedName
	}
	if f.ReturnType != nil {
		fr.ReturnType = f.ReturnType.String()
	}
	if f.ReturnOwnership != 0 {
		fr.ReturnOwnership = f.ReturnOwnership.String()
	}
	for _, a := range f.Arguments {
		ar := ArgumentReport{
			Name:    a.Name,
			Type:    a.Type.String(),
			Pattern: a.Type.Pattern().String(),
			Default: a.Default,
			Removed: a.Removed,
		}
		if a.OriginalName != a.Name {
			ar.OriginalName = a.OriginalName
		}
		if a.OriginalDefault != a.Default {
			ar.OriginalDefault = a.OriginalDefault
		}
		if a.Ownership != 0 {
			ar.Ownership = a.Ownership.String()
		}
		fr.Arguments = append(fr.Arguments, ar)
	}
	for _, m := range f.Modifications {
		fr.Modifications = append(fr.Modifications, m.Kind.String()+" "+m.Signature)
	}
	return fr
}

func enumReport(e *metalang.Enum) EnumReport {
	er := EnumReport{
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		Scoped:        e.Scoped,
		Anonymous:     e.Anonymous,
		Signed:        e.Signed,
		Values:        make([]EnumValueReport, 0, len(e.Values)),
	}
	if e.FlagsEntry != nil {
		er.Flags = e.FlagsEntry.QualifiedName()
	}
	for _, v := range e.Values {
		er.Values = append(er.Values, EnumValueReport{Name: v.Name, Value: v.Value})
	}
	return er
}

// locationString returns "" for locations without a file.
func locationString(file, formatted string) string {
	if file == "" {
		return ""
	}
	return formatted
}
