package codemodel

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Type spelling grammar:
//
// type        → cv* name templateArgs? cv* ptrOp* funcPtr? array*
// name        → "..." | builtin+ | "::"? IDENT ( "::" IDENT )*
// templateArg → NUMBER | type
// ptrOp       → "*" "const"? | "&" | "&&"
// funcPtr     → "(" "*" ")" "(" ( type ( "," type )* )? ")"
// array       → "[" TEXT "]"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokPunct
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

var builtinWords = map[string]bool{
	"unsigned": true, "signed": true, "short": true, "long": true,
	"int": true, "char": true, "double": true, "float": true,
	"bool": true, "void": true, "wchar_t": true, "char16_t": true,
	"char32_t": true, "char8_t": true,
}

var elaboratedKeywords = map[string]bool{
	"typename": true, "struct": true, "class": true, "enum": true, "union": true,
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, string(rs[i:j])})
			i = j
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || unicode.IsLetter(rs[j]) || rs[j] == '\'') {
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j])})
			i = j
		case r == ':' && i+1 < len(rs) && rs[i+1] == ':':
			toks = append(toks, token{tokPunct, "::"})
			i += 2
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, token{tokPunct, "&&"})
			i += 2
		case r == '.' && i+2 < len(rs) && rs[i+1] == '.' && rs[i+2] == '.':
			toks = append(toks, token{tokPunct, "..."})
			i += 3
		case strings.ContainsRune("<>,*&()[]+-/%|^~=", r):
			toks = append(toks, token{tokPunct, string(r)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q in type %q", r, s)
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

type typeParser struct {
	input  string
	tokens []token
	pos    int
}

func (p *typeParser) peek() token {
	return p.tokens[p.pos]
}

func (p *typeParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *typeParser) accept(text string) bool {
	if t := p.peek(); t.kind != tokEOF && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, found %q", text, p.peek().text)
	}
	return nil
}

func (p *typeParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("invalid type %q: %s", p.input, fmt.Sprintf(format, args...))
}

func (p *typeParser) parseType() (TypeInfo, error) {
	var info TypeInfo
	p.parseCV(&info)

	if err := p.parseName(&info); err != nil {
		return info, err
	}

	if p.accept("<") {
		for !p.accept(">") {
			if len(info.Instantiations) > 0 {
				if err := p.expect(","); err != nil {
					return info, err
				}
			}
			arg, err := p.parseTemplateArgument()
			if err != nil {
				return info, err
			}
			info.Instantiations = append(info.Instantiations, arg)
		}
		// Nested names after an instantiation: QList<int>::iterator
		for p.peek().text == "::" {
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return info, p.errorf("expected identifier after '::'")
			}
			info.Name = append(info.Name, t.text)
		}
	}

	p.parseCV(&info)

pointers:
	for {
		switch {
		case p.accept("*"):
			info.Indirections = append(info.Indirections, Pointer)
			if p.accept("const") {
				info.Indirections[len(info.Indirections)-1] = ConstPointer
			}
			p.accept("volatile")
		case p.accept("&&"):
			info.Reference = RValueReference
		case p.accept("&"):
			info.Reference = LValueReference
		default:
			break pointers
		}
	}

	if p.peek().text == "(" && p.tokens[p.pos+1].text == "*" {
		p.next()
		p.next()
		if err := p.expect(")"); err != nil {
			return info, err
		}
		if err := p.expect("("); err != nil {
			return info, err
		}
		info.FunctionPointer = true
		for !p.accept(")") {
			if len(info.Arguments) > 0 {
				if err := p.expect(","); err != nil {
					return info, err
				}
			}
			arg, err := p.parseType()
			if err != nil {
				return info, err
			}
			if !arg.IsVoid() {
				info.Arguments = append(info.Arguments, arg)
			}
		}
	}

	dims, err := p.parseArrayDimensions()
	if err != nil {
		return info, err
	}
	info.ArrayDimensions = dims
	return info, nil
}

func (p *typeParser) parseCV(info *TypeInfo) {
	for {
		switch {
		case p.accept("const"):
			info.Const = true
		case p.accept("volatile"):
			info.Volatile = true
		default:
			return
		}
	}
}

func (p *typeParser) parseName(info *TypeInfo) error {
	for elaboratedKeywords[p.peek().text] {
		p.next()
	}

	if p.accept("...") {
		info.Name = []string{"..."}
		return nil
	}

	if builtinWords[p.peek().text] {
		var words []string
		for builtinWords[p.peek().text] {
			words = append(words, p.next().text)
		}
		info.Name = []string{normalizeBuiltin(words)}
		return nil
	}

	p.accept("::")
	for {
		t := p.next()
		if t.kind != tokIdent {
			return p.errorf("expected type name, found %q", t.text)
		}
		info.Name = append(info.Name, t.text)
		if p.peek().text != "::" {
			return nil
		}
		p.next()
	}
}

func (p *typeParser) parseTemplateArgument() (TypeInfo, error) {
	if t := p.peek(); t.kind == tokNumber {
		p.next()
		return TypeInfo{Name: []string{t.text}}, nil
	}
	return p.parseType()
}

func (p *typeParser) parseArrayDimensions() ([]string, error) {
	var dims []string
	for p.accept("[") {
		var parts []string
		for !p.accept("]") {
			t := p.next()
			if t.kind == tokEOF {
				return nil, p.errorf("unterminated array dimension")
			}
			parts = append(parts, t.text)
		}
		dims = append(dims, strings.Join(parts, ""))
	}
	return dims, nil
}

// normalizeBuiltin maps spellings such as "unsigned" or "long int" to the
// canonical primitive names used by the registry.
func normalizeBuiltin(words []string) string {
	hasModifier := false
	for _, w := range words {
		if w == "short" || w == "long" || w == "unsigned" || w == "signed" {
			hasModifier = true
		}
	}
	var out []string
	for i, w := range words {
		switch {
		case w == "int" && hasModifier && containsWord(words, "short", "long"):
			continue
		case w == "signed" && !(i+1 < len(words) && words[i+1] == "char"):
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return "int"
	}
	if len(out) == 1 && out[0] == "unsigned" {
		return "unsigned int"
	}
	return strings.Join(out, " ")
}

func containsWord(words []string, candidates ...string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

// ParseTypeInfo parses a C++ type spelling such as "const QList<int> &".
func ParseTypeInfo(s string) (TypeInfo, error) {
	toks, err := tokenize(s)
	if err != nil {
		return TypeInfo{}, err
	}
	p := &typeParser{input: s, tokens: toks}
	info, err := p.parseType()
	if err != nil {
		return TypeInfo{}, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return TypeInfo{}, p.errorf("unexpected %q", t.text)
	}
	return info, nil
}

// ParseDeclarator parses "type [name][dims]", the form used by argument
// declarations in hand written signatures.
func ParseDeclarator(s string) (TypeInfo, string, error) {
	toks, err := tokenize(s)
	if err != nil {
		return TypeInfo{}, "", err
	}
	p := &typeParser{input: s, tokens: toks}
	info, err := p.parseType()
	if err != nil {
		return TypeInfo{}, "", err
	}
	var name string
	if t := p.peek(); t.kind == tokIdent {
		name = p.next().text
		dims, err := p.parseArrayDimensions()
		if err != nil {
			return TypeInfo{}, "", err
		}
		info.ArrayDimensions = append(info.ArrayDimensions, dims...)
	}
	if t := p.peek(); t.kind != tokEOF {
		return TypeInfo{}, "", p.errorf("unexpected %q", t.text)
	}
	return info, name, nil
}

// MustParseTypeInfo is ParseTypeInfo for literals known to be valid.
func MustParseTypeInfo(s string) TypeInfo {
	info, err := ParseTypeInfo(s)
	if err != nil {
		panic(err)
	}
	return info
}

// ParseIntegerLiteral parses a C++ integer literal: decimal, hex, octal or
// binary, with optional sign, digit separators and u/l suffixes.
func ParseIntegerLiteral(s string) (int64, error) {
	text := strings.ReplaceAll(strings.TrimSpace(s), "'", "")
	negative := false
	if strings.HasPrefix(text, "-") {
		negative = true
		text = text[1:]
	}
	text = strings.TrimRight(text, "uUlL")
	if text == "" {
		return 0, fmt.Errorf("invalid integer literal %q", s)
	}

	base := 10
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		base, text = 16, text[2:]
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		base, text = 2, text[2:]
	case len(text) > 1 && text[0] == '0':
		base, text = 8, text[1:]
	}

	u, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q: %w", s, err)
	}
	v := int64(u)
	if negative {
		v = -v
	}
	return v, nil
}
