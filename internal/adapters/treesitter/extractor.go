// Package treesitter extracts Go declarations from source files using the
// tree-sitter Go grammar.
package treesitter

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	ts "github.com/tree-sitter/go-tree-sitter"

	"depgraph/internal/domain"
	"depgraph/internal/golang"
)

// ErrSyntax reports a file the grammar could not parse cleanly.
var ErrSyntax = errors.New("syntax error")

var generatedHeader = regexp.MustCompile(`(?m)^// Code generated .* DO NOT EDIT\.$`)

// Extractor implements ports.Frontend for Go sources.
type Extractor struct {
	modulePath string
	logger     *slog.Logger
}

// NewExtractor creates an extractor resolving imports under modulePath to
// module-relative package directories.
func NewExtractor(modulePath string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{modulePath: modulePath, logger: logger}
}

// Extract parses content and returns one node per package-level declaration.
func (e *Extractor) Extract(src domain.NodeSource, content []byte) ([]domain.Node, error) {
	parser := getParser()
	defer putParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", src)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w in %s", ErrSyntax, src)
	}

	f := &file{
		content: content,
		pkgDir:  path.Dir(src.Path()),
	}
	if err := e.collectImports(f, root); err != nil {
		return nil, err
	}

	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "package_clause":
			f.packageClause(child)
		case "function_declaration":
			f.funcDecl(child)
		case "method_declaration":
			f.methodDecl(child)
		case "type_declaration":
			f.typeDecl(child)
		case "var_declaration":
			f.valueDecl(child, golang.KindVar)
		case "const_declaration":
			f.valueDecl(child, golang.KindConst)
		}
	}

	e.logger.Debug("extracted declarations", "source", src.Path(), "count", len(f.nodes))
	return f.nodes, nil
}

func (e *Extractor) collectImports(f *file, root *ts.Node) error {
	query, err := loadImportsQuery()
	if err != nil {
		return err
	}
	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	f.imports = make(map[string]domain.ReferenceID)
	names := query.CaptureNames()
	matches := cursor.Matches(query, root, f.content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		var alias, importPath string
		for _, capture := range match.Captures {
			switch names[capture.Index] {
			case "import.name":
				alias = capture.Node.Utf8Text(f.content)
			case "import.path":
				importPath = capture.Node.Utf8Text(f.content)
			}
		}
		unquoted, err := strconv.Unquote(importPath)
		if err != nil {
			continue
		}
		if alias == "" {
			alias = defaultAlias(unquoted)
		}
		if alias == "_" || alias == "." {
			continue
		}
		f.imports[alias] = golang.PackageID(e.packageDir(unquoted))
	}
	return nil
}

// packageDir maps an import path to a module-relative directory. Packages
// outside the module keep their import path.
func (e *Extractor) packageDir(importPath string) string {
	if e.modulePath == "" {
		return importPath
	}
	if importPath == e.modulePath {
		return "."
	}
	if rest, ok := strings.CutPrefix(importPath, e.modulePath+"/"); ok {
		return rest
	}
	return importPath
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

func defaultAlias(importPath string) string {
	parts := strings.Split(importPath, "/")
	alias := parts[len(parts)-1]
	if majorVersion.MatchString(alias) && len(parts) > 1 {
		alias = parts[len(parts)-2]
	}
	if i := strings.IndexByte(alias, '.'); i > 0 {
		alias = alias[:i]
	}
	return alias
}

// file accumulates the declarations of one source file.
type file struct {
	content []byte
	pkgDir  string
	imports map[string]domain.ReferenceID
	flags   golang.Flags
	nodes   []domain.Node
}

func (f *file) text(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Utf8Text(f.content)), " ")
}

func (f *file) packageClause(n *ts.Node) {
	if generatedHeader.Match(f.content[:n.StartByte()]) {
		f.flags |= golang.FlagGenerated
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		name := n.NamedChild(i)
		if name.Kind() == "package_identifier" && strings.HasSuffix(f.text(name), "_test") {
			// External test packages are distinct from the package under test.
			f.pkgDir += "_test"
		}
	}
}

func (f *file) add(o golang.DeclOptions, scope *ts.Node, locals map[string]bool) {
	o.Package = f.pkgDir
	o.Flags |= f.flags
	if isExported(o.Name) {
		o.Flags |= golang.FlagExported
	}
	decl := golang.NewDecl(o)
	// Drop self references produced by the declaration's own name.
	for _, u := range f.usages(scope, locals) {
		if u.ElementOwner() != decl.ReferenceID() {
			o.Usages = append(o.Usages, u)
		}
	}
	f.nodes = append(f.nodes, golang.NewDecl(o))
}

func (f *file) funcDecl(n *ts.Node) {
	name := f.text(n.ChildByFieldName("name"))
	f.add(golang.DeclOptions{
		Kind:       golang.KindFunc,
		Name:       name,
		Signature:  "func" + f.text(n.ChildByFieldName("type_parameters")) + f.text(n.ChildByFieldName("parameters")) + " " + f.text(n.ChildByFieldName("result")),
		BodyDigest: digest(f.text(n.ChildByFieldName("body"))),
	}, n, f.locals(n))
}

func (f *file) methodDecl(n *ts.Node) {
	recv := n.ChildByFieldName("receiver")
	recvType := ""
	if t := findKind(recv, "type_identifier"); t != nil {
		recvType = f.text(t)
	}
	f.add(golang.DeclOptions{
		Kind:       golang.KindMethod,
		Name:       f.text(n.ChildByFieldName("name")),
		Receiver:   recvType,
		Signature:  "func" + f.text(n.ChildByFieldName("parameters")) + " " + f.text(n.ChildByFieldName("result")),
		BodyDigest: digest(f.text(n.ChildByFieldName("body"))),
	}, n, f.locals(n))
}

func (f *file) typeDecl(n *ts.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		spec := n.NamedChild(i)
		if spec.Kind() != "type_spec" && spec.Kind() != "type_alias" {
			continue
		}
		typ := spec.ChildByFieldName("type")
		sig := "type" + f.text(spec.ChildByFieldName("type_parameters")) + " " + f.text(typ)
		if spec.Kind() == "type_alias" {
			sig = "type = " + f.text(typ)
		}
		embeds := f.embeds(typ)
		var usages []domain.Usage
		for _, id := range embeds {
			usages = append(usages, golang.NewEmbedUsage(id))
		}
		f.add(golang.DeclOptions{
			Kind:      golang.KindType,
			Name:      f.text(spec.ChildByFieldName("name")),
			Signature: sig,
			Embeds:    embeds,
			Usages:    usages,
		}, spec, f.locals(spec))
	}
}

func (f *file) valueDecl(n *ts.Node, kind golang.Kind) {
	for _, spec := range specs(n) {
		typ := spec.ChildByFieldName("type")
		val := spec.ChildByFieldName("value")
		sig := kind.String() + " " + f.text(typ)
		body := ""
		// Constant values and inferred var types are visible to users.
		if kind == golang.KindConst || typ == nil {
			sig += " = " + f.text(val)
		} else {
			body = digest(f.text(val))
		}
		locals := f.locals(spec)
		for i := uint(0); i < spec.NamedChildCount(); i++ {
			name := spec.NamedChild(i)
			if name.Kind() != "identifier" {
				continue
			}
			f.add(golang.DeclOptions{Kind: kind, Name: f.text(name), Signature: sig, BodyDigest: body}, spec, locals)
		}
	}
}

// specs returns var_spec and const_spec nodes of a declaration, looking
// through spec lists of grouped declarations.
func specs(n *ts.Node) []*ts.Node {
	var out []*ts.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "var_spec", "const_spec":
			out = append(out, child)
		case "var_spec_list", "const_spec_list":
			out = append(out, specs(child)...)
		}
	}
	return out
}

// embeds returns the types embedded by a struct or interface type.
func (f *file) embeds(typ *ts.Node) []domain.ReferenceID {
	if typ == nil {
		return nil
	}
	var out []domain.ReferenceID
	switch typ.Kind() {
	case "struct_type":
		fields := findKind(typ, "field_declaration_list")
		if fields == nil {
			return nil
		}
		for i := uint(0); i < fields.NamedChildCount(); i++ {
			field := fields.NamedChild(i)
			if field.Kind() != "field_declaration" || field.ChildByFieldName("name") != nil {
				continue
			}
			if id, ok := f.typeRef(field.ChildByFieldName("type")); ok {
				out = append(out, id)
			}
		}
	case "interface_type":
		for i := uint(0); i < typ.NamedChildCount(); i++ {
			elem := typ.NamedChild(i)
			if elem.Kind() != "type_elem" {
				if id, ok := f.typeRef(elem); ok {
					out = append(out, id)
				}
				continue
			}
			for j := uint(0); j < elem.NamedChildCount(); j++ {
				if id, ok := f.typeRef(elem.NamedChild(j)); ok {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// typeRef resolves a named type expression to a declaration ID.
func (f *file) typeRef(n *ts.Node) (domain.ReferenceID, bool) {
	if n == nil {
		return domain.ReferenceID{}, false
	}
	switch n.Kind() {
	case "pointer_type":
		if n.NamedChildCount() == 0 {
			return domain.ReferenceID{}, false
		}
		return f.typeRef(n.NamedChild(0))
	case "generic_type":
		return f.typeRef(n.ChildByFieldName("type"))
	case "type_identifier":
		name := f.text(n)
		if builtins[name] {
			return domain.ReferenceID{}, false
		}
		return golang.DeclID(f.pkgDir, name), true
	case "qualified_type":
		pkg, ok := f.imports[f.text(n.ChildByFieldName("package"))]
		if !ok {
			return domain.ReferenceID{}, false
		}
		return golang.DeclID(pkg.String(), f.text(n.ChildByFieldName("name"))), true
	default:
		return domain.ReferenceID{}, false
	}
}

// locals collects names declared inside n: parameters, type parameters and
// local variables, constants and types.
func (f *file) locals(n *ts.Node) map[string]bool {
	names := make(map[string]bool)
	var walk func(*ts.Node, bool)
	walk = func(n *ts.Node, nested bool) {
		switch n.Kind() {
		case "parameter_declaration", "variadic_parameter_declaration", "type_parameter_declaration":
			addIdentifiers(f, n, names)
		case "short_var_declaration", "range_clause":
			if left := n.ChildByFieldName("left"); left != nil {
				addIdentifiers(f, left, names)
			}
		case "type_switch_statement":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				addIdentifiers(f, alias, names)
			}
		case "var_spec", "const_spec":
			if nested {
				addIdentifiers(f, n, names)
			}
		case "type_spec", "type_alias":
			if nested {
				names[f.text(n.ChildByFieldName("name"))] = true
			}
		case "block", "func_literal":
			nested = true
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i), nested)
		}
	}
	walk(n, false)
	return names
}

func addIdentifiers(f *file, n *ts.Node, names map[string]bool) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child.Kind() == "identifier" {
			names[f.text(child)] = true
		}
	}
}

// usages records references made inside n: package-level names of the same
// package and selectors on imported packages.
func (f *file) usages(n *ts.Node, locals map[string]bool) []domain.Usage {
	var out []domain.Usage
	var walk func(*ts.Node)
	walk = func(n *ts.Node) {
		switch n.Kind() {
		case "qualified_type":
			alias := f.text(n.ChildByFieldName("package"))
			if pkg, ok := f.imports[alias]; ok {
				out = append(out, golang.NewMemberUsage(pkg, f.text(n.ChildByFieldName("name"))), golang.NewImportUsage(pkg))
			}
			return
		case "selector_expression":
			operand := n.ChildByFieldName("operand")
			if operand != nil && operand.Kind() == "identifier" && !locals[f.text(operand)] {
				if pkg, ok := f.imports[f.text(operand)]; ok {
					out = append(out, golang.NewMemberUsage(pkg, f.text(n.ChildByFieldName("field"))), golang.NewImportUsage(pkg))
					return
				}
			}
			if operand != nil {
				walk(operand)
			}
			return
		case "identifier", "type_identifier":
			name := f.text(n)
			if !locals[name] && !builtins[name] {
				out = append(out, golang.NewDeclUsage(golang.DeclID(f.pkgDir, name)))
			}
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(n)
	return out
}

func findKind(n *ts.Node, kind string) *ts.Node {
	if n == nil {
		return nil
	}
	if n.Kind() == kind {
		return n
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if found := findKind(n.NamedChild(i), kind); found != nil {
			return found
		}
	}
	return nil
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func digest(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

var builtins = map[string]bool{
	"_": true, "any": true, "bool": true, "byte": true, "comparable": true,
	"complex64": true, "complex128": true, "error": true, "float32": true,
	"float64": true, "int": true, "int8": true, "int16": true, "int32": true,
	"int64": true, "rune": true, "string": true, "uint": true, "uint8": true,
	"uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"true": true, "false": true, "iota": true, "nil": true,
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
}
