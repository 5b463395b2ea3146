package treesitter

import (
	"embed"
	"fmt"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsGo "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

//go:embed queries/*.scm
var queryFiles embed.FS

var goLanguage = ts.NewLanguage(tsGo.Language())

var parserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(goLanguage); err != nil {
			panic("failed to set Go language: " + err.Error())
		}
		return parser
	},
}

func getParser() *ts.Parser {
	return parserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser) {
	p.Reset()
	parserPool.Put(p)
}

// Loaded once and shared; queries are safe for concurrent cursors.
var (
	importsQuery     *ts.Query
	importsQueryOnce sync.Once
	importsQueryErr  error
)

func loadImportsQuery() (*ts.Query, error) {
	importsQueryOnce.Do(func() {
		data, err := queryFiles.ReadFile("queries/imports.scm")
		if err != nil {
			importsQueryErr = fmt.Errorf("failed to read imports query: %w", err)
			return
		}
		q, qerr := ts.NewQuery(goLanguage, string(data))
		if qerr != nil {
			importsQueryErr = fmt.Errorf("failed to parse imports query: %w", qerr)
			return
		}
		importsQuery = q
	})
	return importsQuery, importsQueryErr
}
