package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/agentic-research/treepress/internal/ast"
)

// LangJSON names the JSON lifter; every other language goes through
// tree-sitter.
const LangJSON = "json"

// DetectLanguageFromExt returns the language name and tree-sitter Language
// for a given file extension. Returns ok=false for unsupported extensions.
func DetectLanguageFromExt(ext string) (langName string, lang *sitter.Language, ok bool) {
	switch ext {
	case ".go":
		return "go", golang.GetLanguage(), true
	case ".py":
		return "python", python.GetLanguage(), true
	case ".tf", ".hcl":
		return "terraform", hcl.GetLanguage(), true
	case ".js":
		return "javascript", javascript.GetLanguage(), true
	case ".ts", ".tsx":
		return "typescript", typescript.GetLanguage(), true
	case ".rs":
		return "rust", rust.GetLanguage(), true
	case ".sql":
		return "sql", sql.GetLanguage(), true
	case ".yaml", ".yml":
		return "yaml", yaml.GetLanguage(), true
	default:
		return "", nil, false
	}
}

// LanguageByName resolves a language name as accepted by --language.
func LanguageByName(name string) (*sitter.Language, bool) {
	switch strings.ToLower(name) {
	case "go", "golang":
		return golang.GetLanguage(), true
	case "python", "py":
		return python.GetLanguage(), true
	case "terraform", "hcl":
		return hcl.GetLanguage(), true
	case "javascript", "js":
		return javascript.GetLanguage(), true
	case "typescript", "ts":
		return typescript.GetLanguage(), true
	case "rust", "rs":
		return rust.GetLanguage(), true
	case "sql":
		return sql.GetLanguage(), true
	case "yaml", "yml":
		return yaml.GetLanguage(), true
	}
	return nil, false
}

// detect picks the lifter for path. An override wins over the extension.
func detect(path, override string) (name string, lang *sitter.Language, ok bool) {
	if override != "" {
		if strings.EqualFold(override, LangJSON) {
			return LangJSON, nil, true
		}
		lang, ok := LanguageByName(override)
		return strings.ToLower(override), lang, ok
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return LangJSON, nil, true
	}
	return DetectLanguageFromExt(ext)
}

// Supported reports whether path would be lifted by LoadTree.
func Supported(path string) bool {
	_, _, ok := detect(path, "")
	return ok
}

// ParseSource parses src with tree-sitter and lifts the result.
func ParseSource(ctx context.Context, lang *sitter.Language, src []byte) (*ast.Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()
	return LiftSitter(tree.RootNode(), src)
}
