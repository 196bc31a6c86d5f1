// Package tools registers the navigation tools on the MCP server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"

	"tagnav/internal/config"
	"tagnav/internal/mcp"
	"tagnav/internal/snapshot"
	"tagnav/internal/symbols"
)

// Navigator answers symbol queries. *query.Executor implements it.
type Navigator interface {
	DocumentSymbols(ctx context.Context, doc snapshot.Document) ([]symbols.Record, error)
	Definitions(ctx context.Context, doc snapshot.Document, word string) ([]symbols.Record, error)
	References(ctx context.Context, doc snapshot.Document, word string) ([]symbols.Record, error)
}

// Generator builds or updates an index on request. *tags.Manager
// implements it.
type Generator interface {
	Generate(ctx context.Context, basePath string, update bool) (bool, error)
}

// Deps is what the tools need.
type Deps struct {
	Navigator Navigator
	Generator Generator
	Root      string // workspace root; relative paths resolve against it
	Mode      config.NavigationMode
}

// RegisterAll registers the tools available in deps.Mode. Definition and
// reference lookups need a workspace-wide index and are only offered in
// workspace navigation.
func RegisterAll(server *mcp.Server, deps Deps) {
	registerDocumentSymbols(server, deps)
	if deps.Mode == config.NavigationWorkspace {
		registerLookup(server, deps, "find_definition",
			"Find where a symbol is declared in the workspace.", deps.Navigator.Definitions)
		registerLookup(server, deps, "find_references",
			"Find where a symbol is used in the workspace.", deps.Navigator.References)
	}
	registerGenerate(server, deps, "generate_tags", "Build the tag database of the workspace if it does not exist yet.", false)
	registerGenerate(server, deps, "update_tags", "Incrementally update the tag database of the workspace.", true)
}

// SymbolsResult is returned by the symbol tools.
type SymbolsResult struct {
	Path      string           `json:"path"`
	Available bool             `json:"available"`
	Symbols   []symbols.Record `json:"symbols"`
}

// GenerateResult is returned by the index tools.
type GenerateResult struct {
	Root  string `json:"root"`
	Ready bool   `json:"ready"`
}

type documentArgs struct {
	Path string  `json:"path"`
	Text *string `json:"text,omitempty"`
}

type lookupArgs struct {
	documentArgs
	Word      string `json:"word"`
	Qualifier string `json:"qualifier,omitempty"`
}

type generateArgs struct {
	Root string `json:"root,omitempty"`
}

var (
	pathProp = &jsonschema.Schema{Type: "string", Description: "File path (relative to the workspace root or absolute)"}
	textProp = &jsonschema.Schema{Type: "string", Description: "Current unsaved text of the file; omit when the file is saved"}
)

func registerDocumentSymbols(server *mcp.Server, deps Deps) {
	tool := mcp.Tool{
		Name:        "document_symbols",
		Description: "List the modules, procedures and methods declared in a file, with 0-based line numbers.",
		Properties:  map[string]*jsonschema.Schema{"path": pathProp, "text": textProp},
		Required:    []string{"path"},
	}

	server.RegisterTool(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args documentArgs
		if err := decode(raw, &args); err != nil {
			return nil, err
		}
		doc, err := deps.document(args)
		if err != nil {
			return nil, err
		}

		records, err := deps.Navigator.DocumentSymbols(ctx, doc)
		if err != nil {
			return nil, err
		}
		return SymbolsResult{Path: doc.Path, Available: records != nil, Symbols: nonNil(records)}, nil
	})
}

type lookupFunc func(ctx context.Context, doc snapshot.Document, word string) ([]symbols.Record, error)

func registerLookup(server *mcp.Server, deps Deps, name, description string, lookup lookupFunc) {
	tool := mcp.Tool{
		Name:        name,
		Description: description,
		Properties: map[string]*jsonschema.Schema{
			"path":      pathProp,
			"word":      {Type: "string", Description: "Symbol name to look up"},
			"qualifier": {Type: "string", Description: "Only keep symbols with this qualifier (module or receiver type)"},
		},
		Required: []string{"path", "word"},
	}

	server.RegisterTool(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args lookupArgs
		if err := decode(raw, &args); err != nil {
			return nil, err
		}
		if args.Word == "" {
			return nil, fmt.Errorf("word is required")
		}
		doc, err := deps.document(args.documentArgs)
		if err != nil {
			return nil, err
		}

		records, err := lookup(ctx, doc, args.Word)
		if err != nil {
			return nil, err
		}
		available := records != nil
		if args.Qualifier != "" {
			records = symbols.FilterByName(records, args.Qualifier, args.Word)
		}
		return SymbolsResult{Path: doc.Path, Available: available, Symbols: nonNil(records)}, nil
	})
}

func registerGenerate(server *mcp.Server, deps Deps, name, description string, update bool) {
	tool := mcp.Tool{
		Name:        name,
		Description: description,
		Properties: map[string]*jsonschema.Schema{
			"root": {Type: "string", Description: "Directory to index (default: the workspace root)"},
		},
	}

	server.RegisterTool(tool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args generateArgs
		if err := decode(raw, &args); err != nil {
			return nil, err
		}
		root := deps.Root
		if args.Root != "" {
			root = deps.resolve(args.Root)
		}
		ready, err := deps.Generator.Generate(ctx, root, update)
		if err != nil {
			return nil, err
		}
		return GenerateResult{Root: root, Ready: ready}, nil
	})
}

func (d Deps) document(args documentArgs) (snapshot.Document, error) {
	if args.Path == "" {
		return snapshot.Document{}, fmt.Errorf("path is required")
	}
	doc := snapshot.Document{Path: d.resolve(args.Path), Workspace: d.Root}
	if args.Text != nil {
		doc.Dirty = true
		doc.Text = *args.Text
	}
	return doc, nil
}

func (d Deps) resolve(path string) string {
	if filepath.IsAbs(path) || d.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(d.Root, path)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func nonNil(records []symbols.Record) []symbols.Record {
	if records == nil {
		return []symbols.Record{}
	}
	return records
}
