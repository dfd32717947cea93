package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qbitorbit/atlas/docs"
	"github.com/qbitorbit/atlas/model"
	"github.com/qbitorbit/atlas/tool"
)

// NewDocsAgent creates an agent that manages documents in the given store.
// Its tool set covers create, read, update, delete, list and search.
func NewDocsAgent(m model.Model, store docs.Store, optFns ...func(o *Options)) *ReactAgent {
	a := NewReactAgent(
		"docs",
		"You are a documentation agent. Use the available tools to create, "+
			"read, update and search documents. Report document ids so later "+
			"steps can reference them.",
		m, optFns...,
	)

	a.AddTools(
		tool.NewFunctionTool(
			"create_document",
			"Creates a new document with a title and content",
			func(ctx context.Context, args map[string]any) (any, error) {
				title, _ := args["title"].(string)
				content, _ := args["content"].(string)
				if title == "" {
					return nil, tool.NewToolError("create_document", "title must be a non-empty string", "VALIDATION_ERROR")
				}
				doc, err := store.Create(title, content, stringSlice(args["tags"]))
				if err != nil {
					return nil, err
				}
				return documentJSON(doc)
			},
			withDocumentSchema(map[string]any{
				"title":   map[string]any{"type": "string", "description": "Document title"},
				"content": map[string]any{"type": "string", "description": "Document body"},
				"tags":    map[string]any{"type": "array", "description": "Optional tags"},
			}, []string{"title", "content"}),
		),
		tool.NewFunctionTool(
			"read_document",
			"Returns the document with the given id",
			func(ctx context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				doc, err := store.Get(id)
				if err != nil {
					return nil, err
				}
				return documentJSON(doc)
			},
			withDocumentSchema(map[string]any{
				"id": map[string]any{"type": "string", "description": "Document id"},
			}, []string{"id"}),
		),
		tool.NewFunctionTool(
			"update_document",
			"Replaces the content of an existing document",
			func(ctx context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				content, _ := args["content"].(string)
				doc, err := store.Update(id, content, stringSlice(args["tags"]))
				if err != nil {
					return nil, err
				}
				return documentJSON(doc)
			},
			withDocumentSchema(map[string]any{
				"id":      map[string]any{"type": "string", "description": "Document id"},
				"content": map[string]any{"type": "string", "description": "Replacement body"},
				"tags":    map[string]any{"type": "array", "description": "Optional replacement tags"},
			}, []string{"id", "content"}),
		),
		tool.NewFunctionTool(
			"delete_document",
			"Deletes the document with the given id",
			func(ctx context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				if err := store.Delete(id); err != nil {
					return nil, err
				}
				return fmt.Sprintf("deleted %s", id), nil
			},
			withDocumentSchema(map[string]any{
				"id": map[string]any{"type": "string", "description": "Document id"},
			}, []string{"id"}),
		),
		tool.NewFunctionTool(
			"list_documents",
			"Lists all documents ordered by creation time",
			func(ctx context.Context, args map[string]any) (any, error) {
				found, err := store.List()
				if err != nil {
					return nil, err
				}
				return documentsJSON(found)
			},
		),
		tool.NewFunctionTool(
			"search_documents",
			"Searches documents by title, content or tags",
			func(ctx context.Context, args map[string]any) (any, error) {
				query, _ := args["query"].(string)
				found, err := store.Search(query)
				if err != nil {
					return nil, err
				}
				return documentsJSON(found)
			},
			withDocumentSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "Case-insensitive search text"},
			}, []string{"query"}),
		),
	)

	return a
}

func withDocumentSchema(properties map[string]any, required []string) func(o *tool.FunctionToolOptions) {
	return func(o *tool.FunctionToolOptions) {
		o.Parameters = map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}
	}
}

func documentJSON(doc *docs.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func documentsJSON(found []*docs.Document) (string, error) {
	data, err := json.Marshal(found)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
