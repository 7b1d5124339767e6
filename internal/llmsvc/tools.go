package llmsvc

import (
	"context"
	"encoding/json"

	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/statestore"
)

// dispatchTool runs a recognized tool call read-only against the
// State Store and JSON-encodes the result for re-insertion into the
// conversation. Multi-tag filters use AND semantics; a tag prefixed
// #global: matches globally-scoped saved queries.
func dispatchTool(ctx context.Context, store *statestore.Store, call toolCall) (string, error) {
	switch call.Tool {
	case "list_saved_queries":
		queries, err := store.SavedQueries.List(ctx, statestore.DefaultConnectionName, call.Tags)
		if err != nil {
			return "", apperrors.LLMError("dispatch tool list_saved_queries", err)
		}
		return encodeToolResult(queries)

	case "get_saved_query":
		queries, err := store.SavedQueries.List(ctx, statestore.DefaultConnectionName, nil)
		if err != nil {
			return "", apperrors.LLMError("dispatch tool get_saved_query", err)
		}
		for _, q := range queries {
			if q.Name == call.Name {
				return encodeToolResult(q)
			}
		}
		return encodeToolResult(map[string]string{"error": "not found"})

	default:
		return "", apperrors.New(apperrors.KindLLM, "dispatch tool").WithDetails("unrecognized tool: " + call.Tool)
	}
}

func encodeToolResult(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.LLMError("encode tool result", err)
	}
	return string(b), nil
}
