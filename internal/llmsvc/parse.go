package llmsvc

import (
	"encoding/json"
	"regexp"
	"strings"
)

var sqlFenceRE = regexp.MustCompile("(?s)```sql\\s*\\n(.*?)```")

// ParseResponse extracts the first fenced ```sql block as candidate
// SQL; everything else in the reply becomes chat prose.
func ParseResponse(reply string) (sql string, prose string) {
	loc := sqlFenceRE.FindStringSubmatchIndex(reply)
	if loc == nil {
		return "", strings.TrimSpace(reply)
	}
	sql = strings.TrimSpace(reply[loc[2]:loc[3]])
	prose = strings.TrimSpace(reply[:loc[0]] + reply[loc[1]:])
	return sql, prose
}

// toolCall is the closed set of read-only directives the Service
// recognizes in a provider reply, encoded as a single-line JSON object
// the system prompt instructs the model to emit when it needs data
// from the State Store instead of guessing.
type toolCall struct {
	Tool string   `json:"tool"`
	Name string   `json:"name,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

var toolCallRE = regexp.MustCompile(`(?s)` + "```tool\\s*\\n(.*?)```")

func parseToolCall(reply string) (toolCall, bool) {
	loc := toolCallRE.FindStringSubmatch(reply)
	if loc == nil {
		return toolCall{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(loc[1])), &call); err != nil {
		return toolCall{}, false
	}
	if call.Tool != "list_saved_queries" && call.Tool != "get_saved_query" {
		return toolCall{}, false
	}
	return call, true
}
