package command

import (
	"regexp"
	"strconv"
	"strings"
)

var durationGrammar = regexp.MustCompile(`^\d+[dhm]$`)

// ValidDuration reports whether s matches the \d+(d|h|m) grammar used
// by /history --since.
func ValidDuration(s string) bool {
	return durationGrammar.MatchString(s)
}

// Parse tokenizes a line beginning with "/" into a Command. Grammar is
// positional with optional key=value arguments; unknown keys on a
// connection command become extras (carried in KeyValues, since the
// Router has no State Store access of its own). A line not starting
// with "/" is not a command at all; callers should route it to the LLM
// path instead of calling Parse.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return nil, errNotACommand
	}
	fields := tokenize(line[1:])
	if len(fields) == 0 {
		return nil, errEmptyCommand
	}

	verb := fields[0]
	rest := fields[1:]

	switch verb {
	case "sql":
		return &Command{Kind: KindSQL, Text: strings.TrimSpace(strings.TrimPrefix(line, "/sql"))}, nil
	case "clear":
		return &Command{Kind: KindClear}, nil
	case "schema":
		return &Command{Kind: KindSchema}, nil
	case "help":
		return &Command{Kind: KindHelp}, nil
	case "quit", "exit":
		return &Command{Kind: KindQuit}, nil
	case "connections":
		return &Command{Kind: KindConnections}, nil
	case "connect":
		if len(rest) == 0 {
			return nil, errMissingArg("connect", "name")
		}
		return &Command{Kind: KindConnect, Name: rest[0]}, nil
	case "history":
		return parseHistory(rest)
	case "savequery":
		return parseSaveQuery(rest)
	case "queries":
		return parseQueries(rest)
	case "usequery":
		if len(rest) == 0 {
			return nil, errMissingArg("usequery", "name")
		}
		return &Command{Kind: KindUseQuery, Name: rest[0]}, nil
	case "query":
		return parseQueryDelete(rest)
	case "conn":
		return parseConn(rest)
	case "llm":
		return parseLLM(rest)
	default:
		return nil, unknownCommand(verb)
	}
}

func parseHistory(rest []string) (*Command, error) {
	if len(rest) > 0 && rest[0] == "clear" {
		c := &Command{Kind: KindHistoryClear}
		applyFlags(c, rest[1:])
		return c, nil
	}
	c := &Command{Kind: KindHistory, Limit: 100}
	applyFlags(c, rest)
	return c, nil
}

func parseSaveQuery(rest []string) (*Command, error) {
	if len(rest) == 0 {
		return nil, errMissingArg("savequery", "name")
	}
	c := &Command{Kind: KindSaveQuery, Name: rest[0], KeyValues: map[string]string{}}
	applyFlags(c, rest[1:])
	return c, nil
}

func parseQueries(rest []string) (*Command, error) {
	c := &Command{Kind: KindQueries}
	applyFlags(c, rest)
	return c, nil
}

func parseQueryDelete(rest []string) (*Command, error) {
	if len(rest) < 2 || rest[0] != "delete" {
		return nil, unknownCommand("query")
	}
	c := &Command{Kind: KindQueryDelete, Name: rest[1]}
	applyFlags(c, rest[2:])
	return c, nil
}

func parseConn(rest []string) (*Command, error) {
	if len(rest) == 0 {
		return nil, unknownCommand("conn")
	}
	switch rest[0] {
	case "add", "edit":
		if len(rest) < 2 {
			return nil, errMissingArg("conn "+rest[0], "name")
		}
		kind := KindConnAdd
		if rest[0] == "edit" {
			kind = KindConnEdit
		}
		c := &Command{Kind: kind, Name: rest[1], KeyValues: map[string]string{}}
		applyFlags(c, rest[2:])
		return c, nil
	case "delete":
		if len(rest) < 2 {
			return nil, errMissingArg("conn delete", "name")
		}
		c := &Command{Kind: KindConnDelete, Name: rest[1]}
		applyFlags(c, rest[2:])
		return c, nil
	default:
		return nil, unknownCommand("conn " + rest[0])
	}
}

func parseLLM(rest []string) (*Command, error) {
	if len(rest) == 0 {
		return &Command{Kind: KindLLM}, nil
	}
	var kind Kind
	switch rest[0] {
	case "provider":
		kind = KindLLMProvider
	case "model":
		kind = KindLLMModel
	case "key":
		kind = KindLLMKey
	default:
		return nil, unknownCommand("llm " + rest[0])
	}
	c := &Command{Kind: kind}
	if len(rest) > 1 {
		c.Text = rest[1]
	}
	return c, nil
}

// applyFlags scans tokens for --flag, --flag=value, key=value, and
// #tag tokens, populating the well-known fields plus KeyValues for
// anything else (connection-profile extras).
func applyFlags(c *Command, tokens []string) {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch {
		case tok == "--confirm":
			c.Confirm = true
		case tok == "--test":
			c.Test = true
		case tok == "--all":
			c.All = true
		case strings.HasPrefix(tok, "#"):
			c.Tags = append(c.Tags, strings.TrimPrefix(tok, "#"))
		case strings.HasPrefix(tok, "--conn="):
			c.ConnFilter = strings.TrimPrefix(tok, "--conn=")
		case tok == "--conn" && i+1 < len(tokens):
			i++
			c.ConnFilter = tokens[i]
		case strings.HasPrefix(tok, "--text="):
			c.TextFilter = strings.TrimPrefix(tok, "--text=")
		case tok == "--text" && i+1 < len(tokens):
			i++
			c.TextFilter = tokens[i]
		case strings.HasPrefix(tok, "--since="):
			c.Since = strings.TrimPrefix(tok, "--since=")
		case tok == "--since" && i+1 < len(tokens):
			i++
			c.Since = tokens[i]
		case strings.HasPrefix(tok, "--limit="):
			c.Limit, _ = strconv.Atoi(strings.TrimPrefix(tok, "--limit="))
		case tok == "--limit" && i+1 < len(tokens):
			i++
			c.Limit, _ = strconv.Atoi(tokens[i])
		case strings.HasPrefix(tok, "--tag="):
			c.Tag = strings.TrimPrefix(tok, "--tag=")
		case tok == "--tag" && i+1 < len(tokens):
			i++
			c.Tag = tokens[i]
		case strings.Contains(tok, "="):
			kv := strings.SplitN(tok, "=", 2)
			if c.KeyValues == nil {
				c.KeyValues = map[string]string{}
			}
			c.KeyValues[kv[0]] = kv[1]
		}
	}
}

func tokenize(s string) []string {
	return strings.Fields(s)
}
