package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jordigilh/glance/internal/command"
	"github.com/jordigilh/glance/internal/dbgateway"
	apperrors "github.com/jordigilh/glance/internal/errors"
	"github.com/jordigilh/glance/internal/statestore"
)

// handleCommand dispatches every slash command besides /sql, /connect
// and /quit (which already have dedicated RequestKinds) to its State
// Store operation, then posts the resulting InputResult back through
// the usual outbound channel (spec.md §4.6): the Router only parses,
// the Orchestrator is the one place with C1/C2/C3 handles to act on
// the parse.
func (a *Actor) handleCommand(ctx context.Context, req Request) error {
	c := req.Command
	if c == nil {
		return apperrors.New(apperrors.KindState, "dispatch command").WithDetails("command request carried no parsed command")
	}

	if c.Kind == command.KindClear {
		a.clearSession()
		a.emit(Event{RequestID: req.ID, Kind: EventCleared})
		return nil
	}

	var result command.InputResult
	var err error

	switch c.Kind {
	case command.KindSchema:
		result, err = a.schemaSummary()
	case command.KindHelp:
		result = command.Message(helpText)
	case command.KindConnections:
		result, err = a.listConnections(ctx)
	case command.KindConnAdd:
		result, err = a.upsertConnection(ctx, c, false)
	case command.KindConnEdit:
		result, err = a.upsertConnection(ctx, c, true)
	case command.KindConnDelete:
		result, err = a.deleteConnection(ctx, c)
	case command.KindHistory:
		result, err = a.listHistory(ctx, c)
	case command.KindHistoryClear:
		result, err = a.clearHistory(ctx, c)
	case command.KindSaveQuery:
		result, err = a.saveQuery(ctx, c)
	case command.KindQueries:
		result, err = a.listQueries(ctx, c)
	case command.KindUseQuery:
		result, err = a.useQuery(ctx, c)
	case command.KindQueryDelete:
		result, err = a.deleteQuery(ctx, c)
	case command.KindLLM:
		result, err = a.llmSettings(ctx)
	case command.KindLLMProvider:
		result, err = a.setLLMProvider(ctx, c)
	case command.KindLLMModel:
		result, err = a.setLLMModel(ctx, c)
	case command.KindLLMKey:
		result, err = a.setLLMKey(ctx, c)
	default:
		result = command.Error(fmt.Sprintf("command %q is not wired for dispatch", c.Kind))
	}

	if err != nil {
		a.emit(RouterResult(req.ID, command.Error(err.Error())))
		return nil
	}
	a.emit(RouterResult(req.ID, result))
	return nil
}

const helpText = `Glance commands:
  /sql <text>              run SQL directly (subject to safety classification)
  /clear                    clear the chat log and LLM conversation context
  /schema                   show the current connection's introspected schema
  /connections              list saved connection profiles
  /connect <name>           switch to a saved connection profile
  /conn add <name> k=v...   add a connection profile (host, port, database, user, password, sslmode)
  /conn edit <name> k=v...  edit an existing connection profile
  /conn delete <name>       delete a connection profile
  /history [--conn --text --since --limit]   show recent query history
  /history clear [--all]    clear query history for this connection, or every connection
  /savequery <name> [#tag]  save the last executed query under a name
  /queries [--all --tag]    list saved queries
  /usequery <name>          load a saved query's SQL into the input line
  /query delete <name>      delete a saved query
  /llm                      show the active LLM provider/model
  /llm provider <name>      set the LLM provider (openai, anthropic, ollama)
  /llm model <name>         set the LLM model
  /llm key <value>          store the LLM API key
  /quit                     exit
`

func (a *Actor) clearSession() {
	a.sessMu.Lock()
	a.session.History = nil
	a.sessMu.Unlock()
}

func (a *Actor) schemaSummary() (command.InputResult, error) {
	a.sessMu.Lock()
	schema := a.session.Schema
	a.sessMu.Unlock()
	return command.Message(schema.Render()), nil
}

func (a *Actor) listConnections(ctx context.Context) (command.InputResult, error) {
	profiles, err := a.store.Connections.List(ctx)
	if err != nil {
		return command.InputResult{}, err
	}
	a.sessMu.Lock()
	active := a.session.ConnectionName
	a.sessMu.Unlock()

	var b strings.Builder
	for _, p := range profiles {
		marker := "  "
		if p.Name == active {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s (%s@%s:%d/%s)\n", marker, p.Name, p.User, p.Host, p.Port, p.Database)
	}
	if b.Len() == 0 {
		return command.Message("no connection profiles configured"), nil
	}
	return command.Message(strings.TrimRight(b.String(), "\n")), nil
}

// upsertConnection builds and persists a ConnectionProfile from /conn
// add or /conn edit's key=value arguments. A --test flag probes the
// connection before the profile is written, so a typo never
// overwrites a previously-working profile.
func (a *Actor) upsertConnection(ctx context.Context, c *command.Command, editing bool) (command.InputResult, error) {
	var base *statestore.ConnectionProfile
	if editing {
		existing, err := a.store.Connections.Get(ctx, c.Name)
		if err != nil {
			return command.InputResult{}, err
		}
		base = existing
	}

	profile, password, err := command.BuildProfile(c, base)
	if err != nil {
		return command.InputResult{}, err
	}

	if c.Test {
		probe := dbgateway.NewPostgresGateway()
		if err := probe.Connect(ctx, connectConfigFromProfile(profile, password)); err != nil {
			return command.InputResult{}, apperrors.ConnectionError("test connection", err)
		}
		_ = probe.Close(ctx)
	}

	if password != "" {
		allowPlaintext := os.Getenv("GLANCE_ALLOW_PLAINTEXT") == "1"
		ref, status, err := a.store.Secrets.Store(ctx, c.Name, "password", password, allowPlaintext)
		if err != nil {
			return command.InputResult{}, err
		}
		profile.SecretRef = ref
		profile.SecretStatus = string(status)
	}

	if editing {
		err = a.store.Connections.Update(ctx, profile)
	} else {
		err = a.store.Connections.Create(ctx, profile)
	}
	if err != nil {
		return command.InputResult{}, err
	}
	return command.Message(fmt.Sprintf("connection %q saved", c.Name)), nil
}

func (a *Actor) deleteConnection(ctx context.Context, c *command.Command) (command.InputResult, error) {
	profile, err := a.store.Connections.Get(ctx, c.Name)
	if err != nil {
		return command.InputResult{}, err
	}
	if err := a.store.Connections.Delete(ctx, c.Name); err != nil {
		return command.InputResult{}, err
	}
	if profile.SecretRef != "" {
		_ = a.store.Secrets.Delete(ctx, profile.SecretRef)
	}
	return command.Message(fmt.Sprintf("connection %q deleted", c.Name)), nil
}

func (a *Actor) listHistory(ctx context.Context, c *command.Command) (command.InputResult, error) {
	connName := c.ConnFilter
	if connName == "" {
		a.sessMu.Lock()
		connName = a.session.ConnectionName
		a.sessMu.Unlock()
	}
	entries, err := a.store.History.Recent(ctx, connName, c.Limit)
	if err != nil {
		return command.InputResult{}, err
	}
	entries, err = filterHistory(entries, c)
	if err != nil {
		return command.InputResult{}, err
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s (%s, %dms)\n", e.CreatedAt.Format(time.RFC3339), e.SQLText, e.Status, e.DurationMS)
	}
	if b.Len() == 0 {
		return command.Message("no history entries"), nil
	}
	return command.Message(strings.TrimRight(b.String(), "\n")), nil
}

// filterHistory applies --text and --since client-side: the State
// Store's Recent query only narrows by connection and limit.
func filterHistory(entries []statestore.QueryHistoryEntry, c *command.Command) ([]statestore.QueryHistoryEntry, error) {
	var since time.Duration
	if c.Since != "" {
		d, err := sinceDuration(c.Since)
		if err != nil {
			return nil, err
		}
		since = d
	}

	out := entries[:0]
	cutoff := time.Now().UTC().Add(-since)
	for _, e := range entries {
		if c.TextFilter != "" && !strings.Contains(e.SQLText, c.TextFilter) {
			continue
		}
		if since > 0 && e.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// sinceDuration parses the \d+(d|h|m) grammar command.ValidDuration
// validates syntactically.
func sinceDuration(s string) (time.Duration, error) {
	if !command.ValidDuration(s) {
		return 0, apperrors.ValidationError("since", "must match \\d+(d|h|m)")
	}
	n, _ := strconv.Atoi(s[:len(s)-1])
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * time.Minute, nil
	}
}

func (a *Actor) clearHistory(ctx context.Context, c *command.Command) (command.InputResult, error) {
	connName := ""
	if !c.All {
		a.sessMu.Lock()
		connName = a.session.ConnectionName
		a.sessMu.Unlock()
	}
	if err := a.store.History.Clear(ctx, connName); err != nil {
		return command.InputResult{}, err
	}
	return command.Ack(), nil
}

// saveQuery saves the most recently executed statement in this
// session under c.Name. A #global:<tag> tag (stripped of its leading
// # by the Router's tokenizer) scopes the query to every connection
// instead of the current one.
func (a *Actor) saveQuery(ctx context.Context, c *command.Command) (command.InputResult, error) {
	a.sessMu.Lock()
	lastSQL := a.session.LastSQL
	connName := a.session.ConnectionName
	a.sessMu.Unlock()

	if lastSQL == "" {
		return command.InputResult{}, apperrors.ValidationError("savequery", "no query has been executed yet in this session")
	}

	scope := connName
	globalPrefix := strings.TrimPrefix(statestore.GlobalTagPrefix, "#")
	for _, tag := range c.Tags {
		if strings.HasPrefix(tag, globalPrefix) {
			scope = statestore.GlobalScopeName
			break
		}
	}

	q := &statestore.SavedQuery{
		Name:           c.Name,
		ConnectionName: scope,
		SQLText:        lastSQL,
		Description:    c.KeyValues["description"],
		Tags:           statestore.TagSet(c.Tags),
	}
	if err := a.store.SavedQueries.Save(ctx, q); err != nil {
		return command.InputResult{}, err
	}
	return command.Message(fmt.Sprintf("query %q saved", c.Name)), nil
}

func (a *Actor) listQueries(ctx context.Context, c *command.Command) (command.InputResult, error) {
	var queries []statestore.SavedQuery
	var err error
	if c.All {
		queries, err = a.store.SavedQueries.ListAll(ctx)
	} else {
		var tags []string
		if c.Tag != "" {
			tags = []string{c.Tag}
		}
		a.sessMu.Lock()
		connName := a.session.ConnectionName
		a.sessMu.Unlock()
		queries, err = a.store.SavedQueries.List(ctx, connName, tags)
	}
	if err != nil {
		return command.InputResult{}, err
	}

	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "%s [%s] used %d time(s): %s\n", q.Name, q.ConnectionName, q.UseCount, q.SQLText)
	}
	if b.Len() == 0 {
		return command.Message("no saved queries"), nil
	}
	return command.Message(strings.TrimRight(b.String(), "\n")), nil
}

// findQueryByName resolves a saved query by name against the current
// connection's scope (own profile plus global-scope entries).
func (a *Actor) findQueryByName(ctx context.Context, name string) (*statestore.SavedQuery, error) {
	a.sessMu.Lock()
	connName := a.session.ConnectionName
	a.sessMu.Unlock()

	queries, err := a.store.SavedQueries.List(ctx, connName, nil)
	if err != nil {
		return nil, err
	}
	for i := range queries {
		if queries[i].Name == name {
			return &queries[i], nil
		}
	}
	return nil, apperrors.New(apperrors.KindState, "find saved query").WithDetailsf("no saved query named %q", name)
}

func (a *Actor) useQuery(ctx context.Context, c *command.Command) (command.InputResult, error) {
	q, err := a.findQueryByName(ctx, c.Name)
	if err != nil {
		return command.InputResult{}, err
	}
	if err := a.store.SavedQueries.RecordUse(ctx, q.ID); err != nil {
		return command.InputResult{}, err
	}
	return command.SetInput(q.SQLText, q.ID), nil
}

func (a *Actor) deleteQuery(ctx context.Context, c *command.Command) (command.InputResult, error) {
	q, err := a.findQueryByName(ctx, c.Name)
	if err != nil {
		return command.InputResult{}, err
	}
	if err := a.store.SavedQueries.Delete(ctx, q.ID); err != nil {
		return command.InputResult{}, err
	}
	return command.Message(fmt.Sprintf("query %q deleted", c.Name)), nil
}

func (a *Actor) llmSettings(ctx context.Context) (command.InputResult, error) {
	s, err := a.store.Settings.Get(ctx)
	if err != nil {
		return command.InputResult{}, err
	}
	if s == nil {
		return command.Message("no LLM settings configured"), nil
	}
	return command.Message(fmt.Sprintf("provider: %s, model: %s, secret: %s", s.Provider, s.Model, s.SecretStatus)), nil
}

func (a *Actor) loadLLMSettingsOrDefault(ctx context.Context) (*statestore.LlmSettings, error) {
	s, err := a.store.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &statestore.LlmSettings{}
	}
	return s, nil
}

func (a *Actor) setLLMProvider(ctx context.Context, c *command.Command) (command.InputResult, error) {
	if c.Text == "" {
		return command.InputResult{}, apperrors.ValidationError("provider", "llm provider requires a value")
	}
	s, err := a.loadLLMSettingsOrDefault(ctx)
	if err != nil {
		return command.InputResult{}, err
	}
	s.Provider = statestore.LlmProvider(c.Text)
	if err := a.store.Settings.Put(ctx, s); err != nil {
		return command.InputResult{}, err
	}
	return command.Message(fmt.Sprintf("llm provider set to %s", c.Text)), nil
}

func (a *Actor) setLLMModel(ctx context.Context, c *command.Command) (command.InputResult, error) {
	if c.Text == "" {
		return command.InputResult{}, apperrors.ValidationError("model", "llm model requires a value")
	}
	s, err := a.loadLLMSettingsOrDefault(ctx)
	if err != nil {
		return command.InputResult{}, err
	}
	s.Model = c.Text
	if err := a.store.Settings.Put(ctx, s); err != nil {
		return command.InputResult{}, err
	}
	return command.Message(fmt.Sprintf("llm model set to %s", c.Text)), nil
}

func (a *Actor) setLLMKey(ctx context.Context, c *command.Command) (command.InputResult, error) {
	if c.Text == "" {
		return command.InputResult{}, apperrors.ValidationError("key", "llm key requires a value")
	}
	allowPlaintext := os.Getenv("GLANCE_ALLOW_PLAINTEXT") == "1"
	ref, status, err := a.store.Secrets.Store(ctx, "llm", "api_key", c.Text, allowPlaintext)
	if err != nil {
		return command.InputResult{}, err
	}
	s, err := a.loadLLMSettingsOrDefault(ctx)
	if err != nil {
		return command.InputResult{}, err
	}
	s.SecretRef = ref
	s.SecretStatus = string(status)
	if err := a.store.Settings.Put(ctx, s); err != nil {
		return command.InputResult{}, err
	}
	return command.Ack(), nil
}
