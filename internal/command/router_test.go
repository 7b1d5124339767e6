package command

import "testing"

func TestParse_NotACommand(t *testing.T) {
	if _, err := Parse("select * from users"); err == nil {
		t.Errorf("Parse() on non-slash input should error")
	}
}

func TestParse_SQL(t *testing.T) {
	c, err := Parse("/sql select * from users limit 1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindSQL || c.Text != "select * from users limit 1" {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_Connect(t *testing.T) {
	c, err := Parse("/connect prod")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindConnect || c.Name != "prod" {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_ConnectMissingName(t *testing.T) {
	if _, err := Parse("/connect"); err == nil {
		t.Errorf("Parse() without a name should error")
	}
}

func TestParse_ConnAddWithExtras(t *testing.T) {
	c, err := Parse("/conn add prod host=db.internal port=5432 sslmode=require foo=bar --test")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindConnAdd || c.Name != "prod" || !c.Test {
		t.Errorf("Parse() = %+v", c)
	}
	if c.KeyValues["host"] != "db.internal" || c.KeyValues["foo"] != "bar" {
		t.Errorf("Parse() key/values = %+v", c.KeyValues)
	}
}

func TestParse_ConnDeleteRequiresConfirm(t *testing.T) {
	c, err := Parse("/conn delete prod --confirm")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindConnDelete || !c.Confirm {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_History(t *testing.T) {
	c, err := Parse("/history --conn prod --since 7d --limit 20")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindHistory || c.ConnFilter != "prod" || c.Since != "7d" || c.Limit != 20 {
		t.Errorf("Parse() = %+v", c)
	}
	if !ValidDuration(c.Since) {
		t.Errorf("ValidDuration(%q) = false", c.Since)
	}
}

func TestParse_HistoryClear(t *testing.T) {
	c, err := Parse("/history clear --confirm")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindHistoryClear || !c.Confirm {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_SaveQueryWithTags(t *testing.T) {
	c, err := Parse("/savequery top_users description=top_10_users #reporting #weekly")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindSaveQuery || c.Name != "top_users" {
		t.Errorf("Parse() = %+v", c)
	}
	if c.KeyValues["description"] != "top_10_users" {
		t.Errorf("Parse() description = %q", c.KeyValues["description"])
	}
	if len(c.Tags) != 2 || c.Tags[0] != "reporting" {
		t.Errorf("Parse() tags = %+v", c.Tags)
	}
}

func TestParse_QueriesFilters(t *testing.T) {
	c, err := Parse("/queries --all --tag reporting --text top")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !c.All || c.Tag != "reporting" || c.TextFilter != "top" {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_UseQuery(t *testing.T) {
	c, err := Parse("/usequery top_users")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindUseQuery || c.Name != "top_users" {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_QueryDelete(t *testing.T) {
	c, err := Parse("/query delete top_users --confirm")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Kind != KindQueryDelete || c.Name != "top_users" || !c.Confirm {
		t.Errorf("Parse() = %+v", c)
	}
}

func TestParse_LLMVariants(t *testing.T) {
	cases := map[string]Kind{
		"/llm":              KindLLM,
		"/llm provider":     KindLLMProvider,
		"/llm provider anthropic": KindLLMProvider,
		"/llm model":        KindLLMModel,
		"/llm key":          KindLLMKey,
	}
	for line, want := range cases {
		c, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", line, err)
		}
		if c.Kind != want {
			t.Errorf("Parse(%q).Kind = %v, want %v", line, c.Kind, want)
		}
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	if _, err := Parse("/bogus"); err == nil {
		t.Errorf("Parse() on unknown command should error")
	}
}

func TestValidDuration(t *testing.T) {
	for _, d := range []string{"7d", "12h", "30m"} {
		if !ValidDuration(d) {
			t.Errorf("ValidDuration(%q) = false", d)
		}
	}
	for _, d := range []string{"7", "d7", "7 d", ""} {
		if ValidDuration(d) {
			t.Errorf("ValidDuration(%q) = true, want false", d)
		}
	}
}
