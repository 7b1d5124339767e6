package safety

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want Level
	}{
		{"select", "SELECT * FROM users LIMIT 1", Safe},
		{"show", "SHOW search_path", Safe},
		{"explain select", "EXPLAIN SELECT * FROM users", Safe},
		{"explain analyze select", "EXPLAIN ANALYZE SELECT * FROM users", Safe},
		{"explain delete", "EXPLAIN DELETE FROM users WHERE id = 1", Destructive},
		{"explain analyze delete", "EXPLAIN ANALYZE DELETE FROM users WHERE id=1", Mutating},
		{"insert", "INSERT INTO users (name) VALUES ('x')", Mutating},
		{"update", "UPDATE users SET name = 'x' WHERE id = 1", Mutating},
		{"delete", "DELETE FROM users WHERE id = 1", Destructive},
		{"drop table", "DROP TABLE users", Destructive},
		{"truncate", "TRUNCATE users", Destructive},
		{"alter table", "ALTER TABLE users ADD COLUMN x int", Destructive},
		{"cte with delete", "WITH d AS (DELETE FROM orders RETURNING *) SELECT * FROM d", Destructive},
		{"cte with select only", "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", Safe},
		{"multi statement max wins", "SELECT 1; DELETE FROM users WHERE id=1;", Destructive},
		{"parse failure", "SELEKT !!! garbage ;;;", Destructive},
		{"empty", "", Destructive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.sql); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	if Safe.String() != "Safe" || Mutating.String() != "Mutating" || Destructive.String() != "Destructive" {
		t.Errorf("unexpected Level.String() results")
	}
}

func TestMax(t *testing.T) {
	if Max(Safe, Mutating) != Mutating {
		t.Errorf("Max(Safe, Mutating) should be Mutating")
	}
	if Max(Destructive, Safe) != Destructive {
		t.Errorf("Max(Destructive, Safe) should be Destructive")
	}
}
