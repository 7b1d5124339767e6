package statestore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "glance.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsDefaultProfile(t *testing.T) {
	s := openTestStore(t)
	p, err := s.Connections.Get(context.Background(), DefaultConnectionName)
	if err != nil {
		t.Fatalf("Get(default) error = %v", err)
	}
	if p.Name != DefaultConnectionName {
		t.Errorf("default profile name = %q", p.Name)
	}
	if s.WasRecovered() {
		t.Errorf("WasRecovered() = true on a freshly created file")
	}
}

func TestConnectionRepo_CreateGetUpdateDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &ConnectionProfile{
		Name: "prod", Backend: "postgres", Host: "db.internal", Port: 5432,
		Database: "app", User: "app_user", SSLMode: "require",
	}
	if err := s.Connections.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Connections.Get(ctx, "prod")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Host != "db.internal" || got.Port != 5432 {
		t.Errorf("Get() = %+v", got)
	}

	got.Host = "db2.internal"
	if err := s.Connections.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got2, _ := s.Connections.Get(ctx, "prod")
	if got2.Host != "db2.internal" {
		t.Errorf("Update() did not persist, got %+v", got2)
	}

	list, err := s.Connections.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() len = %d, want 2 (default + prod)", len(list))
	}

	if err := s.Connections.Delete(ctx, "prod"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Connections.Get(ctx, "prod"); err == nil {
		t.Errorf("Get() after Delete() should fail")
	}
}

func TestConnectionRepo_DefaultCannotBeDeleted(t *testing.T) {
	s := openTestStore(t)
	if err := s.Connections.Delete(context.Background(), DefaultConnectionName); err == nil {
		t.Errorf("Delete(default) should fail")
	}
}

func TestHistoryRepo_InsertAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.History.Insert(ctx, &QueryHistoryEntry{
		ConnectionName: DefaultConnectionName,
		Submitter:      SubmitterUser,
		SQLText:        "select 1",
		Status:         HistorySuccess,
		DurationMS:     5,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id == 0 {
		t.Fatalf("Insert() returned id 0")
	}

	entries, err := s.History.Recent(ctx, DefaultConnectionName, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].SQLText != "select 1" {
		t.Errorf("Recent() = %+v", entries)
	}
}

func TestHistoryRepo_InsertRequiresSubmitterAndStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.History.Insert(ctx, &QueryHistoryEntry{ConnectionName: DefaultConnectionName, SQLText: "x", Status: HistorySuccess}); err == nil {
		t.Errorf("Insert() without submitter should fail")
	}
	if _, err := s.History.Insert(ctx, &QueryHistoryEntry{ConnectionName: DefaultConnectionName, SQLText: "x", Submitter: SubmitterUser}); err == nil {
		t.Errorf("Insert() without status should fail")
	}
}

func TestSavedQueryRepo_SaveOverwriteListDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q := &SavedQuery{Name: "top_users", ConnectionName: DefaultConnectionName, SQLText: "select * from users limit 10", Tags: TagSet{"reporting"}}
	if err := s.SavedQueries.Save(ctx, q); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	firstUpdated := q.UpdatedAt

	q.SQLText = "select * from users limit 20"
	if err := s.SavedQueries.Save(ctx, q); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	if !q.UpdatedAt.After(firstUpdated) && q.UpdatedAt != firstUpdated {
		t.Errorf("Save() overwrite should bump updated_at")
	}

	got, err := s.SavedQueries.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SQLText != "select * from users limit 20" {
		t.Errorf("Get() after overwrite = %+v", got)
	}

	list, err := s.SavedQueries.List(ctx, DefaultConnectionName, []string{"reporting"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() with tag filter len = %d, want 1", len(list))
	}

	if err := s.SavedQueries.Delete(ctx, q.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestSavedQueryRepo_GlobalScopeTag(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q := &SavedQuery{Name: "shared_report", ConnectionName: GlobalScopeName, SQLText: "select now()", Tags: TagSet{"#global:reporting"}}
	if err := s.SavedQueries.Save(ctx, q); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	list, err := s.SavedQueries.List(ctx, DefaultConnectionName, []string{"#global:reporting"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "shared_report" {
		t.Errorf("List() with global tag = %+v", list)
	}
}

func TestSettingsRepo_PutAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if got, err := s.Settings.Get(ctx); err != nil || got != nil {
		t.Fatalf("Get() before Put = %+v, %v", got, err)
	}

	settings := &LlmSettings{Provider: ProviderAnthropic, Model: "claude"}
	if err := s.Settings.Put(ctx, settings); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Provider != ProviderAnthropic || got.Model != "claude" {
		t.Errorf("Get() = %+v", got)
	}

	settings.Model = "claude-updated"
	if err := s.Settings.Put(ctx, settings); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got2, _ := s.Settings.Get(ctx)
	if got2.Model != "claude-updated" {
		t.Errorf("Put() overwrite did not persist, got %+v", got2)
	}
}

func TestSecretResolver_PlaintextRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ref, status, err := s.Secrets.Store(ctx, "prod", "password", "hunter2", true)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if status != KeyringAvailable && status != PlaintextConsented {
		t.Errorf("Store() status = %v", status)
	}

	got, err := s.Secrets.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Resolve() = %q, want hunter2", got)
	}
}

func TestSecretResolver_RejectsPlaintextWithoutConsent(t *testing.T) {
	s := openTestStore(t)
	if s.Secrets.KeyringAvailable() {
		t.Skip("keyring backend available in this environment; consent path not exercised")
	}
	_, _, err := s.Secrets.Store(context.Background(), "prod", "password", "hunter2", false)
	if err == nil {
		t.Errorf("Store() without consent and without keyring should fail")
	}
}

func TestSecretResolver_ResolveUnrecognizedRef(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Secrets.Resolve(context.Background(), "nonsense:abc"); err == nil {
		t.Errorf("Resolve() with unrecognized reference should fail")
	}
	if _, err := s.Secrets.Resolve(context.Background(), ""); err == nil {
		t.Errorf("Resolve() with empty reference should fail")
	}
}
