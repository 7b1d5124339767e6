package command

import "testing"

func TestBuildProfile(t *testing.T) {
	c, err := Parse("/conn add prod host=db.internal port=5432 database=app user=app_user password=secret region=us-east")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p, password, err := BuildProfile(c, nil)
	if err != nil {
		t.Fatalf("BuildProfile() error = %v", err)
	}
	if p.Host != "db.internal" || p.Port != 5432 || p.Database != "app" || p.User != "app_user" {
		t.Errorf("BuildProfile() = %+v", p)
	}
	if password != "secret" {
		t.Errorf("BuildProfile() password = %q", password)
	}
	if p.Extras["region"] != "us-east" {
		t.Errorf("BuildProfile() extras = %+v", p.Extras)
	}
}

func TestBuildProfile_InvalidPort(t *testing.T) {
	c, _ := Parse("/conn add prod host=db.internal port=notanumber database=app user=app_user")
	if _, _, err := BuildProfile(c, nil); err == nil {
		t.Errorf("BuildProfile() with non-numeric port should error")
	}
}

func TestBuildProfile_FailsValidationWithoutRequiredFields(t *testing.T) {
	c, _ := Parse("/conn add prod host=db.internal")
	if _, _, err := BuildProfile(c, nil); err == nil {
		t.Errorf("BuildProfile() without database/user should error")
	}
}
