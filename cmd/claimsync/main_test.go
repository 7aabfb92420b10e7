//go:build !sqlite && !postgres

package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestUsersListEmpty(t *testing.T) {
	out, err := execute(t, "users", "list")
	if err != nil {
		t.Fatalf("users list: %v", err)
	}
	if !strings.HasPrefix(out, "USERNAME") {
		t.Errorf("expected table header, got %q", out)
	}

	out, err = execute(t, "users", "list", "--json")
	if err != nil {
		t.Fatalf("users list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty JSON array, got %q", out)
	}
}

func TestUsersShowMissing(t *testing.T) {
	if _, err := execute(t, "users", "show", "nobody"); err == nil || !strings.Contains(err.Error(), "user not found") {
		t.Errorf("err = %v", err)
	}
}

func TestMigrateStatusWithoutStorageTags(t *testing.T) {
	if _, err := execute(t, "migrate", "status"); err == nil {
		t.Error("expected an error without storage build tags")
	}
}

func TestServeRequiresIssuer(t *testing.T) {
	t.Setenv("OPENID_ISSUER", "")
	_, err := execute(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "openid.issuer") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigFileFlag(t *testing.T) {
	if _, err := execute(t, "--config", "/nonexistent/claimsync.yaml", "users", "list"); err == nil {
		t.Error("expected error for missing config file")
	}
}
