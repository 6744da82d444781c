package issue

import (
	"net/http"
	"testing"
)

func TestCollectorPreservesOrderWithoutDeduplication(t *testing.T) {
	c := NewCollector()
	c.AddWarning("", CodeSecurityKeyTooShort, nil)
	c.AddError("username", CodeUsernameTooShort, map[string]any{"min": 3})
	c.AddError("username", CodeUsernameTooShort, map[string]any{"min": 3})
	c.AddInfo("", CodeAPIError, nil)

	items := c.Issues()
	if len(items) != 4 {
		t.Fatalf("expected 4 issues, got %d", len(items))
	}
	if items[0].Code != CodeSecurityKeyTooShort || items[1].Code != CodeUsernameTooShort || items[2].Code != CodeUsernameTooShort {
		t.Fatalf("unexpected order: %+v", items)
	}

	grouped := c.All()
	if len(grouped.Errors) != 2 || len(grouped.Warnings) != 1 || len(grouped.Infos) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
}

func TestCollectorHasErrorsIgnoresWarnings(t *testing.T) {
	c := NewCollector()
	if c.HasErrors() {
		t.Fatal("empty collector should have no errors")
	}

	c.AddWarning("", CodeSecurityKeyTooShort, nil)
	if c.HasErrors() {
		t.Fatal("warnings must not count as errors")
	}

	c.AddError("email", CodeMissingEmail, nil)
	if !c.HasErrors() {
		t.Fatal("expected HasErrors after AddError")
	}

	first, ok := c.FirstError()
	if !ok || first.Code != CodeMissingEmail {
		t.Fatalf("unexpected first error: %+v", first)
	}
}

func TestCollectorMerge(t *testing.T) {
	pre := NewCollector()
	pre.AddError("username", CodeUsernameTooShort, nil)

	domain := NewCollector()
	domain.AddError("", CodeMissingSecurityKey, nil)

	pre.Merge(domain)
	pre.Merge(nil)

	items := pre.Issues()
	if len(items) != 2 || items[1].Code != CodeMissingSecurityKey {
		t.Fatalf("unexpected merged issues: %+v", items)
	}
}

func TestNewCopiesParams(t *testing.T) {
	params := map[string]any{"min": 3}
	i := New(SeverityError, "username", CodeUsernameTooShort, params)
	params["min"] = 10

	got, ok := i.Param("min")
	if !ok || got != 3 {
		t.Fatalf("issue params changed after construction: %v", got)
	}
	if i.Message == "" {
		t.Fatal("expected default message")
	}
}

func TestCodeCatalogue(t *testing.T) {
	tests := []struct {
		code     Code
		category Category
		status   int
	}{
		{CodeMissingEmail, CategoryValidation, http.StatusBadRequest},
		{CodeExistingUser, CategoryBusinessRule, http.StatusConflict},
		{CodeTooMany, CategoryBusinessRule, http.StatusTooManyRequests},
		{CodeMissingSecurityKey, CategoryConfiguration, http.StatusInternalServerError},
		{CodeAPIError, CategoryInfrastructure, http.StatusInternalServerError},
		{CodeVerificationExpired, CategoryBusinessRule, http.StatusGone},
		{Code("SOMETHING_ELSE"), CategoryInfrastructure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.category {
			t.Fatalf("%s: expected category %s, got %s", tt.code, tt.category, got)
		}
		if got := tt.code.HTTPStatus(); got != tt.status {
			t.Fatalf("%s: expected status %d, got %d", tt.code, tt.status, got)
		}
	}
}
