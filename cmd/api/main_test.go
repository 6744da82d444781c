package main

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/config"
)

func TestReportConfigIssues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := &config.AppConfig{}
	reportConfigIssues(zap.New(core), cfg.Validate())

	entries := logs.FilterMessage("configuration issue").All()
	if len(entries) == 0 {
		t.Fatal("an empty configuration should report issues")
	}

	fields := map[string]zapcore.Level{}
	for _, e := range entries {
		fields[e.ContextMap()["field"].(string)] = e.Level
	}
	for _, field := range []string{"recovery.code_length", "recovery.max_attempts", "recovery.password_reset"} {
		if lvl, ok := fields[field]; !ok || lvl != zapcore.ErrorLevel {
			t.Fatalf("expected %s at error level, got %v", field, fields)
		}
	}
}

func TestReportConfigIssuesWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	issues := issue.NewCollector()
	issues.AddWarning("mail.transport", issue.CodeInvalidConfiguration, nil)
	reportConfigIssues(zap.New(core), issues)

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warning, got %+v", entries)
	}
	if entries[0].ContextMap()["code"] != string(issue.CodeInvalidConfiguration) {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}
