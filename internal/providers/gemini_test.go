package providers

import (
	"context"
	"errors"
	"testing"

	"docquorum/internal/util"

	"google.golang.org/genai"
)

func TestGeminiWithoutKeyIsNotConfigured(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	g, err := NewGeminiBackend(context.Background(), "")
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}
	if _, err := g.Complete(context.Background(), "gemini-2.0-flash", UserPrompt("x")); !errors.Is(err, util.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestToGeminiContents(t *testing.T) {
	contents, cfg := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "summarize"},
	})
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents got %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) {
		t.Fatalf("assistant turn should map to model role, got %q", contents[1].Role)
	}
	if cfg == nil || cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system prompt not carried into config")
	}
	if _, cfg := toGeminiContents(UserPrompt("x")); cfg != nil {
		t.Fatalf("no system message should mean nil config")
	}
}
