package fixtures

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadEmbedded(); err != nil {
		t.Fatalf("LoadEmbedded failed: %v", err)
	}

	if loader.Count() != 5 {
		t.Fatalf("expected 5 embedded fixtures, got %d", loader.Count())
	}

	// Every record is structurally complete
	for _, uc := range loader.List() {
		if uc.ID == "" || uc.Title == "" {
			t.Errorf("fixture missing id or title: %+v", uc)
		}
		if uc.Popularity < 0 {
			t.Errorf("fixture %s has negative popularity", uc.ID)
		}
		if !uc.Difficulty.Valid() {
			t.Errorf("fixture %s has unknown difficulty %q", uc.ID, uc.Difficulty)
		}
	}

	// List is ordered by descending popularity
	list := loader.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Popularity < list[i].Popularity {
			t.Errorf("list out of order at %d", i)
		}
	}
	if list[0].ID != "email-automation-sequences" {
		t.Errorf("expected most popular fixture first, got %s", list[0].ID)
	}

	// Nested records survive parsing
	chatbot := loader.Get("customer-support-chatbot")
	if chatbot == nil {
		t.Fatal("customer-support-chatbot fixture not found")
	}
	if len(chatbot.Tools) == 0 {
		t.Fatal("expected tools on chatbot fixture")
	}
	srv := chatbot.Tools[0].MCPServer
	if srv == nil {
		t.Fatal("expected mcp server on claude-api tool")
	}
	if !srv.Official {
		t.Error("expected official mcp server")
	}
}

func TestLoadFromDirOverlay(t *testing.T) {
	dir := t.TempDir()

	override := `
id: customer-support-chatbot
title: Support Chatbot (Revised)
category: customer-service
difficulty: intermediate
popularity: 99
`
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	fresh := `
id: meeting-notes-summarizer
title: Meeting Notes Summarizer
category: business-automation
difficulty: beginner
popularity: 40
`
	if err := os.WriteFile(filepath.Join(dir, "fresh.yml"), []byte(fresh), 0o644); err != nil {
		t.Fatal(err)
	}

	// Non-YAML and broken files are skipped, not fatal
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("title: no id here"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	if err := loader.LoadEmbedded(); err != nil {
		t.Fatalf("LoadEmbedded failed: %v", err)
	}
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	// Override replaced in place, new record added
	if loader.Count() != 6 {
		t.Errorf("expected 6 fixtures after overlay, got %d", loader.Count())
	}

	chatbot := loader.Get("customer-support-chatbot")
	if chatbot == nil || chatbot.Title != "Support Chatbot (Revised)" {
		t.Errorf("override not applied: %+v", chatbot)
	}
	if chatbot.Popularity != 99 {
		t.Errorf("expected popularity 99, got %d", chatbot.Popularity)
	}

	if loader.Get("meeting-notes-summarizer") == nil {
		t.Error("fresh fixture not loaded")
	}
}

func TestLoadFromDirMissing(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir("/does/not/exist"); err == nil {
		t.Error("expected error for missing directory")
	}
}
