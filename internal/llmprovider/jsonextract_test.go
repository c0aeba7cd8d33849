package llmprovider

import "testing"

func TestExtractJSONContentFencedJSON(t *testing.T) {
	content := "Here you go:\n```json\n{\"a\": 1}\n```\nThanks"
	if got := ExtractJSONContent(content); got != `{"a": 1}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONContentGenericFence(t *testing.T) {
	content := "```\n[1, 2, 3]\n```"
	if got := ExtractJSONContent(content); got != "[1, 2, 3]" {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSONContentGenericFenceRejectsNonJSON(t *testing.T) {
	content := "```\nnot json at all\n```"
	if got := ExtractJSONContent(content); got != content {
		t.Errorf("expected fallback to raw content, got %q", got)
	}
}

func TestExtractJSONContentBalancedScanSkipsStrings(t *testing.T) {
	content := `noise before {"a": "value with } and { braces", "b": 2} noise after`
	got := ExtractJSONContent(content)
	want := `{"a": "value with } and { braces", "b": 2}`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractJSONContentEscapedQuotes(t *testing.T) {
	content := `{"a": "she said \"hi\""}`
	got := ExtractJSONContent(content)
	if got != content {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestExtractJSONContentArray(t *testing.T) {
	content := `prefix [{"x":1},{"y":2}] suffix`
	got := ExtractJSONContent(content)
	want := `[{"x":1},{"y":2}]`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseJSONResponseSuccess(t *testing.T) {
	m, err := ParseJSONResponse("```json\n{\"ok\": true}\n```", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["ok"] != true {
		t.Errorf("unexpected parsed map: %+v", m)
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if _, err := ParseJSONResponse("not json", "test"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if _, err := ParseJSONResponse("", "test"); err == nil {
		t.Error("expected error for empty content")
	}
}
