package genai

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain json", `{"valid": true}`, `{"valid": true}`},
		{"json fence", "```json\n{\"valid\": true}\n```", `{"valid": true}`},
		{"bare fence", "```\n{\"valid\": true}\n```", `{"valid": true}`},
		{"surrounding whitespace", "  \n{\"valid\": true}\n  ", `{"valid": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.raw); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without an API key must fail")
	}
}

func TestNewClientOptions(t *testing.T) {
	client, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %s, want gpt-4o-mini", client.model)
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", client.timeout, DefaultTimeout)
	}
}
