package llm

import "testing"

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", `{"ok":true}`, false},
		{"fenced", "```json\n{\"ok\":true}\n```", false},
		{"prose", "Here you go: {\"ok\":true} hope that helps", false},
		{"empty", "   ", true},
		{"garbage", "not json at all", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				OK bool `json:"ok"`
			}
			err := DecodeJSON(tc.content, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || !out.OK {
				t.Fatalf("DecodeJSON = %+v, %v", out, err)
			}
		})
	}
}
