package eval

import "testing"

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		score   float64
		wantErr bool
	}{
		{
			name:  "plain json",
			text:  `{"score": 0.9, "rationale": "same grounds"}`,
			score: 0.9,
		},
		{
			name:  "fenced json",
			text:  "```json\n{\"score\": 0.5, \"rationale\": \"partial match\"}\n```",
			score: 0.5,
		},
		{
			name:  "bare fence",
			text:  "```\n{\"score\": 1, \"rationale\": \"identical\"}\n```",
			score: 1,
		},
		{
			name:    "score above range",
			text:    `{"score": 1.5, "rationale": "x"}`,
			wantErr: true,
		},
		{
			name:    "score below range",
			text:    `{"score": -0.1, "rationale": "x"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			text:    "the explanation looks fine to me",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judgment, err := parseJudgment(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseJudgment(%q) succeeded, want error", tt.text)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseJudgment(%q): %v", tt.text, err)
			}
			if judgment.Score != tt.score {
				t.Errorf("score = %f, want %f", judgment.Score, tt.score)
			}
		})
	}
}
