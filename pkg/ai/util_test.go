package ai

import (
	"errors"
	"math"
	"testing"
)

type edge struct {
	TargetID   string  `json:"target_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type edgeBatch struct {
	Relationships []edge `json:"relationships"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  edge
	}{
		{
			name:  "valid json object",
			input: `{"relationships":[{"target_id":"2","type":"CAUSES","confidence":0.9}]}`,
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{relationships: [{target_id: '2', type: 'CAUSES', confidence: 0.9}]}`,
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "trailing comma",
			input: `{"relationships":[{"target_id":"2","type":"CAUSES","confidence":0.9},]}`,
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "truncated output",
			input: `{"relationships":[{"target_id":"2","type":"CAUSES","confidence":0.9}`,
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "double encoded",
			input: `"{\"relationships\":[{\"target_id\":\"2\",\"type\":\"CAUSES\",\"confidence\":0.9}]}"`,
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"relationships\": [{\"target_id\":\"2\",\"type\":\"CAUSES\",\"confidence\":0.9}]\n}\n",
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
		{
			name:  "code fence",
			input: "```json\n{\"relationships\":[{\"target_id\":\"2\",\"type\":\"CAUSES\",\"confidence\":0.9}]}\n```",
			want:  edge{TargetID: "2", Type: "CAUSES", Confidence: 0.9},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got edgeBatch
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Relationships) != 1 || got.Relationships[0] != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got.Relationships, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got edgeBatch
	err := UnmarshalFlexible("no relationships found", &got)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("UnmarshalFlexible() expected ErrMalformedOutput, got %v", err)
	}
}

func TestGenerateSchema_Object(t *testing.T) {
	schema := GenerateSchema(&edgeBatch{})
	if schema == nil {
		t.Fatal("expected schema")
	}
}

func TestNormalizeAndDot(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector %v", v)
	}
	if got := Dot(v, v); math.Abs(got-1) > 1e-6 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector changed: %v", zero)
	}
	if got := Dot([]float32{1, 0, 5}, []float32{1}); got != 1 {
		t.Fatalf("dot over common length = %v, want 1", got)
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Record(ModelMetrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 100})
	r.Record(ModelMetrics{InputTokens: 1, TotalTokens: 1})
	got := r.GetMetrics()
	if got.Requests != 2 || got.TotalTokens != 16 || got.DurationMs != 100 {
		t.Fatalf("unexpected metrics %+v", got)
	}
	r.ResetMetrics()
	if r.GetMetrics() != (ModelMetrics{}) {
		t.Fatal("reset did not clear metrics")
	}
}
