package ai

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Chat(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func TestLLMExtractor_Extract(t *testing.T) {
	extractor := NewLLMExtractor(&stubCompleter{
		response: `["likes espresso", "works remotely on Fridays"]`,
	})

	facts, err := extractor.Extract(context.Background(), "we talked about coffee and schedules")
	require.NoError(t, err)
	assert.Equal(t, []string{"likes espresso", "works remotely on Fridays"}, facts)
}

func TestLLMExtractor_Extract_ProviderError(t *testing.T) {
	extractor := NewLLMExtractor(&stubCompleter{err: errors.New("rate limited")})

	_, err := extractor.Extract(context.Background(), "content")
	assert.Error(t, err)
}

func TestParseFactArray(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{
			name: "PlainArray",
			raw:  `["fact one", "fact two"]`,
			want: []string{"fact one", "fact two"},
		},
		{
			name: "MarkdownFenced",
			raw:  "```json\n[\"fact one\"]\n```",
			want: []string{"fact one"},
		},
		{
			name: "LeadingCommentary",
			raw:  `Here are the facts: ["fact one"]`,
			want: []string{"fact one"},
		},
		{
			name: "EmptyArray",
			raw:  `[]`,
			want: []string{},
		},
		{
			name: "BlankFactsDropped",
			raw:  `["fact one", "   ", ""]`,
			want: []string{"fact one"},
		},
		{
			name:    "NotJSON",
			raw:     `the user likes coffee`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFactArray(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
