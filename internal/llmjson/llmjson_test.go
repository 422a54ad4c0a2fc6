package llmjson_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/llmjson"
	"github.com/stretchr/testify/require"
)

const levelJSON = `{"level_number": 3, "role": "detective", "dialogue_nodes": [{"id": "n1", "speaker": "Narrator", ` +
	`"text": "A {strange} note", "choices": [{"text": "Read it", "next_id": "n2"}]}], "start_node": "n1"}`

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  levelJSON,
			want: levelJSON,
		},
		{
			name: "surrounding whitespace",
			raw:  "\n\n  " + levelJSON + "  \n",
			want: levelJSON,
		},
		{
			name: "prose around object",
			raw:  "Here is your level:\n" + levelJSON + "\nEnjoy the game!",
			want: levelJSON,
		},
		{
			name: "markdown fence",
			raw:  "```json\n" + levelJSON + "\n```",
			want: levelJSON,
		},
		{
			name: "truncated object",
			raw:  `{"levels": [{"level_number": 1, "summary": "The {docks}"}], "meta": {"author": "ai"`,
			want: `{"levels": [{"level_number": 1, "summary": "The {docks}"}], "meta": {"author": "ai"}}`,
		},
		{
			name: "truncated after a nested object keeps the trailing members",
			raw:  `{"a":1,"b":{"c":2},"d":3`,
			want: `{"a":1,"b":{"c":2},"d":3}`,
		},
		{
			name: "truncated object with trailing prose",
			raw:  `Sure! {"a": {"b": 1} -- hope that helps`,
			want: `{"a": {"b": 1}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llmjson.Extract(tt.raw)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtract_TrailingCharacters(t *testing.T) {
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(levelJSON), &want))

	for _, trailing := range []string{"x", " }", "\n\nThat is all.", strings.Repeat("!", 100), " {unfinished"} {
		got, err := llmjson.Extract(levelJSON + trailing)
		require.NoError(t, err, "trailing %q", trailing)

		var gotObj map[string]any
		require.NoError(t, json.Unmarshal(got, &gotObj))
		require.Equal(t, want, gotObj, "trailing %q", trailing)
	}
}

func TestExtract_MissingClosingBraces(t *testing.T) {
	nested := `{"a": {"b": {"c": {"d": "}{ in a string"}}}}`
	for k := 1; k <= 4; k++ {
		raw := nested[:len(nested)-k]
		require.Equal(t, k, llmjson.UnclosedBraces(raw))

		got, err := llmjson.Extract(raw)
		require.NoError(t, err, "missing %d braces", k)
		require.JSONEq(t, nested, string(got))
		require.Equal(t, raw+strings.Repeat("}", k), string(got))
	}
}

func TestExtract_Failure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "prose only", raw: "I'm sorry, I cannot help with that."},
		{name: "array", raw: `[1, 2, 3]`},
		{name: "null", raw: "null"},
		{name: "broken inside", raw: `{"a": 1,, "b": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llmjson.Extract(tt.raw)
			require.Nil(t, got)
			require.ErrorIs(t, err, llmjson.ErrParse)

			var perr *llmjson.ParseError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tt.raw, perr.Raw)
			require.Len(t, perr.Attempts, len(llmjson.DefaultStrategies))
		})
	}
}

func TestExtractWith_StopsAtFirstSuccess(t *testing.T) {
	var calls []string
	strategy := func(name, candidate string) llmjson.Strategy {
		return llmjson.Strategy{Name: name, Candidate: func(string) (string, bool) {
			calls = append(calls, name)
			return candidate, true
		}}
	}
	got, err := llmjson.ExtractWith("ignored", []llmjson.Strategy{
		strategy("bad", "{"),
		strategy("good", `{"ok": true}`),
		strategy("never", `{"ok": false}`),
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok": true}`, string(got))
	require.Equal(t, []string{"bad", "good"}, calls)
}

func TestDecode(t *testing.T) {
	var v struct {
		LevelNumber int    `json:"level_number"`
		StartNode   string `json:"start_node"`
	}
	require.NoError(t, llmjson.Decode("Level:\n"+levelJSON, &v))
	require.Equal(t, 3, v.LevelNumber)
	require.Equal(t, "n1", v.StartNode)

	t.Run("object of the wrong shape", func(t *testing.T) {
		raw := `{"level_number": "three"}`
		err := llmjson.Decode(raw, &v)
		require.ErrorIs(t, err, llmjson.ErrParse)
		require.ErrorIs(t, err, llmjson.ErrShape)
		require.True(t, strings.HasPrefix(err.Error(), llmjson.ErrShape.Error()))
		var perr *llmjson.ParseError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, raw, perr.Raw)
		require.Len(t, perr.Attempts, 1)
	})

	t.Run("no object", func(t *testing.T) {
		err := llmjson.Decode("nothing", &v)
		require.ErrorIs(t, err, llmjson.ErrParse)
		require.NotErrorIs(t, err, llmjson.ErrShape)
		require.True(t, strings.HasPrefix(err.Error(), llmjson.ErrParse.Error()))
	})
}
