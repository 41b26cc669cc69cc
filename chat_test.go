package docbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/docbot/rag"
)

func TestBuildMessages(t *testing.T) {
	history := [][2]string{
		{"Where do barn owls hunt?", "In open fields." + SourcesSeparator + "1. owls.pdf (page 1)"},
		{"And tawny owls?", "In woodland."},
	}
	messages := BuildMessages("Thanks", history, "Be brief.", MaxHistoryMessages)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Where do barn owls hunt?"},
		{Role: RoleAssistant, Content: "In open fields."},
		{Role: RoleUser, Content: "And tawny owls?"},
		{Role: RoleAssistant, Content: "In woodland."},
		{Role: RoleUser, Content: "Thanks"},
	}, messages)

	noPrompt := BuildMessages("Hi", nil, "", MaxHistoryMessages)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "Hi"}}, noPrompt)
}

func TestBuildMessagesKeepsLatestHistory(t *testing.T) {
	var history [][2]string
	for i := 0; i < 15; i++ {
		history = append(history, [2]string{fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)})
	}
	messages := BuildMessages("last", history, "sys", MaxHistoryMessages)
	require.Len(t, messages, MaxHistoryMessages+2)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, "q5", messages[1].Content)
	assert.Equal(t, "a14", messages[len(messages)-2].Content)
	assert.Equal(t, "last", messages[len(messages)-1].Content)

	trimmed := BuildMessages("last", history, "", 0)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "last"}}, trimmed)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		want    Mode
		wantErr bool
	}{
		{"query", ModeQuery, false},
		{" Search ", ModeSearch, false},
		{"llm", ModeChat, false},
		{"chat", ModeChat, false},
		{string(ModeQuery), ModeQuery, false},
		{"LLM Chat (no context from files)", ModeChat, false},
		{"summarise", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSearchResults(t *testing.T) {
	out := FormatSearchResults([]Source{
		{File: "owls.pdf", Page: "3-4", Text: "Range map"},
		{File: "notes.txt", Page: "-", Text: "Pellets"},
	})
	assert.Equal(t, "1. **owls.pdf (page 3-4)**\n Range map\n\n\n2. **notes.txt (page -)**\n Pellets", out)
	assert.Empty(t, FormatSearchResults(nil))
}

func newChatFixture(t *testing.T, gen Generator, opts ...ChatOption) (*fixture, *ChatService) {
	t.Helper()
	f := newFixture(t, WithTopK(2))
	f.ingestBook(t)
	citer := NewCiter(f.registry, rag.NewPageRenderer(t.TempDir()))
	return f, NewChatService(f.retriever, f.ingest, citer, gen, opts...)
}

func TestChatQueryMode(t *testing.T) {
	gen := &fakeGenerator{reply: "The range map is on page 3-4."}
	_, svc := newChatFixture(t, gen)

	resp, err := svc.Chat(context.Background(), Request{
		Message: "eagle owl range map",
		History: [][2]string{{"hello", "hi" + SourcesSeparator + "1. old.pdf (page 1)"}},
	})
	require.NoError(t, err)

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	assert.Equal(t, Message{Role: RoleSystem, Content: DefaultQueryPrompt}, call.messages[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hi"}, call.messages[2])
	assert.Contains(t, call.passages, "eagle owl")
	assert.Contains(t, call.passages, "file_type: pdf")
	assert.NotContains(t, call.passages, "file_name:")
	assert.NotContains(t, call.passages, "page_label:")
	assert.NotContains(t, call.passages, "doc_id:")

	require.NotEmpty(t, resp.Sources)
	require.NotEmpty(t, resp.Citations)
	assert.Equal(t, "owls.pdf", resp.Sources[0].File)
	assert.Equal(t, "3-4", resp.Sources[0].Page)

	answer, sources, found := strings.Cut(resp.Text, SourcesSeparator)
	require.True(t, found)
	assert.Equal(t, "The range map is on page 3-4.", answer)
	assert.True(t, strings.HasPrefix(sources, "1. owls.pdf ([page 3-4]("), sources)
	assert.Equal(t, len(resp.Citations), strings.Count(sources, "\n")+1)
}

func TestChatQueryModeWithFile(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{reply: "Pellets."}
	f, svc := newChatFixture(t, gen)
	_, err := f.ingest.Ingest(ctx, "notes.txt", writeText(t, "notes.txt", "The eagle owl coughs up pellets."))
	require.NoError(t, err)

	resp, err := svc.Chat(ctx, Request{Message: "eagle owl", File: "notes.txt", Mode: ModeQuery})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Sources)
	for _, src := range resp.Sources {
		assert.Equal(t, "notes.txt", src.File)
	}
	assert.Contains(t, resp.Text, "1. notes.txt (page -)")

	_, err = svc.Chat(ctx, Request{Message: "eagle owl", File: "unknown.pdf"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatQueryModeSystemPromptOverride(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	_, svc := newChatFixture(t, gen, WithSystemPrompts("query prompt", "chat prompt"))
	assert.Equal(t, "query prompt", svc.SystemPrompt(ModeQuery))
	assert.Equal(t, "chat prompt", svc.SystemPrompt(ModeChat))
	assert.Empty(t, svc.SystemPrompt(ModeSearch))

	empty := ""
	_, err := svc.Chat(context.Background(), Request{Message: "owls", SystemPrompt: &empty})
	require.NoError(t, err)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, RoleUser, gen.calls[0].messages[0].Role)
}

func TestChatSearchMode(t *testing.T) {
	gen := &fakeGenerator{}
	_, svc := newChatFixture(t, gen, WithSearchLimit(1))

	resp, err := svc.Chat(context.Background(), Request{Message: "eagle owl range map", Mode: ModeSearch})
	require.NoError(t, err)
	assert.Empty(t, gen.calls)
	require.Len(t, resp.Sources, 1)
	assert.True(t, strings.HasPrefix(resp.Text, "1. **owls.pdf (page 3-4)**\n "), resp.Text)
	assert.NotContains(t, resp.Text, SourcesSeparator)
	assert.Empty(t, resp.Citations)
}

func TestChatSearchModeWithoutModel(t *testing.T) {
	_, svc := newChatFixture(t, nil)
	resp, err := svc.Chat(context.Background(), Request{Message: "owls", Mode: ModeSearch})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Sources)
}

func TestChatLLMMode(t *testing.T) {
	gen := &fakeGenerator{reply: "Owls are birds."}
	_, svc := newChatFixture(t, gen)

	resp, err := svc.Chat(context.Background(), Request{Message: "What is an owl?", Mode: ModeChat})
	require.NoError(t, err)
	assert.Equal(t, "Owls are birds.", resp.Text)
	assert.Empty(t, resp.Sources)

	require.Len(t, gen.calls, 1)
	assert.Empty(t, gen.calls[0].passages)
	assert.Equal(t, Message{Role: RoleSystem, Content: DefaultChatPrompt}, gen.calls[0].messages[0])
}

func TestChatErrors(t *testing.T) {
	ctx := context.Background()
	_, noModel := newChatFixture(t, nil)
	_, err := noModel.Chat(ctx, Request{Message: "owls"})
	assert.Error(t, err)
	_, err = noModel.Chat(ctx, Request{Message: "owls", Mode: ModeChat})
	assert.Error(t, err)

	boom := errors.New("model offline")
	_, failing := newChatFixture(t, &fakeGenerator{err: boom})
	_, err = failing.Chat(ctx, Request{Message: "owls"})
	assert.ErrorIs(t, err, boom)

	_, err = failing.Chat(ctx, Request{Message: "owls", Mode: Mode("poetry")})
	assert.Error(t, err)
}
