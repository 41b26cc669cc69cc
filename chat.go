package docbot

import (
	"context"
	"fmt"
	"strings"
)

// SourcesSeparator introduces the sources section appended to answers. It is
// also where assistant turns are cut when they are fed back as history.
const SourcesSeparator = "\n\n Sources: \n"

// MaxHistoryMessages bounds the history sent to the model.
const MaxHistoryMessages = 20

// Mode selects how a chat message is answered.
type Mode string

const (
	// ModeQuery answers from the ingested files and cites them.
	ModeQuery Mode = "Query Files"
	// ModeSearch lists the most relevant chunks without calling the model.
	ModeSearch Mode = "Search Files"
	// ModeChat talks to the model without any context from files.
	ModeChat Mode = "LLM Chat (no context from files)"
)

// Modes lists the chat modes in display order.
var Modes = []Mode{ModeQuery, ModeSearch, ModeChat}

// ParseMode accepts a mode's full name or its short name: "query", "search"
// or "chat".
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "query", strings.ToLower(string(ModeQuery)):
		return ModeQuery, nil
	case "search", strings.ToLower(string(ModeSearch)):
		return ModeSearch, nil
	case "chat", "llm", strings.ToLower(string(ModeChat)):
		return ModeChat, nil
	}
	return "", fmt.Errorf("unknown chat mode %q", name)
}

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces the model's reply to a conversation. passages holds the
// retrieved context and is empty when the mode uses no files.
type Generator interface {
	Generate(ctx context.Context, messages []Message, passages string) (string, error)
}

// Request is one chat turn.
type Request struct {
	Message string
	// History holds earlier (user, assistant) exchanges, oldest first.
	History [][2]string
	Mode    Mode
	// File restricts Query and Search modes to one ingested file.
	File string
	// SystemPrompt, when set, replaces the mode's default prompt.
	SystemPrompt *string
}

// Response is the answer to a Request.
type Response struct {
	Text      string
	Sources   []Source
	Citations []Citation
}

// BuildMessages turns history and the new message into the conversation sent
// to the model. Assistant turns lose their sources section, only the latest
// maxHistory history messages are kept, and a non-empty system prompt comes
// first.
func BuildMessages(message string, history [][2]string, systemPrompt string, maxHistory int) []Message {
	var past []Message
	for _, turn := range history {
		answer, _, _ := strings.Cut(turn[1], SourcesSeparator)
		past = append(past,
			Message{Role: RoleUser, Content: turn[0]},
			Message{Role: RoleAssistant, Content: answer},
		)
	}
	if maxHistory >= 0 && len(past) > maxHistory {
		past = past[len(past)-maxHistory:]
	}

	messages := make([]Message, 0, len(past)+2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, past...)
	return append(messages, Message{Role: RoleUser, Content: message})
}

// ChatService answers chat requests in the three modes.
type ChatService struct {
	retriever   *Retriever
	ingest      *IngestService
	citer       *Citer
	llm         Generator
	queryPrompt string
	chatPrompt  string
	searchLimit int
	maxHistory  int
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithSystemPrompts sets the default system prompts of the query and chat
// modes. Search mode has none.
func WithSystemPrompts(query, chat string) ChatOption {
	return func(s *ChatService) {
		s.queryPrompt = query
		s.chatPrompt = chat
	}
}

// WithSearchLimit sets how many chunks Search mode lists.
func WithSearchLimit(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// WithMaxHistory sets how many history messages are sent to the model.
func WithMaxHistory(n int) ChatOption {
	return func(s *ChatService) {
		s.maxHistory = n
	}
}

// NewChatService creates a chat service. ingest resolves file selections to
// documents, citer formats sources, llm answers Query and Chat modes.
func NewChatService(retriever *Retriever, ingest *IngestService, citer *Citer, llm Generator, opts ...ChatOption) *ChatService {
	s := &ChatService{
		retriever:   retriever,
		ingest:      ingest,
		citer:       citer,
		llm:         llm,
		queryPrompt: DefaultQueryPrompt,
		chatPrompt:  DefaultChatPrompt,
		searchLimit: 4,
		maxHistory:  MaxHistoryMessages,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SystemPrompt returns the default system prompt of a mode.
func (s *ChatService) SystemPrompt(mode Mode) string {
	switch mode {
	case ModeQuery:
		return s.queryPrompt
	case ModeChat:
		return s.chatPrompt
	default:
		return ""
	}
}

// Chat answers req according to its mode. An empty mode means Query.
func (s *ChatService) Chat(ctx context.Context, req Request) (Response, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeQuery
	}
	Debug("Chat request", "mode", mode, "file", req.File, "history", len(req.History))

	switch mode {
	case ModeQuery:
		return s.query(ctx, req)
	case ModeSearch:
		return s.search(ctx, req)
	case ModeChat:
		return s.chat(ctx, req)
	default:
		return Response{}, fmt.Errorf("unknown chat mode %q", mode)
	}
}

func (s *ChatService) systemPrompt(req Request, mode Mode) string {
	if req.SystemPrompt != nil {
		return *req.SystemPrompt
	}
	return s.SystemPrompt(mode)
}

func (s *ChatService) filter(req Request) (*Filter, error) {
	if req.File == "" {
		return nil, nil
	}
	if s.ingest == nil {
		return nil, fmt.Errorf("file selection needs an ingest service")
	}
	ids, err := s.ingest.DocIDsForFile(req.File)
	if err != nil {
		return nil, err
	}
	return &Filter{DocIDs: ids}, nil
}

func (s *ChatService) query(ctx context.Context, req Request) (Response, error) {
	if s.llm == nil {
		return Response{}, fmt.Errorf("query mode needs a language model")
	}
	filter, err := s.filter(req)
	if err != nil {
		return Response{}, err
	}
	chunks, err := s.retriever.Retrieve(ctx, req.Message, 0, filter)
	if err != nil {
		return Response{}, err
	}

	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = withMetadata(c.Text, c.Metadata, LLMExcludedKeys)
	}
	messages := BuildMessages(req.Message, req.History, s.systemPrompt(req, ModeQuery), s.maxHistory)
	answer, err := s.llm.Generate(ctx, messages, strings.Join(passages, "\n\n"))
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate response: %w", err)
	}

	resp := Response{Text: answer, Sources: CurateSources(chunks)}
	if len(resp.Sources) == 0 {
		return resp, nil
	}
	if s.citer != nil {
		resp.Citations = s.citer.Cite(ctx, resp.Sources)
	} else {
		resp.Citations = NewCiter(nil, nil).Cite(ctx, resp.Sources)
	}
	lines := make([]string, len(resp.Citations))
	for i, c := range resp.Citations {
		lines[i] = c.String()
	}
	resp.Text += SourcesSeparator + strings.Join(lines, "\n")
	return resp, nil
}

func (s *ChatService) search(ctx context.Context, req Request) (Response, error) {
	filter, err := s.filter(req)
	if err != nil {
		return Response{}, err
	}
	chunks, err := s.retriever.Retrieve(ctx, req.Message, s.searchLimit, filter)
	if err != nil {
		return Response{}, err
	}
	sources := CurateSources(chunks)
	return Response{Text: FormatSearchResults(sources), Sources: sources}, nil
}

// FormatSearchResults lists sources as numbered entries separated by blank
// lines, the reply of Search mode.
func FormatSearchResults(sources []Source) string {
	entries := make([]string, len(sources))
	for i, src := range sources {
		entries[i] = fmt.Sprintf("%d. **%s (page %s)**\n %s", i+1, src.File, src.Page, src.Text)
	}
	return strings.Join(entries, "\n\n\n")
}

func (s *ChatService) chat(ctx context.Context, req Request) (Response, error) {
	if s.llm == nil {
		return Response{}, fmt.Errorf("chat mode needs a language model")
	}
	messages := BuildMessages(req.Message, req.History, s.systemPrompt(req, ModeChat), s.maxHistory)
	answer, err := s.llm.Generate(ctx, messages, "")
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate response: %w", err)
	}
	return Response{Text: answer}, nil
}
