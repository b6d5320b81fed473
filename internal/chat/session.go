package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/history"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// CommandFunc defines the function signature for executing a command.
type CommandFunc func(ctx context.Context, session *Session, input string)

// Command represents an abstract command with a name, a matching function, and an execution function.
type Command struct {
	// Name of the command.
	//
	// If Matches is nil, the command is executed when the input matches the name.
	Name string

	// Description of the command.
	Description string

	// Matches is a function that checks if the command matches the input.
	//
	// If Matches is nil, the command is executed when the input matches the name.
	// If Matches is not nil, the command is executed when Matches returns true.
	Matches func(input string) bool

	// Run is the function that executes the command.
	Run CommandFunc
}

// builtinCommands are the built-in commands available in the chat session,
// used for managing the conversation and session state.
var builtinCommands = []Command{
	{
		Name:        "exit",
		Description: "Exit the chat session.",
		// Exiting is handled by RunOnce, listed for help output.
	},
	{
		Name:        "clear",
		Description: "Clear the terminal screen.",
		Run: func(ctx context.Context, s *Session, input string) {
			s.clearScreen()
		},
	},
	{
		Name:        "erase",
		Description: "Forget the current conversation.",
		Run: func(ctx context.Context, s *Session, input string) {
			s.Messages = s.Messages[:0]
			s.TokensUsed = 0
			s.OutWriter.WriteString("Conversation erased.\n")
		},
	},
	{
		Name:        "delete",
		Description: "Delete the last message.",
		Run: func(ctx context.Context, s *Session, input string) {
			if len(s.Messages) > 0 {
				s.Messages = s.Messages[:len(s.Messages)-1]
			}
		},
	},
	{
		Name:        "system",
		Description: "Add a system message, as 'system: <text>'.",
		Matches: func(input string) bool {
			return strings.HasPrefix(strings.TrimSpace(input), "system:")
		},
		Run: func(ctx context.Context, s *Session, input string) {
			content := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "system:"))
			s.Messages = append(s.Messages, miktos.Message{Role: miktos.ChatRoleSystem, Content: content})
			s.OutWriter.WriteString("System context updated.\n")
		},
	},
	{
		Name:        "help",
		Description: "Show help for commands.",
		Run: func(ctx context.Context, s *Session, input string) {
			s.ShowHelp()
		},
	},
	{
		Name:        "tokens",
		Description: "Show the number of tokens reported by the server.",
		Run: func(ctx context.Context, s *Session, input string) {
			s.OutWriter.WriteString(fmt.Sprintf("Tokens used: %d\n", s.TokensUsed))
		},
	},
	{
		Name:        "messages",
		Description: "Show the messages sent with the next request.",
		Run: func(ctx context.Context, s *Session, input string) {
			for _, msg := range s.Messages {
				s.OutWriter.WriteString(fmt.Sprintf("\n\t%s: %s\n", msg.Role, msg.Content))
			}
		},
	},
	{
		Name: "history",
		Matches: func(input string) bool {
			// Matches "history" or "history <number>".
			fields := strings.Fields(input)
			switch {
			case len(fields) == 1:
				return fields[0] == "history"
			case len(fields) == 2 && fields[0] == "history":
				_, err := strconv.Atoi(fields[1])
				return err == nil
			default:
				return false
			}
		},
		Description: "Show the oldest recorded generations, as 'history [n]'.",
		Run: func(ctx context.Context, s *Session, input string) {
			if s.History == nil {
				s.OutWriter.WriteString("History is disabled.\n")
				return
			}

			numToShow := 10
			if fields := strings.Fields(input); len(fields) == 2 {
				numToShow, _ = strconv.Atoi(fields[1])
			}

			if numToShow <= 0 {
				s.OutWriter.WriteString("Invalid number of records to show.\n")
				return
			}

			records, _, err := s.History.List(ctx, numToShow, nil)
			if err != nil {
				s.OutWriter.WriteString(fmt.Sprintf("Error listing history: %s\n", err))
				return
			}

			for id, rec := range records {
				s.OutWriter.WriteString(fmt.Sprintf("\t%s (%s, %s)\n\n", id, rec.ProjectID, rec.Model))
				s.OutWriter.WriteString(fmt.Sprintf("\t%s: %s\n\n", miktos.ChatRoleUser, rec.Prompt()))
				s.OutWriter.WriteString(fmt.Sprintf("\t%s: %s\n\n", miktos.ChatRoleAssistant, rec.Response))
				s.OutWriter.WriteString("---\n")
			}
		},
	},
}

// Session encapsulates the state and behavior of a CLI chat session
// against one project. It manages terminal I/O, the conversation sent with
// each request, and command processing.
type Session struct {
	Client      *miktos.Client
	ProjectID   string
	Model       miktos.Model
	Temperature *float64
	MaxTokens   *int

	// Stream prints chunks as they arrive instead of rendering the whole
	// reply as markdown.
	Stream bool

	// History records every exchange when non-nil.
	History *history.Log

	Messages   []miktos.Message
	TokensUsed int

	Terminal   *term.Terminal
	OutWriter  *bufio.Writer
	TermWidth  int
	TermHeight int
	Commands   []Command
}

// NewSession creates and initializes a new chat session.
//
// If w is a terminal, it is put in raw mode and a restoration function is
// returned to restore its state on exit.
func NewSession(ctx context.Context, client *miktos.Client, projectID string, model miktos.Model, r io.Reader, w io.Writer, h *history.Log) (*Session, func(), error) {
	var (
		restoreFunc     = func() {}
		termWidth   int = 80
		termHeight  int = 24
	)

	if stdout, ok := w.(*os.File); ok && term.IsTerminal(int(stdout.Fd())) {
		fd := int(stdout.Fd())

		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set terminal to raw mode: %w", err)
		}

		restoreFunc = func() {
			if err := term.Restore(fd, oldState); err != nil {
				log.Error().Err(err).Msg("failed to restore terminal")
			}
		}

		termWidth, termHeight, err = term.GetSize(fd)
		if err != nil {
			restoreFunc()
			return nil, nil, fmt.Errorf("failed to get terminal size while creating new chat session: %w", err)
		}
	}

	termReadWriter := struct {
		io.Reader
		io.Writer
	}{r, w}

	t := term.NewTerminal(termReadWriter, "")
	t.SetSize(termWidth, termHeight)

	cs := &Session{
		Client:     client,
		ProjectID:  projectID,
		Model:      model,
		History:    h,
		Messages:   []miktos.Message{},
		Terminal:   t,
		OutWriter:  bufio.NewWriter(t),
		TermWidth:  termWidth,
		TermHeight: termHeight,
		Commands:   builtinCommands,
	}

	t.AutoCompleteCallback = cs.autoComplete

	return cs, restoreFunc, nil
}

func (cs *Session) ShowHelp() {
	cs.OutWriter.WriteString(lipgloss.NewStyle().Bold(true).Render("Commands") + " " +
		lipgloss.NewStyle().Faint(true).Render("(tab complete)") + "\n\n")

	for _, cmd := range cs.Commands {
		cs.OutWriter.WriteString("- " + lipgloss.NewStyle().Faint(true).Render(cmd.Name) + ": " + cmd.Description + "\n")
	}

	cs.OutWriter.WriteString("\nUse '" + lipgloss.NewStyle().Faint(true).Render("#file:path") +
		"' to include file content in a message.\n\n")

	cs.OutWriter.Flush()
}

// Run starts the main loop of the chat session. It returns when the user
// exits, input ends, or ctx is cancelled.
func (cs *Session) Run(ctx context.Context) {
	cs.clearScreen()

	cs.OutWriter.WriteString(lipgloss.NewStyle().Bold(true).Render("Miktos chat") + " " +
		lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("project %s, model %s", cs.ProjectID, cs.Model)) + "\n\n")
	cs.ShowHelp()

	for ctx.Err() == nil {
		done, err := cs.RunOnce(ctx)
		if err != nil {
			cs.OutWriter.WriteString(fmt.Sprintf("Error: %s\n", err))
			cs.OutWriter.Flush()
		}

		if done {
			break
		}
	}

	if cs.History != nil {
		if err := cs.History.Flush(ctx); err != nil {
			log.Error().Err(err).Msg("failed to flush history")
		}
	}
}

func doneWithoutError() (bool, error) {
	return true, nil
}

func nonFatalError(err error) (bool, error) {
	return false, err
}

func fatalError(err error) (bool, error) {
	return true, err
}

func ranSuccessfully() (bool, error) {
	return false, nil
}

// RunOnce reads one line of input and handles it, reporting whether the
// session is done.
func (cs *Session) RunOnce(ctx context.Context) (bool, error) {
	cs.OutWriter.WriteString("‣ ")
	cs.OutWriter.Flush()

	input, err := cs.Terminal.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return doneWithoutError()
		}
		return fatalError(fmt.Errorf("failed to read input: %w", err))
	}

	if strings.TrimSpace(input) == "exit" {
		return doneWithoutError()
	}

	if strings.TrimSpace(input) == "" {
		return ranSuccessfully()
	}

	if cs.runCommand(ctx, input) {
		return ranSuccessfully()
	}

	input, err = expandFiles(input)
	if err != nil {
		return nonFatalError(err)
	}

	if err := cs.generate(ctx, miktos.Message{Role: miktos.ChatRoleUser, Content: input}); err != nil {
		return nonFatalError(fmt.Errorf("generate request error: %w", err))
	}

	return ranSuccessfully()
}

// runCommand executes the first command matching input, if any.
func (cs *Session) runCommand(ctx context.Context, input string) bool {
	defer cs.OutWriter.Flush()

	for _, cmd := range cs.Commands {
		if cmd.Run == nil {
			continue
		}
		switch {
		case cmd.Matches == nil:
			if strings.TrimSpace(input) == cmd.Name {
				cmd.Run(ctx, cs, input)
				return true
			}
		case cmd.Matches(input):
			cmd.Run(ctx, cs, input)
			return true
		}
	}
	return false
}

// expandFiles replaces each #file:path token in input with that file's contents.
func expandFiles(input string) (string, error) {
	if !strings.Contains(input, "#file:") {
		return input, nil
	}

	for _, field := range strings.Fields(input) {
		filePath, ok := strings.CutPrefix(field, "#file:")
		if !ok {
			continue
		}

		b, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read file %q: %w", filePath, err)
		}

		input = strings.Replace(input, field, string(b), 1)
	}

	return input, nil
}

// generate sends the conversation plus next to the API and prints the reply.
// The conversation only grows when the generation succeeds.
func (cs *Session) generate(ctx context.Context, next miktos.Message) error {
	messages := append(cs.Messages[:len(cs.Messages):len(cs.Messages)], next)

	req := &miktos.GenerateTextRequest{
		ProjectID:   cs.ProjectID,
		Model:       cs.Model,
		Messages:    messages,
		Temperature: cs.Temperature,
		MaxTokens:   cs.MaxTokens,
	}

	var reply strings.Builder

	if cs.Stream {
		err := cs.Client.StreamText(ctx, req, func(chunk string) error {
			reply.WriteString(chunk)
			cs.OutWriter.WriteString(chunk)
			return cs.OutWriter.Flush()
		})
		cs.OutWriter.WriteString("\n")
		cs.OutWriter.Flush()
		if err != nil {
			return err
		}
	} else {
		gen, err := cs.Client.GenerateText(ctx, req)
		if err != nil {
			return err
		}
		reply.WriteString(gen.Content)
		if gen.Usage != nil {
			cs.TokensUsed += gen.Usage.TotalTokens
		}

		rendered, err := RenderMarkdown(strings.TrimRight(gen.Content, "\n"), cs.TermWidth)
		if err != nil {
			rendered = gen.Content + "\n"
		}
		cs.OutWriter.WriteString(rendered)
		cs.OutWriter.Flush()
	}

	cs.Messages = append(messages, miktos.Message{Role: miktos.ChatRoleAssistant, Content: reply.String()})

	if cs.History == nil {
		return nil
	}

	if _, err := cs.History.Append(ctx, history.Record{
		ProjectID: cs.ProjectID,
		Model:     cs.Model,
		Messages:  messages,
		Response:  reply.String(),
		Streamed:  cs.Stream,
	}); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// clearScreen clears the terminal.
func (cs *Session) clearScreen() {
	cs.OutWriter.WriteString("\033[2J") // Clear the screen.
	cs.OutWriter.WriteString("\033[H")  // Move cursor to the top-left corner.
	cs.OutWriter.Flush()
}

// autoComplete provides basic tab-completion for common commands.
func (cs *Session) autoComplete(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' {
		return line, pos, false
	}

	for _, cmd := range cs.Commands {
		if strings.HasPrefix(cmd.Name, line) {
			return cmd.Name, len(cmd.Name), true
		}
	}
	return line, pos, false
}
