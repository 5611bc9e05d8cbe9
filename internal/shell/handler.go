// Package shell provides the interactive chat shell of adsdash. Lines starting with
// CommandPrefix run shell commands; every other line is sent to the analysis agent.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"

	"adsdash/internal/logger"
	"adsdash/internal/output"
	"adsdash/internal/services"
	"adsdash/internal/widget"
	"adsdash/pkg/adtypes"
)

// defaultColumns is the terminal width assumed when none is known.
const defaultColumns = 120

const waitingDisplay = "agent-wait"

// CommandPrefix marks a line as a shell command.
const CommandPrefix = "/"

type command struct {
	help string
	run  func(ctx context.Context, args []string) error
}

// Deps are the services the shell drives.
type Deps struct {
	Chat          *services.ChatService
	Conversations *services.ConversationService
	Rules         *services.RuleService
	Editor        *services.EditorService
	Markdown      *services.MarkdownService
	// Waiting shows the elapsed time until the agent's first chunk. Optional.
	Waiting  *services.TemporalDisplayService
	Renderer *output.Renderer
	Printer  *output.Printer
	// Prompt is the rendered input prompt.
	Prompt string
	// Columns is the terminal width.
	Columns int
}

// Shell is the chat shell state: the services it drives and the chat window geometry.
type Shell struct {
	chat          *services.ChatService
	conversations *services.ConversationService
	rules         *services.RuleService
	editor        *services.EditorService
	markdown      *services.MarkdownService
	waiting       *services.TemporalDisplayService
	renderer      *output.Renderer
	printer       *output.Printer
	prompt        string

	columns   int
	window    *widget.Window
	pointer   *pointer
	clipboard func(string) error
	clipped   string
	commands  map[string]command
	// stop ends the interactive loop; set by Run.
	stop func()
}

// New creates a Shell with the chat window open.
func New(deps Deps) (*Shell, error) {
	if deps.Chat == nil || deps.Conversations == nil || deps.Rules == nil {
		return nil, fmt.Errorf("shell needs the chat, conversation and rule services")
	}
	if deps.Printer == nil {
		deps.Printer = output.NewPrinter()
	}
	if deps.Renderer == nil {
		deps.Renderer = output.NewRenderer(nil, true)
	}
	if deps.Columns <= 0 {
		deps.Columns = defaultColumns
	}
	if deps.Prompt == "" {
		deps.Prompt = services.StripPromptMarkup(services.DefaultPrompt)
	}

	s := &Shell{
		chat:          deps.Chat,
		conversations: deps.Conversations,
		rules:         deps.Rules,
		editor:        deps.Editor,
		markdown:      deps.Markdown,
		waiting:       deps.Waiting,
		renderer:      deps.Renderer,
		printer:       deps.Printer,
		prompt:        deps.Prompt,
		columns:       deps.Columns,
		pointer:       newPointer(),
		clipboard:     writeClipboard,
	}
	s.window = widget.New(widget.Size{Width: deps.Columns * cellWidth, Height: viewportHeight}, s.pointer)
	s.window.Open()
	if err := s.rewrap(); err != nil {
		return nil, err
	}
	s.commands = s.commandTable()
	return s, nil
}

// NewFromRegistry creates a Shell over the services of the global registry.
func NewFromRegistry(printer *output.Printer, renderer *output.Renderer, columns int) (*Shell, error) {
	chat, err := services.GetGlobalChatService()
	if err != nil {
		return nil, err
	}
	conversations, err := services.GetGlobalConversationService()
	if err != nil {
		return nil, err
	}
	rules, err := services.GetGlobalRuleService()
	if err != nil {
		return nil, err
	}
	deps := Deps{
		Chat:          chat,
		Conversations: conversations,
		Rules:         rules,
		Renderer:      renderer,
		Printer:       printer,
		Columns:       columns,
	}
	if editor, err := services.GetGlobalEditorService(); err == nil {
		deps.Editor = editor
	}
	if markdown, err := services.GetGlobalMarkdownService(); err == nil {
		deps.Markdown = markdown
	}
	if waiting, err := services.GetGlobalTemporalDisplayService(); err == nil {
		deps.Waiting = waiting
	}
	if prompt, err := services.GetGlobalPromptColorService(); err == nil {
		deps.Prompt = prompt.Prompt()
	}
	return New(deps)
}

func (s *Shell) commandTable() map[string]command {
	noCtx := func(fn func([]string) error) func(context.Context, []string) error {
		return func(_ context.Context, args []string) error { return fn(args) }
	}
	return map[string]command{
		"help":       {"List the shell commands", noCtx(s.helpCmd)},
		"exit":       {"Leave the chat shell", noCtx(s.exitCmd)},
		"scan":       {"Run the anomaly quick scan", func(ctx context.Context, _ []string) error { return s.send(ctx, "") }},
		"new":        {"Start a new conversation", noCtx(s.newCmd)},
		"list":       {"List conversations", noCtx(s.listCmd)},
		"switch":     {"Switch conversation: /switch <n|id>", noCtx(s.switchCmd)},
		"rename":     {"Rename a conversation: /rename <n|id> <title>", noCtx(s.renameCmd)},
		"delete":     {"Delete a conversation: /delete [n|id]", noCtx(s.deleteCmd)},
		"show":       {"Show the current conversation", noCtx(s.showCmd)},
		"experts":    {"List experts, or toggle them: /experts [id...]", noCtx(s.expertsCmd)},
		"enable-all": {"Select every expert", noCtx(s.enableAllCmd)},
		"rule":       {"Analysis rules: /rule <domain> [once <text>|save <text>|edit|diff]", s.ruleCmd},
		"fullscreen": {"Toggle fullscreen", noCtx(s.fullscreenCmd)},
		"resize":     {"Resize the window: /resize <w> <h> | /resize <handle> <dx> <dy>", noCtx(s.resizeCmd)},
		"move":       {"Move the window: /move <dx> <dy>", noCtx(s.moveCmd)},
		"copy":       {"Copy the last agent answer to the clipboard", noCtx(s.copyCmd)},
		"export":     {"Export the current conversation: /export <file>", noCtx(s.exportCmd)},
		"import":     {"Import a conversation: /import <file>", noCtx(s.importCmd)},
	}
}

// Commands returns the shell command names, sorted and without the prefix.
func (s *Shell) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one line of input: a shell command when it starts with CommandPrefix,
// otherwise a message to the agent. Blank lines do nothing.
func (s *Shell) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, CommandPrefix) {
		return s.send(ctx, line)
	}
	fields := strings.Fields(strings.TrimPrefix(line, CommandPrefix))
	if len(fields) == 0 {
		return fmt.Errorf("missing command; type %shelp", CommandPrefix)
	}
	cmd, ok := s.commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %s%s; type %shelp", CommandPrefix, fields[0], CommandPrefix)
	}
	return cmd.run(ctx, fields[1:])
}

// Window returns the chat window state.
func (s *Shell) Window() *widget.Window {
	return s.window
}

// Clipped returns the text of the last copy that could not reach the system clipboard.
func (s *Shell) Clipped() string {
	return s.clipped
}

// Run starts the interactive shell and blocks until the input ends or /exit.
func (s *Shell) Run(ctx context.Context, banner string) {
	sh := ishell.New()
	sh.SetPrompt(s.prompt)
	defer sh.Close()

	stopped := false
	s.stop = func() { stopped = true }
	defer func() { s.stop = nil }()

	sh.Println(banner)
	sh.Printf("Type a question for the agent, %sscan for a quick scan, %shelp for commands.\n", CommandPrefix, CommandPrefix)
	if conv, ok := s.conversations.Current(); ok {
		s.printer.Print(s.renderer.Transcript(conv, s.markdown))
	}

	// Lines are read raw: ishell's own loop tokenizes them and rejects unbalanced quotes.
	for !stopped {
		line, err := sh.ReadLineErr()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Debug("Discarded interrupted line", "error", err)
			continue
		}
		s.report(line, s.Execute(ctx, line))
	}
}

func (s *Shell) report(line string, err error) {
	if err == nil {
		return
	}
	logger.Error("Shell input failed", "input", line, "error", err)
	s.printer.Error(err.Error())
}

// send streams the agent answer to the terminal as it grows.
func (s *Shell) send(ctx context.Context, input string) error {
	shown := ""
	s.printer.Println("Agent:")

	// The timer shares the terminal line, so it only runs on styled output.
	waiting := s.waiting != nil && !s.printer.Plain()
	if waiting {
		if err := s.waiting.StartTimer(waitingDisplay, "thinking…"); err != nil {
			logger.Debug("Waiting display unavailable", "error", err)
			waiting = false
		}
	}
	stopWaiting := func() {
		if waiting {
			s.waiting.Stop(waitingDisplay)
			waiting = false
		}
	}

	err := s.chat.Send(ctx, input, func(content string) {
		stopWaiting()
		if strings.HasPrefix(content, shown) {
			s.printer.Print(content[len(shown):])
		} else {
			s.printer.Print("\n" + content)
		}
		shown = content
	})
	stopWaiting()
	s.printer.Println("")
	if errors.Is(err, services.ErrNoConversation) {
		return fmt.Errorf("no conversation selected; start one with %snew", CommandPrefix)
	}
	return err
}

func (s *Shell) helpCmd(_ []string) error {
	var b strings.Builder
	for _, name := range s.Commands() {
		fmt.Fprintf(&b, "%s%-12s %s\n", CommandPrefix, name, s.commands[name].help)
	}
	s.printer.Print(b.String())
	return nil
}

func (s *Shell) exitCmd(_ []string) error {
	if s.stop != nil {
		s.stop()
	}
	return nil
}

func (s *Shell) newCmd(_ []string) error {
	conv, err := s.conversations.New()
	if err != nil {
		return err
	}
	s.printer.Success("Started " + conv.Title)
	s.printer.Print(s.renderer.Transcript(conv, s.markdown))
	return nil
}

func (s *Shell) listCmd(_ []string) error {
	list := s.conversations.List()
	if len(list) == 0 {
		s.printer.Info("No conversations")
		return nil
	}
	var current int64
	if conv, ok := s.conversations.Current(); ok {
		current = conv.ID
	}
	s.printer.Print(s.renderer.Conversations(list, current))
	return nil
}

// resolve maps a 1-based list position or a conversation id to an id.
func (s *Shell) resolve(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid conversation %q", arg)
	}
	list := s.conversations.List()
	if n >= 1 && n <= int64(len(list)) {
		return list[n-1].ID, nil
	}
	for _, c := range list {
		if c.ID == n {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no conversation %s", arg)
}

func (s *Shell) currentOr(args []string) (int64, error) {
	if len(args) > 0 {
		return s.resolve(args[0])
	}
	conv, ok := s.conversations.Current()
	if !ok {
		return 0, fmt.Errorf("no conversation selected")
	}
	return conv.ID, nil
}

func (s *Shell) switchCmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /switch <n|id>")
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if err := s.conversations.Select(id); err != nil {
		return err
	}
	conv, _ := s.conversations.Current()
	s.printer.Print(s.renderer.Transcript(conv, s.markdown))
	return nil
}

func (s *Shell) renameCmd(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: /rename <n|id> <title>")
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if err := s.conversations.BeginRename(id); err != nil {
		return err
	}
	s.conversations.SetDraft(strings.Join(args[1:], " "))
	if err := s.conversations.CommitRename(); err != nil {
		return err
	}
	s.printer.Success("Renamed")
	return nil
}

func (s *Shell) deleteCmd(args []string) error {
	id, err := s.currentOr(args)
	if err != nil {
		return err
	}
	if err := s.conversations.Delete(id); err != nil {
		return err
	}
	s.printer.Success("Deleted")
	if _, ok := s.conversations.Current(); !ok {
		s.printer.Info("No conversations left; start one with " + CommandPrefix + "new")
	}
	return nil
}

func (s *Shell) showCmd(_ []string) error {
	conv, ok := s.conversations.Current()
	if !ok {
		return fmt.Errorf("no conversation selected")
	}
	s.printer.Print(s.renderer.Transcript(conv, s.markdown))
	return nil
}

func (s *Shell) expertsCmd(args []string) error {
	experts := s.chat.Experts()
	for _, id := range args {
		if _, err := experts.Toggle(id); err != nil {
			return err
		}
	}
	s.printer.Print(s.renderer.Experts(experts))
	return nil
}

func (s *Shell) enableAllCmd(_ []string) error {
	s.chat.Experts().EnableAll()
	s.printer.Success(fmt.Sprintf("All %d experts selected", len(services.AllExperts)))
	return nil
}

func (s *Shell) ruleCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /rule <domain> [once <text>|save <text>|edit|diff]")
	}
	domain := args[0]
	if _, ok := services.FindExpert(domain); !ok {
		return fmt.Errorf("unknown domain %q", domain)
	}

	action := "show"
	if len(args) > 1 {
		action = args[1]
	}
	text := strings.Join(args[min(2, len(args)):], " ")

	switch action {
	case "show":
		rule, custom, err := s.rules.Load(ctx, domain)
		if err != nil {
			return err
		}
		source := "default"
		if custom {
			source = "saved"
		}
		s.printer.Info(fmt.Sprintf("%s rule (%s):", domain, source))
		s.printer.Println(rule)
	case "once":
		if err := s.rules.StageEphemeral(domain, text); err != nil {
			return err
		}
		s.printer.Success("Rule applies to the next message only")
	case "save":
		if err := s.rules.CommitPersistent(ctx, domain, text); err != nil {
			return err
		}
		s.printer.Success("Rule saved")
	case "edit":
		return s.editRule(ctx, domain)
	case "diff":
		lines, err := s.rules.Diff(ctx, domain)
		if err != nil {
			return err
		}
		s.printer.Print(s.renderer.Diff(lines))
	default:
		return fmt.Errorf("unknown rule action %q", action)
	}
	return nil
}

func (s *Shell) editRule(ctx context.Context, domain string) error {
	if s.editor == nil {
		return fmt.Errorf("no editor available")
	}
	changed, err := s.rules.Edit(ctx, domain, s.editor)
	if err != nil {
		return err
	}
	if !changed {
		s.printer.Info("Rule unchanged")
		return nil
	}
	s.printer.Success("Rule saved")
	return nil
}

func (s *Shell) copyCmd(_ []string) error {
	conv, ok := s.conversations.Current()
	if !ok {
		return fmt.Errorf("no conversation selected")
	}
	answer := ""
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if m := conv.Messages[i]; m.Role == adtypes.RoleAgent && strings.TrimSpace(m.Content) != "" {
			answer = m.Content
			break
		}
	}
	if answer == "" {
		s.printer.Warning("No agent answer to copy")
		return nil
	}

	if err := s.clipboard(answer); err != nil {
		s.clipped = answer
		s.printer.Warning("Failed to copy to clipboard: " + err.Error())
		s.printer.Println(answer)
		return nil
	}
	s.clipped = ""
	s.printer.Success(fmt.Sprintf("Copied %d characters to clipboard", len(answer)))
	return nil
}

func (s *Shell) exportCmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /export <file>")
	}
	id, err := s.currentOr(nil)
	if err != nil {
		return err
	}
	if err := s.conversations.Export(id, args[0]); err != nil {
		return err
	}
	s.printer.Success("Exported to " + args[0])
	return nil
}

func (s *Shell) importCmd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /import <file>")
	}
	conv, err := s.conversations.Import(args[0])
	if err != nil {
		return err
	}
	s.printer.Success(fmt.Sprintf("Imported %q", conv.Title))
	return nil
}
