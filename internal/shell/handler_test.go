package shell

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsdash/internal/output"
	"adsdash/internal/services"
	"adsdash/internal/storage"
	"adsdash/internal/testutils"
	"adsdash/internal/widget"
	"adsdash/pkg/adtypes"
)

type shellFixture struct {
	backend *testutils.FakeBackend
	shell   *Shell
	out     *output.CaptureBuffer
	store   *storage.MemoryStore
}

// setupShell registers fresh services against a fake backend and logs in.
func setupShell(t *testing.T, editor string) *shellFixture {
	t.Helper()

	previous := services.GetGlobalRegistry()
	services.SetGlobalRegistry(services.NewRegistry())
	t.Cleanup(func() { services.SetGlobalRegistry(previous) })

	backend := testutils.NewFakeBackend(t)
	cfg := services.NewConfigurationService(
		services.WithConfigDir(t.TempDir()),
		services.WithWorkDir(t.TempDir()),
	)
	cfg.Set(services.ConfigAPIBaseURL, backend.URL())
	cfg.Set(services.ConfigTheme, "plain")

	store := storage.NewMemoryStore()
	require.NoError(t, InitializeServices(Options{Config: cfg, Store: store, Editor: editor}))

	auth, err := services.GetGlobalAuthService()
	require.NoError(t, err)
	require.True(t, auth.Login(context.Background(), "alice", "secret").Success)

	out := output.NewCaptureBuffer()
	sh, err := NewFromRegistry(output.NewPrinter(output.WithWriter(out), output.PlainText()), output.NewRenderer(nil, true), 100)
	require.NoError(t, err)

	editorService, err := services.GetGlobalEditorService()
	require.NoError(t, err)
	t.Cleanup(func() { _ = editorService.Cleanup() })

	return &shellFixture{backend: backend, shell: sh, out: out, store: store}
}

func (f *shellFixture) run(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	require.NoError(t, f.shell.Execute(context.Background(), line))
	return f.out.String()
}

func (f *shellFixture) current(t *testing.T) adtypes.Conversation {
	t.Helper()
	conversations, err := services.GetGlobalConversationService()
	require.NoError(t, err)
	conv, ok := conversations.Current()
	require.True(t, ok)
	return conv
}

func TestInitializeServices(t *testing.T) {
	f := setupShell(t, "")

	assert.Equal(t, []string{"api", "auth", "chat", "configuration", "conversations", "debug-transport", "editor", "markdown",
		"prompt_color", "rules", "temporal-display", "theme"},
		services.GetGlobalRegistry().Names())
	assert.Equal(t, "adsdash> ", f.shell.prompt, "the plain theme strips the prompt colors")

	conv := f.current(t)
	assert.Equal(t, services.Greeting, conv.Messages[0].Content, "a fresh store starts with a greeting conversation")
	assert.Equal(t, []string{"copy", "delete", "enable-all", "exit", "experts", "export", "fullscreen", "help", "import",
		"list", "move", "new", "rename", "resize", "rule", "scan", "show", "switch"}, f.shell.Commands())
}

func TestInitializeServices_RequiresStore(t *testing.T) {
	err := InitializeServices(Options{})
	assert.EqualError(t, err, "no storage configured")
}

func TestShell_SendStreamsAnswer(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"Brand ", "ROAS fell ", "40%"}

	out := f.run(t, "analyze Brand")
	assert.Equal(t, "Agent:\nBrand ROAS fell 40%\n", out)

	conv := f.current(t)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, adtypes.Message{Role: adtypes.RoleAgent, Content: "Brand ROAS fell 40%"}, last)
	assert.Equal(t, adtypes.Message{Role: adtypes.RoleUser, Content: "analyze Brand"}, conv.Messages[len(conv.Messages)-2])
}

func TestShell_SendShowsWaitingTimer(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"ROAS is stable"}

	themes, err := services.GetGlobalThemeService()
	require.NoError(t, err)
	f.shell.printer = output.NewPrinter(output.WithWriter(f.out), output.WithTheme(themes.GetThemeByName("default")))
	require.False(t, f.shell.printer.Plain())
	timer := output.NewCaptureBuffer()
	f.shell.waiting = services.NewTemporalDisplayService(timer, services.WithRefreshInterval(time.Millisecond))

	out := f.run(t, "how is ROAS?")
	assert.Contains(t, out, "ROAS is stable")
	assert.False(t, f.shell.waiting.IsActive(waitingDisplay), "the timer stops once the answer arrives")
	assert.Equal(t, "ROAS is stable", f.current(t).Messages[len(f.current(t).Messages)-1].Content)
}

func TestShell_SendFailureIsRecorded(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatStatus = 503

	out := f.run(t, "hello")
	assert.Contains(t, out, "Error: server error: 503")

	conv := f.current(t)
	assert.Contains(t, conv.Messages[len(conv.Messages)-1].Content, "Agent unavailable")
}

func TestShell_ScanSendsQuickScan(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"All clear"}

	f.run(t, "/scan")
	req, ok := f.backend.LastRequest("/api/chat")
	require.True(t, ok)

	var body adtypes.ChatRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, services.QuickScanPrompt, body.Message)
	assert.Len(t, body.SelectedTables, len(services.AllExperts))
}

func TestShell_CommandWordsAreQuestions(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"ok"}
	before := f.current(t)

	for _, question := range []string{"show me campaigns with falling ROAS", "new campaigns?", "delete the paused ones?", "what's my ROAS"} {
		f.run(t, question)
		conv := f.current(t)
		assert.Equal(t, before.ID, conv.ID, "%q must not change the conversation", question)
		assert.Equal(t, adtypes.Message{Role: adtypes.RoleUser, Content: question}, conv.Messages[len(conv.Messages)-2])

		req, ok := f.backend.LastRequest("/api/chat")
		require.True(t, ok)
		var body adtypes.ChatRequest
		require.NoError(t, json.Unmarshal(req.Body, &body))
		assert.Equal(t, question, body.Message)
	}
	assert.Len(t, f.current(t).Messages, 1+2*4)
}

func TestShell_CommandPrefix(t *testing.T) {
	f := setupShell(t, "")
	ctx := context.Background()

	assert.EqualError(t, f.shell.Execute(ctx, "/bogus"), "unknown command /bogus; type /help")
	assert.EqualError(t, f.shell.Execute(ctx, "/"), "missing command; type /help")

	out := f.run(t, "/help")
	assert.Contains(t, out, "/scan")
	assert.Contains(t, out, "Run the anomaly quick scan")

	stopped := false
	f.shell.stop = func() { stopped = true }
	f.run(t, "/exit")
	assert.True(t, stopped)
	f.shell.stop = nil
	f.run(t, "/exit")

	_, ok := f.backend.LastRequest("/api/chat")
	assert.False(t, ok, "commands never reach the agent")
}

func TestShell_BlankLineDoesNothing(t *testing.T) {
	f := setupShell(t, "")
	assert.Empty(t, f.run(t, "   "))
	_, ok := f.backend.LastRequest("/api/chat")
	assert.False(t, ok)
}

func TestShell_Conversations(t *testing.T) {
	f := setupShell(t, "")
	first := f.current(t)

	out := f.run(t, "/new")
	assert.Contains(t, out, "Started Analysis")
	second := f.current(t)
	assert.Greater(t, second.ID, first.ID)

	f.run(t, "/rename 2 Weekly review")
	out = f.run(t, "/list")
	assert.Contains(t, out, "Weekly review")
	assert.Contains(t, out, "* "+second.Title, "the new conversation is current")

	f.run(t, "/switch 2")
	assert.Equal(t, first.ID, f.current(t).ID)
	assert.Equal(t, "Weekly review", f.current(t).Title)

	f.run(t, "/delete")
	assert.Equal(t, second.ID, f.current(t).ID, "deleting falls back to the head of the list")

	out = f.run(t, "/delete 1")
	assert.Contains(t, out, "No conversations left")
	assert.Contains(t, f.run(t, "/list"), "No conversations")

	err := f.shell.Execute(context.Background(), "hello")
	assert.EqualError(t, err, "no conversation selected; start one with /new")
}

func TestShell_ConversationArguments(t *testing.T) {
	f := setupShell(t, "")
	ctx := context.Background()

	assert.EqualError(t, f.shell.Execute(ctx, "/switch"), "usage: /switch <n|id>")
	assert.EqualError(t, f.shell.Execute(ctx, "/switch x"), `invalid conversation "x"`)
	assert.EqualError(t, f.shell.Execute(ctx, "/switch 9"), "no conversation 9")
	assert.EqualError(t, f.shell.Execute(ctx, "/rename 1"), "usage: /rename <n|id> <title>")

	id := f.current(t).ID
	f.run(t, "/new")
	f.run(t, "/switch "+strconv.FormatInt(id, 10))
	assert.Equal(t, id, f.current(t).ID, "switch accepts a conversation id")
}

func TestShell_Experts(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"ok"}

	out := f.run(t, "/experts age seo")
	assert.Contains(t, out, "[ ] 🎂 Age Demographics")
	assert.Contains(t, out, "[x]")

	f.run(t, "hi")
	req, _ := f.backend.LastRequest("/api/chat")
	var body adtypes.ChatRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.NotContains(t, body.SelectedTables, "age")
	assert.NotContains(t, body.SelectedTables, "seo")

	assert.Contains(t, f.run(t, "/enable-all"), "All 12 experts selected")
	assert.NotContains(t, f.run(t, "/experts"), "[ ]")

	assert.Error(t, f.shell.Execute(context.Background(), "/experts nope"))
}

func TestShell_Rules(t *testing.T) {
	f := setupShell(t, "")
	f.backend.Prompts["age"] = "Flag CPA spikes"
	f.backend.ChatChunks = []string{"ok"}
	ctx := context.Background()

	out := f.run(t, "/rule age")
	assert.Contains(t, out, "age rule (default):")
	assert.Contains(t, out, "Flag CPA spikes")

	assert.Contains(t, f.run(t, "/rule age diff"), "default prompt is in use")

	f.run(t, "/rule age save Flag CPA above 40")
	out = f.run(t, "/rule age")
	assert.Contains(t, out, "age rule (saved):")
	assert.Contains(t, out, "Flag CPA above 40")
	assert.Equal(t, "- Flag CPA spikes\n+ Flag CPA above 40\n", f.run(t, "/rule age diff"))

	f.run(t, "/rule age once Focus on 18-24")
	f.run(t, "hi")
	req, _ := f.backend.LastRequest("/api/chat")
	var body adtypes.ChatRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, map[string]string{"age": "Focus on 18-24"}, body.RuleOverrides)

	f.run(t, "hi")
	req, _ = f.backend.LastRequest("/api/chat")
	body = adtypes.ChatRequest{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Empty(t, body.RuleOverrides, "a one-shot rule applies to one send")

	assert.ErrorIs(t, f.shell.Execute(ctx, "/rule age once"), services.ErrBlankRule)
	assert.EqualError(t, f.shell.Execute(ctx, "/rule bogus"), `unknown domain "bogus"`)
	assert.EqualError(t, f.shell.Execute(ctx, "/rule age shout"), `unknown rule action "shout"`)
	assert.Error(t, f.shell.Execute(ctx, "/rule"))
}

func TestShell_RuleEdit(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fake-editor.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'Ignore brand terms' > \"$1\"\n"), 0o755))

	f := setupShell(t, script)
	f.backend.Prompts["search_term"] = "Flag wasted spend"

	assert.Contains(t, f.run(t, "/rule search_term edit"), "Rule saved")
	assert.Contains(t, f.run(t, "/rule search_term"), "Ignore brand terms")
}

func TestShell_Window(t *testing.T) {
	f := setupShell(t, "")
	w := f.shell.Window()
	ctx := context.Background()

	g := w.Geometry()
	assert.True(t, g.Open)
	assert.Equal(t, widget.Size{Width: widget.DefaultWidth, Height: widget.DefaultHeight}, g.Size)
	assert.Equal(t, 45, f.shell.wrapWidth())

	assert.Contains(t, f.run(t, "/resize 600 700"), "Window: 600x700")
	assert.Equal(t, 60, f.shell.wrapWidth())

	f.run(t, "/resize se 50 20")
	assert.Equal(t, widget.Size{Width: 650, Height: 720}, w.Geometry().Size)

	f.run(t, "/resize w 400 0")
	assert.Equal(t, 650, w.Geometry().Size.Width, "shrinking below the minimum from the west is ignored")

	before := w.Geometry().Position
	f.run(t, "/move -100 -50")
	assert.Equal(t, widget.Point{X: before.X - 100, Y: before.Y - 50}, w.Geometry().Position)
	assert.Equal(t, widget.Idle, w.State())
	assert.Zero(t, f.shell.pointer.Subscribers(), "no listener outlives its gesture")

	assert.Contains(t, f.run(t, "/fullscreen"), "fullscreen, wrap 100")
	assert.EqualError(t, f.shell.Execute(ctx, "/resize 500 500"), "cannot resize in fullscreen")
	assert.EqualError(t, f.shell.Execute(ctx, "/move 1 1"), "cannot move in fullscreen")
	f.run(t, "/fullscreen")
	assert.Equal(t, 65, f.shell.wrapWidth())

	assert.Error(t, f.shell.Execute(ctx, "/resize x 1 1"))
	assert.Error(t, f.shell.Execute(ctx, "/resize 1"))
	assert.Error(t, f.shell.Execute(ctx, "/move a b"))
}

func TestShell_Copy(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"Pause Brand"}
	f.run(t, "hi")

	var copied string
	f.shell.clipboard = func(text string) error {
		copied = text
		return nil
	}
	assert.Contains(t, f.run(t, "/copy"), "Copied 11 characters to clipboard")
	assert.Equal(t, "Pause Brand", copied)
	assert.Empty(t, f.shell.Clipped())

	f.shell.clipboard = func(string) error { return errors.New("no display") }
	out := f.run(t, "/copy")
	assert.Contains(t, out, "Failed to copy to clipboard: no display")
	assert.Contains(t, out, "Pause Brand")
	assert.Equal(t, "Pause Brand", f.shell.Clipped())
}

func TestShell_CopyGreeting(t *testing.T) {
	f := setupShell(t, "")
	f.run(t, "/new")
	conv := f.current(t)
	require.Len(t, conv.Messages, 1)

	var copied string
	f.shell.clipboard = func(text string) error {
		copied = text
		return nil
	}
	f.run(t, "/copy")
	assert.Equal(t, services.Greeting, copied)
}

func TestShell_ExportImport(t *testing.T) {
	f := setupShell(t, "")
	f.backend.ChatChunks = []string{"Pause Brand"}
	f.run(t, "hi")
	f.run(t, "/rename 1 Brand audit")

	path := filepath.Join(t.TempDir(), "brand.json")
	assert.Contains(t, f.run(t, "/export "+path), "Exported to "+path)

	f.run(t, "/delete")
	f.run(t, "/new")
	assert.Contains(t, f.run(t, "/import "+path), `Imported "Brand audit"`)

	conv := f.current(t)
	assert.Equal(t, "Brand audit", conv.Title)
	assert.Equal(t, "Pause Brand", conv.Messages[len(conv.Messages)-1].Content)

	assert.Error(t, f.shell.Execute(context.Background(), "/import "+filepath.Join(t.TempDir(), "missing.json")))
	assert.EqualError(t, f.shell.Execute(context.Background(), "/export"), "usage: /export <file>")
}

func TestShell_Show(t *testing.T) {
	f := setupShell(t, "")
	out := f.run(t, "/show")
	assert.Contains(t, out, "Agent:")
	assert.Contains(t, out, "AdsManager Expert System")
}

func TestPointer_UnsubscribeDuringEmit(t *testing.T) {
	p := newPointer()
	calls := 0
	var unsubscribe func()
	unsubscribe = p.Subscribe(func(widget.PointerEvent) {
		calls++
		unsubscribe()
	})
	p.emit(widget.PointerEvent{Kind: widget.PointerUp})
	p.emit(widget.PointerEvent{Kind: widget.PointerUp})
	assert.Equal(t, 1, calls)
	assert.Zero(t, p.Subscribers())
}
