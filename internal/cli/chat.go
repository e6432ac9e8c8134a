// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/peterh/liner"

	"github.com/jeranaias/puterchat/internal/config"
	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/settings"
)

// =============================================================================
// INPUT
// =============================================================================

// errQuit ends the REPL.
var errQuit = errors.New("quit")

// lineReader reads one line of input.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// historyReader edits lines with liner and keeps history in a file.
type historyReader struct {
	line *liner.State
	file string
}

func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &historyReader{line: line, file: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.file); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *historyReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with mode 0600 and restores the terminal.
func (r *historyReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.file), 0700); err == nil {
		if f, err := os.OpenFile(r.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// plainReader reads piped input without echoing prompts.
type plainReader struct {
	sc *bufio.Scanner
}

func (r *plainReader) ReadLine(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *plainReader) Close() error { return nil }

// =============================================================================
// REPLY OUTPUT
// =============================================================================

// replyPrinter writes assistant replies as they change. Streaming content is
// printed incrementally; complete replies are printed once with code blocks
// highlighted.
type replyPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	known   map[string]bool
	printed map[string]int
}

func newReplyPrinter(out io.Writer, color bool) *replyPrinter {
	return &replyPrinter{out: out, color: color, known: map[string]bool{}, printed: map[string]int{}}
}

// mark records the messages that existed before a send.
func (p *replyPrinter) mark(snap controller.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range snap.Messages {
		p.known[m.ID] = true
	}
}

// observe prints new streaming content. It runs on the publisher goroutine.
func (p *replyPrinter) observe(snap controller.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range snap.Messages {
		if p.known[m.ID] || m.Role != model.RoleAssistant || m.State != model.StateStreaming {
			continue
		}
		p.writeDelta(m)
	}
}

func (p *replyPrinter) writeDelta(m model.Message) {
	n := p.printed[m.ID]
	if n == 0 {
		fmt.Fprint(p.out, assistantStyle.Render("Assistant: "))
	}
	if len(m.Content) > n {
		fmt.Fprint(p.out, m.Content[n:])
		p.printed[m.ID] = len(m.Content)
	}
}

// finish prints whatever the replies produced by the last send still need.
func (p *replyPrinter) finish(snap controller.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range snap.Messages {
		if p.known[m.ID] || m.Role != model.RoleAssistant {
			continue
		}
		p.known[m.ID] = true

		switch {
		case m.State == model.StateFailed:
			if p.printed[m.ID] > 0 {
				fmt.Fprintln(p.out)
			}
		case m.Kind == model.KindImage:
			fmt.Fprintf(p.out, "%s%s\n", assistantStyle.Render("Image: "), m.ImageURL)
		case p.printed[m.ID] > 0:
			p.writeDelta(m)
			fmt.Fprintln(p.out)
		default:
			fmt.Fprintln(p.out, assistantStyle.Render("Assistant:"))
			writeHighlighted(p.out, m.Content, p.color)
		}
	}
}

// writeHighlighted prints markdown text, highlighting fenced code blocks
// when color is on.
func writeHighlighted(w io.Writer, text string, color bool) {
	if !color {
		fmt.Fprintln(w, text)
		return
	}

	var (
		inCode bool
		lang   string
		code   strings.Builder
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				if err := quick.Highlight(w, code.String(), lang, "terminal256", "monokai"); err != nil {
					fmt.Fprint(w, code.String())
				}
				code.Reset()
				inCode = false
				continue
			}
			inCode = true
			lang = strings.TrimPrefix(trimmed, "```")
			continue
		}
		if inCode {
			code.WriteString(line)
			code.WriteByte('\n')
			continue
		}
		fmt.Fprintln(w, line)
	}
	if inCode {
		fmt.Fprint(w, code.String())
	}
}

// =============================================================================
// REPL
// =============================================================================

// HandleChat runs a line-mode conversation on the controller.
func HandleChat(ctx context.Context, app *App, s Streams) error {
	var in lineReader
	if IsTerminal(s.In) {
		in = newHistoryReader()
	} else {
		in = &plainReader{sc: bufio.NewScanner(s.In)}
	}
	defer in.Close()

	color := IsTerminal(s.Out)
	printer := newReplyPrinter(s.Out, color)
	unsubscribe := app.Controller.Subscribe(printer.observe)
	defer unsubscribe()

	if color {
		fmt.Fprintf(s.Out, "%s %s\n", titleStyle.Render("puterchat"), dimStyle.Render("model "+app.Controller.Model()+", /help for commands"))
	}

	defer func() {
		if id, err := app.SaveTranscript(); err == nil && id != "" && color {
			fmt.Fprintln(s.Out, dimStyle.Render("Saved transcript "+id))
		}
	}()

	for ctx.Err() == nil {
		input, err := in.ReadLine(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			err := runChatCommand(ctx, app, s.Out, printer, input)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(s.Err, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := send(ctx, app, printer, input, app.Controller.Mode()); err != nil {
			fmt.Fprintf(s.Err, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
	return nil
}

// send runs one prompt and prints its reply.
func send(ctx context.Context, app *App, printer *replyPrinter, text string, mode controller.Mode) error {
	printer.mark(app.Controller.Snapshot())
	err := app.Controller.SendPrompt(ctx, text, mode)
	printer.finish(app.Controller.Snapshot())
	return err
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

type chatCommand struct {
	args string
	help string
	run  func(ctx context.Context, app *App, out io.Writer, p *replyPrinter, arg string) error
}

var chatCommands = map[string]chatCommand{
	"help":      {"", "Show commands", nil},
	"quit":      {"", "Leave the chat", func(context.Context, *App, io.Writer, *replyPrinter, string) error { return errQuit }},
	"clear":     {"", "Clear the conversation", cmdChatClear},
	"model":     {"[id]", "Show or select the model", cmdChatModel},
	"models":    {"", "List models", cmdChatModels},
	"mode":      {"[chat|image]", "Show or set the prompt mode", cmdChatMode},
	"image":     {"<prompt>", "Generate an image", cmdChatImage},
	"tools":     {"", "List tools", cmdChatTools},
	"tool":      {"<id> on|off", "Enable or disable a tool", cmdChatTool},
	"stream":    {"on|off", "Toggle streaming", cmdChatSetting("stream")},
	"functions": {"on|off", "Toggle function calling", cmdChatSetting("functions")},
	"theme":     {"<name>", "Set the theme", cmdChatTheme},
	"save":      {"", "Save the transcript", cmdChatSave},
	"login":     {"", "Sign in", cmdChatLogin},
	"logout":    {"", "Sign out", cmdChatLogout},
}

func runChatCommand(ctx context.Context, app *App, out io.Writer, p *replyPrinter, line string) error {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	switch name {
	case "exit", "q":
		name = "quit"
	case "help", "?", "h":
		printChatHelp(out)
		return nil
	}

	cmd, ok := chatCommands[name]
	if !ok {
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return cmd.run(ctx, app, out, p, arg)
}

func printChatHelp(out io.Writer) {
	names := make([]string, 0, len(chatCommands))
	for name := range chatCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := chatCommands[name]
		fmt.Fprintf(out, "  %-22s %s\n", "/"+strings.TrimSpace(name+" "+c.args), dimStyle.Render(c.help))
	}
}

func cmdChatClear(_ context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	app.Controller.Clear()
	fmt.Fprintln(out, dimStyle.Render("Conversation cleared"))
	return nil
}

func cmdChatModel(_ context.Context, app *App, out io.Writer, _ *replyPrinter, arg string) error {
	if arg == "" {
		fmt.Fprintln(out, renderKV("Model", app.Controller.Model()))
		return nil
	}
	if err := app.Controller.SelectModel(arg); err != nil {
		return err
	}
	fmt.Fprintln(out, renderKV("Model", app.Controller.Model()))
	return nil
}

func cmdChatModels(_ context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	snap := app.Controller.Snapshot()
	for _, m := range ModelsData(snap.Models, snap.Model) {
		mark := " "
		if m.Current {
			mark = "●"
		}
		fmt.Fprintf(out, "%s %-24s %s\n", mark, m.ID, dimStyle.Render(m.Capabilities))
	}
	return nil
}

func cmdChatMode(_ context.Context, app *App, out io.Writer, _ *replyPrinter, arg string) error {
	if arg != "" {
		app.Controller.SetMode(controller.ParseMode(arg))
	}
	fmt.Fprintln(out, renderKV("Mode", string(app.Controller.Mode())))
	return nil
}

func cmdChatImage(ctx context.Context, app *App, _ io.Writer, p *replyPrinter, arg string) error {
	if arg == "" {
		return ErrMissingArgument("prompt", "/image a red fox in snow")
	}
	return send(ctx, app, p, arg, controller.ModeTextToImage)
}

func cmdChatTools(_ context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	for _, t := range ToolsData(app.Controller.Tools()) {
		fmt.Fprintf(out, "%-20s %s  %s\n", t.ID, enabledLabel(t.Enabled), dimStyle.Render(t.Description))
	}
	if !app.Controller.Settings().FunctionCallingEnabled {
		fmt.Fprintln(out, warningStyle.Render("Function calling is off; tools are not sent."))
	}
	return nil
}

func cmdChatTool(_ context.Context, app *App, out io.Writer, _ *replyPrinter, arg string) error {
	id, state, _ := strings.Cut(arg, " ")
	on, err := ParseBoolString(strings.TrimSpace(state))
	if id == "" || err != nil {
		return ErrMissingArgument("tool", "/tool search on")
	}
	t, err := app.Controller.ToggleTool(id, on)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderKV(t.Name, enabledLabel(t.Enabled)))
	return nil
}

func cmdChatSetting(which string) func(context.Context, *App, io.Writer, *replyPrinter, string) error {
	return func(_ context.Context, app *App, out io.Writer, _ *replyPrinter, arg string) error {
		on, err := ParseBoolString(arg)
		if err != nil {
			return NewValidationError(which, arg, "must be on or off")
		}
		next := app.Controller.Settings()
		if which == "stream" {
			next.StreamEnabled = on
		} else {
			next.FunctionCallingEnabled = on
		}
		app.Controller.ApplySettings(next)
		fmt.Fprintln(out, renderKV(which, enabledLabel(on)))
		if m := app.Controller.Model(); m != "" {
			fmt.Fprintln(out, renderKV("Model", m))
		}
		return nil
	}
}

func cmdChatTheme(_ context.Context, app *App, out io.Writer, _ *replyPrinter, arg string) error {
	theme, ok := settings.ParseTheme(arg)
	if !ok {
		return NewValidationError("theme", arg, "unknown theme")
	}
	next := app.Controller.Settings()
	next.Theme = theme
	app.Controller.ApplySettings(next)
	fmt.Fprintln(out, renderKV("Theme", string(theme)))
	return nil
}

func cmdChatSave(_ context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	id, err := app.SaveTranscript()
	if err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintln(out, dimStyle.Render("Nothing to save"))
		return nil
	}
	fmt.Fprintln(out, renderKV("Saved", id))
	return nil
}

func cmdChatLogin(ctx context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	u, err := app.Session.SignIn(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, successStyle.Render("Welcome, "+u.Username+"!"))
	return nil
}

func cmdChatLogout(ctx context.Context, app *App, out io.Writer, _ *replyPrinter, _ string) error {
	if err := app.Session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, dimStyle.Render("Signed out"))
	return nil
}
