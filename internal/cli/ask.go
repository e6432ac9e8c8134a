// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
)

// maxStdinPrompt bounds a prompt read from a pipe.
const maxStdinPrompt = 1 << 20

// askOptions are the parsed flags of "ask".
type askOptions struct {
	prompt  string
	image   bool
	extract string
	json    bool
}

func parseAskArgs(args Args, stdin io.Reader) (askOptions, error) {
	p := NewArgParser(args.Raw, "image", "i", "json")
	opts := askOptions{
		prompt:  strings.Join(p.PositionalFrom(0), " "),
		image:   p.BoolFlag("image", "i"),
		extract: p.Flag("extract", "x"),
		json:    args.JSON || p.BoolFlag("json"),
	}

	if path := p.Flag("file", "f"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, NewCommandError("ask", "read file", err)
		}
		opts.prompt = strings.TrimSpace(opts.prompt + "\n\n" + string(data))
	}

	if opts.prompt == "" && opts.extract == "" && stdin != nil && !IsTerminal(stdin) {
		data, err := io.ReadAll(io.LimitReader(stdin, maxStdinPrompt))
		if err != nil {
			return opts, NewCommandError("ask", "read stdin", err)
		}
		opts.prompt = strings.TrimSpace(string(data))
	}

	if strings.TrimSpace(opts.prompt) == "" && opts.extract == "" {
		return opts, ErrMissingArgument("question", `puterchat ask "What is a goroutine?"`)
	}
	return opts, nil
}

// HandleAsk sends a single prompt and prints the reply.
func HandleAsk(ctx context.Context, app *App, s Streams, args Args) error {
	opts, err := parseAskArgs(args, s.In)
	if err != nil {
		return err
	}

	start := time.Now()
	if opts.extract != "" {
		return askExtract(ctx, app, s, opts, start)
	}

	mode := controller.ModeChat
	if opts.image {
		mode = controller.ModeTextToImage
	}

	// Live output only makes sense for text read by a person.
	var printer *replyPrinter
	if !opts.json && mode == controller.ModeChat && app.Controller.Settings().StreamEnabled {
		printer = newReplyPrinter(s.Out, false)
		unsubscribe := app.Controller.Subscribe(printer.observe)
		defer unsubscribe()
		printer.mark(app.Controller.Snapshot())
	}

	if err := app.Controller.SendPrompt(ctx, opts.prompt, mode); err != nil {
		return err
	}

	reply, _ := lastAssistant(app.Controller.Snapshot())
	if opts.json {
		return NewJSONResponse("ask", AskData{
			Prompt:   opts.prompt,
			Mode:     string(mode),
			Model:    app.Controller.Model(),
			Response: replyText(reply),
			ImageURL: reply.ImageURL,
			Duration: time.Since(start).Round(time.Millisecond).String(),
		}).Write(s.Out)
	}

	if printer != nil {
		printer.finish(app.Controller.Snapshot())
		return nil
	}
	if reply.Kind == model.KindImage {
		fmt.Fprintln(s.Out, reply.ImageURL)
		return nil
	}
	return printMarkdown(s.Out, reply.Content)
}

func askExtract(ctx context.Context, app *App, s Streams, opts askOptions, start time.Time) error {
	img, err := readImage(opts.extract)
	if err != nil {
		return NewCommandError("ask", "read image", err)
	}
	msg, err := app.Controller.ExtractText(ctx, img)
	if err != nil {
		return err
	}
	text := strings.TrimPrefix(msg.Content, controller.ExtractedPrefix)
	if opts.json {
		return NewJSONResponse("ask", AskData{
			Prompt:   opts.extract,
			Mode:     "imageToText",
			Model:    app.Controller.Model(),
			Response: text,
			Duration: time.Since(start).Round(time.Millisecond).String(),
		}).Write(s.Out)
	}
	fmt.Fprintln(s.Out, text)
	return nil
}

// readImage loads an image file for extraction.
func readImage(path string) (provider.ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return provider.ImageInput{}, err
	}
	return provider.ImageInput{
		Name: filepath.Base(path),
		MIME: http.DetectContentType(data),
		Data: data,
	}, nil
}

// lastAssistant returns the newest assistant message.
func lastAssistant(snap controller.Snapshot) (model.Message, bool) {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == model.RoleAssistant {
			return snap.Messages[i], true
		}
	}
	return model.Message{}, false
}

func replyText(m model.Message) string {
	if m.Kind == model.KindImage {
		return ""
	}
	return m.Content
}

// printMarkdown renders text with glamour on a terminal and prints it
// unchanged elsewhere.
func printMarkdown(w io.Writer, text string) error {
	if !IsTerminal(w) {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(TerminalWidth(w)-4),
	)
	if err != nil {
		_, err = fmt.Fprintln(w, text)
		return err
	}
	out, err := r.Render(text)
	if err != nil {
		out = text + "\n"
	}
	_, err = io.WriteString(w, out)
	return err
}
