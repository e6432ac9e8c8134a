// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/export"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is a slash command available in the input box.
type Command struct {
	Name string
	Args string
	Help string
	run  func(m *Model, args []string) tea.Cmd
}

var commands = map[string]Command{}

func register(c Command) { commands[c.Name] = c }

// Commands lists the slash commands sorted by name.
func Commands() []Command {
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func init() {
	register(Command{Name: "clear", Help: "Clear the conversation", run: cmdClear})
	register(Command{Name: "model", Args: "[id|refresh]", Help: "Select or list models", run: cmdModel})
	register(Command{Name: "mode", Args: "chat|image", Help: "Set what prompts produce", run: cmdMode})
	register(Command{Name: "theme", Args: "<name>", Help: "Set the color theme", run: cmdTheme})
	register(Command{Name: "stream", Args: "on|off", Help: "Stream responses", run: cmdStream})
	register(Command{Name: "functions", Args: "on|off", Help: "Enable function calling", run: cmdFunctions})
	register(Command{Name: "tool", Args: "<id> on|off", Help: "Enable or disable a tool", run: cmdTool})
	register(Command{Name: "export", Args: "[markdown|html|json]", Help: "Export the conversation", run: cmdExport})
	register(Command{Name: "image", Args: "<path>", Help: "Extract text from an image file", run: cmdImage})
	register(Command{Name: "vision", Args: "<url> <description>", Help: "Add a captured picture", run: cmdVision})
	register(Command{Name: "login", Help: "Sign in", run: cmdLogin})
	register(Command{Name: "logout", Help: "Sign out", run: cmdLogout})
	register(Command{Name: "help", Help: "Show key bindings", run: cmdHelp})
	register(Command{Name: "quit", Help: "Exit", run: cmdQuit})
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// runCommand executes a "/name args" line.
func (m *Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return nil
	}
	c, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		m.status = "unknown command /" + fields[0]
		return nil
	}
	m.status = ""
	return c.run(m, fields[1:])
}

func usage(c string) string {
	cmd := commands[c]
	return strings.TrimSpace("usage: /" + cmd.Name + " " + cmd.Args)
}

func cmdClear(m *Model, _ []string) tea.Cmd {
	m.ctrl.Clear()
	m.selected = -1
	return nil
}

func cmdModel(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.openOverlay(overlayModels)
		return nil
	}
	if args[0] == "refresh" {
		ctrl, ctx := m.ctrl, m.ctx
		return func() tea.Msg { return refreshMsg{err: ctrl.RefreshModels(ctx)} }
	}
	if err := m.ctrl.SelectModel(args[0]); err != nil {
		m.status = err.Error()
		return nil
	}
	m.status = "model: " + args[0]
	return nil
}

func cmdMode(m *Model, args []string) tea.Cmd {
	if len(args) != 1 {
		m.status = usage("mode")
		return nil
	}
	mode := controller.ParseMode(args[0])
	m.ctrl.SetMode(mode)
	m.status = "mode: " + modeLabel(mode)
	return nil
}

func cmdTheme(m *Model, args []string) tea.Cmd {
	if len(args) != 1 {
		names := make([]string, len(settings.Themes))
		for i, t := range settings.Themes {
			names[i] = string(t)
		}
		m.status = "themes: " + strings.Join(names, ", ")
		return nil
	}
	theme, ok := settings.ParseTheme(args[0])
	if !ok {
		m.status = "unknown theme " + args[0]
		return nil
	}
	s := m.ctrl.Settings()
	s.Theme = theme
	m.ctrl.ApplySettings(s)
	return nil
}

func cmdStream(m *Model, args []string) tea.Cmd {
	on, ok := parseSwitch(args)
	if !ok {
		m.status = usage("stream")
		return nil
	}
	s := m.ctrl.Settings()
	s.StreamEnabled = on
	m.ctrl.ApplySettings(s)
	return nil
}

func cmdFunctions(m *Model, args []string) tea.Cmd {
	on, ok := parseSwitch(args)
	if !ok {
		m.status = usage("functions")
		return nil
	}
	s := m.ctrl.Settings()
	s.FunctionCallingEnabled = on
	m.ctrl.ApplySettings(s)
	return nil
}

func cmdTool(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.openOverlay(overlayTools)
		return nil
	}
	on, ok := parseSwitch(args[1:])
	if !ok {
		m.status = usage("tool")
		return nil
	}
	if _, err := m.ctrl.ToggleTool(args[0], on); err != nil {
		m.status = err.Error()
	}
	return nil
}

func cmdExport(m *Model, args []string) tea.Cmd {
	format := m.opts.ExportFormat
	if len(args) > 0 {
		format = args[0]
	}
	return m.export(format)
}

func cmdImage(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		m.status = usage("image")
		return nil
	}
	return m.extract(strings.Join(args, " "))
}

func cmdVision(m *Model, args []string) tea.Cmd {
	if len(args) < 2 {
		m.status = usage("vision")
		return nil
	}
	if err := m.ctrl.AddVisionCapture(args[0], strings.Join(args[1:], " ")); err != nil {
		m.status = err.Error()
	}
	return nil
}

func cmdLogin(m *Model, _ []string) tea.Cmd {
	if m.sess == nil {
		m.status = "sign in is not available"
		return nil
	}
	m.status = "signing in..."
	return m.sess.SignInCmd(m.ctx)
}

func cmdLogout(m *Model, _ []string) tea.Cmd {
	if m.sess == nil {
		return nil
	}
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg { return signOutMsg{err: sess.SignOut(ctx)} }
}

func cmdHelp(m *Model, _ []string) tea.Cmd {
	m.openOverlay(overlayHelp)
	return nil
}

func cmdQuit(m *Model, _ []string) tea.Cmd {
	m.Close()
	return tea.Quit
}

func parseSwitch(args []string) (on, ok bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1", "enable":
		return true, true
	case "off", "false", "no", "0", "disable":
		return false, true
	}
	return false, false
}

func modeLabel(mode controller.Mode) string {
	if mode == controller.ModeTextToImage {
		return "image"
	}
	return "chat"
}

// =============================================================================
// BACKGROUND OPERATIONS
// =============================================================================

// export writes the transcript in format to the export directory.
func (m *Model) export(format string) tea.Cmd {
	conv := m.ctrl.Transcript()
	modelID := m.snap.Model
	opts := export.DefaultOptions()
	opts.OutputDir = m.opts.ExportDir
	opts.Theme = string(m.snap.Settings.Theme)

	return func() tea.Msg {
		exporter, err := export.ForFormat(format, opts)
		if err != nil {
			return exportMsg{err: err}
		}
		path, err := export.ExportToFile(storage.NewTranscript(conv, modelID), exporter, opts)
		return exportMsg{path: path, err: err}
	}
}

// speak converts message id to audio and saves it next to exports.
func (m *Model) speak(id string) tea.Cmd {
	ctrl, ctx, lang, dir := m.ctrl, m.ctx, m.opts.Language, m.opts.ExportDir
	m.status = "converting to speech..."
	return func() tea.Msg {
		audio, err := ctrl.Speak(ctx, id, lang)
		if err != nil {
			return speechMsg{err: err}
		}
		path, err := saveAudio(dir, id, audio)
		return speechMsg{path: path, err: err}
	}
}

// extract reads an image file and runs text extraction on it.
func (m *Model) extract(path string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.status = "extracting text..."
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return extractMsg{err: err}
		}
		img := provider.ImageInput{
			Name: filepath.Base(path),
			MIME: http.DetectContentType(data),
			Data: data,
		}
		_, err = ctrl.ExtractText(ctx, img)
		return extractMsg{err: err}
	}
}

var audioExt = map[string]string{
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/mpeg":  ".mp3",
	"audio/ogg":   ".ogg",
	"audio/webm":  ".webm",
}

// saveAudio writes a data: URL to dir. Other URLs are returned unchanged.
func saveAudio(dir, id string, audio provider.Audio) (string, error) {
	rest, ok := strings.CutPrefix(audio.Src, "data:")
	if !ok {
		return audio.Src, nil
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", errors.New("unsupported audio source")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}

	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = audio.MIME
	}
	ext, ok := audioExt[mimeType]
	if !ok {
		ext = ".bin"
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	path := filepath.Join(dir, "speech_"+id+ext)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
