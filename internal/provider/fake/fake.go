// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fake

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
)

// Canned mock values.
const (
	MockExtractedText = "This is mock extracted text from the image."
	MockAudioSrc      = "data:audio/wav;base64,UklGRiQAAABXQVZFZm10IBAAAAABAAEARKwAAIhYAQACABAAZGF0YQAAAAA="
	MockImageBase     = "https://via.placeholder.com/512x512?text="
)

// MockUser is the identity reported once signed in.
var MockUser = provider.User{UUID: "mock-user-id", Username: "mock_user", EmailConfirmed: true}

// MockReply returns the canned chat reply for prompt and model.
func MockReply(prompt, modelID string) string {
	return fmt.Sprintf("This is a mock response to %q using model %q.", prompt, modelID)
}

// =============================================================================
// SCRIPTS
// =============================================================================

// Reply scripts one Chat call.
//
// Err fails the call itself. Chunks produce a stream, optionally ending in
// StreamErr; otherwise Text is returned complete. When Gate is set the
// provider waits for one receive on Gate before answering a complete reply,
// and before each chunk of a stream.
type Reply struct {
	Text      string
	Chunks    []string
	Err       error
	StreamErr error
	Gate      <-chan struct{}
}

// ImageReply scripts one TextToImage call.
type ImageReply struct {
	Src  string
	Err  error
	Gate <-chan struct{}
}

// ChatCall records the arguments of a Chat call.
type ChatCall struct {
	Prompt string
	Opts   provider.ChatOptions
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider is an in-memory provider. Unscripted calls get the canned mock
// responses, so a zero-configuration Provider works as an offline backend.
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	images   []ImageReply
	calls    []ChatCall
	speeches int

	// ExtractErr and SpeechErr fail the respective calls when set.
	ExtractErr error
	SpeechErr  error

	// Models is returned by ListModels. Nil means the default catalog.
	Models []model.ModelInfo

	auth *Auth
}

// New creates a provider with a signed-out mock session.
func New() *Provider {
	return &Provider{auth: &Auth{user: MockUser}}
}

// QueueChat appends scripted chat replies.
func (p *Provider) QueueChat(r ...Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, r...)
}

// QueueImage appends scripted image replies.
func (p *Provider) QueueImage(r ...ImageReply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images = append(p.images, r...)
}

// Calls returns the chat calls seen so far.
func (p *Provider) Calls() []ChatCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChatCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// SpeechCalls returns how many times TextToSpeech reached the provider.
func (p *Provider) SpeechCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speeches
}

// Chat implements provider.Chatter.
func (p *Provider) Chat(ctx context.Context, prompt string, opts provider.ChatOptions) (provider.ChatResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ChatCall{Prompt: prompt, Opts: opts})
	var r Reply
	scripted := len(p.replies) > 0
	if scripted {
		r = p.replies[0]
		p.replies = p.replies[1:]
	}
	p.mu.Unlock()

	if !scripted {
		text := MockReply(prompt, opts.Model)
		if opts.Stream {
			return provider.Streaming(newStream(splitWords(text), nil, nil)), nil
		}
		return provider.Complete(text), nil
	}

	if r.Err != nil {
		if err := wait(ctx, r.Gate); err != nil {
			return provider.ChatResult{}, err
		}
		return provider.ChatResult{}, r.Err
	}
	if r.Chunks != nil {
		return provider.Streaming(newStream(r.Chunks, r.StreamErr, r.Gate)), nil
	}
	if err := wait(ctx, r.Gate); err != nil {
		return provider.ChatResult{}, err
	}
	return provider.Complete(r.Text), nil
}

// TextToImage implements provider.ImageGenerator.
func (p *Provider) TextToImage(ctx context.Context, prompt string) (provider.Image, error) {
	p.mu.Lock()
	var r ImageReply
	scripted := len(p.images) > 0
	if scripted {
		r = p.images[0]
		p.images = p.images[1:]
	}
	p.mu.Unlock()

	if !scripted {
		return provider.Image{Src: MockImageBase + url.QueryEscape(prompt)}, nil
	}
	if err := wait(ctx, r.Gate); err != nil {
		return provider.Image{}, err
	}
	if r.Err != nil {
		return provider.Image{}, r.Err
	}
	return provider.Image{Src: r.Src}, nil
}

// ImageToText implements provider.ImageReader.
func (p *Provider) ImageToText(_ context.Context, _ provider.ImageInput) (string, error) {
	if p.ExtractErr != nil {
		return "", p.ExtractErr
	}
	return MockExtractedText, nil
}

// TextToSpeech implements provider.Speaker.
func (p *Provider) TextToSpeech(_ context.Context, _, _ string) (provider.Audio, error) {
	p.mu.Lock()
	p.speeches++
	p.mu.Unlock()
	if p.SpeechErr != nil {
		return provider.Audio{}, p.SpeechErr
	}
	return provider.Audio{MIME: "audio/wav", Src: MockAudioSrc}, nil
}

// ListModels implements provider.ModelLister.
func (p *Provider) ListModels(context.Context) ([]model.ModelInfo, error) {
	if p.Models != nil {
		return p.Models, nil
	}
	return model.DefaultCatalog().List(), nil
}

// Auth implements provider.Provider.
func (p *Provider) Auth() provider.Authenticator {
	return p.auth
}

// FakeAuth exposes the concrete authenticator for test setup.
func (p *Provider) FakeAuth() *Auth {
	return p.auth
}

// =============================================================================
// AUTH
// =============================================================================

// Auth is an in-memory session.
type Auth struct {
	mu       sync.Mutex
	signedIn bool
	user     provider.User
	getCalls int

	// SignInErr fails SignIn when set.
	SignInErr error

	// GetGate, when set, blocks GetUser until it receives.
	GetGate <-chan struct{}
}

// SetSignedIn forces the session state.
func (a *Auth) SetSignedIn(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signedIn = v
}

// GetCalls returns how many times GetUser ran.
func (a *Auth) GetCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getCalls
}

// IsSignedIn implements provider.Authenticator.
func (a *Auth) IsSignedIn(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signedIn
}

// GetUser implements provider.Authenticator.
func (a *Auth) GetUser(ctx context.Context) (provider.User, error) {
	a.mu.Lock()
	a.getCalls++
	gate := a.GetGate
	a.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return provider.User{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.signedIn {
		return provider.User{}, fmt.Errorf("not signed in")
	}
	return a.user, nil
}

// SignIn implements provider.Authenticator.
func (a *Auth) SignIn(context.Context) (provider.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SignInErr != nil {
		return provider.User{}, a.SignInErr
	}
	a.signedIn = true
	return a.user, nil
}

// SignOut implements provider.Authenticator.
func (a *Auth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signedIn = false
	return nil
}

// =============================================================================
// STREAM
// =============================================================================

type stream struct {
	mu     sync.Mutex
	chunks []string
	err    error
	gate   <-chan struct{}
	closed bool
}

func newStream(chunks []string, err error, gate <-chan struct{}) *stream {
	return &stream{chunks: append([]string(nil), chunks...), err: err, gate: gate}
}

func (s *stream) Recv(ctx context.Context) (provider.Chunk, error) {
	s.mu.Lock()
	closed, remaining := s.closed, len(s.chunks)
	s.mu.Unlock()

	if closed {
		return provider.Chunk{}, io.ErrClosedPipe
	}
	if remaining == 0 {
		if s.err != nil {
			return provider.Chunk{}, s.err
		}
		return provider.Chunk{}, io.EOF
	}
	if err := wait(ctx, s.gate); err != nil {
		return provider.Chunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return provider.Chunk{Text: c}, nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func wait(ctx context.Context, gate <-chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitWords chunks text at word boundaries, keeping the spaces.
func splitWords(text string) []string {
	var out []string
	for len(text) > 0 {
		i := strings.IndexByte(text[1:], ' ')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}
