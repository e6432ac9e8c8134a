// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"fmt"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/tools"
)

// =============================================================================
// LOG EDITS
// =============================================================================

// DeleteMessage removes message id and its exchange partner: an assistant
// message takes the user message directly before it, a user message takes
// the assistant message directly after it. It returns the removed IDs, or
// nil when id is unknown.
func (c *Controller) DeleteMessage(id string) []string {
	var removed []string
	c.update(func() bool {
		removed = c.conv.DeleteExchange(id)
		if removed == nil {
			return false
		}
		c.noticeLocked(NoticeInfo, titleMessageDeleted, descDeleted)
		return true
	})
	return removed
}

// ResendMessage returns the prompt that produced message id and places it in
// the draft. The log is not changed. For an assistant message the candidate
// is the user message directly before it. ok is false when there is none.
func (c *Controller) ResendMessage(id string) (candidate string, ok bool) {
	c.update(func() bool {
		candidate, ok = c.conv.ResendCandidate(id)
		if !ok || c.draft == candidate {
			return false
		}
		c.draft = candidate
		return true
	})
	return candidate, ok
}

// Clear empties the conversation.
func (c *Controller) Clear() {
	c.update(func() bool {
		if c.conv.IsEmpty() {
			return false
		}
		c.conv.Clear()
		return true
	})
}

// Transcript returns a copy of the conversation for export.
func (c *Controller) Transcript() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

// =============================================================================
// SETTINGS
// =============================================================================

// ApplySettings replaces the settings. When streaming or function calling
// turns on and the selected model lacks that capability, the model is
// switched to a compatible one (model.DefaultModel when the catalog allows)
// and an informational notice is emitted. The change is never rejected.
func (c *Controller) ApplySettings(next settings.Settings) {
	next = next.Normalize()

	var modelChanged bool
	c.update(func() bool {
		old := c.settings
		c.settings = next
		modelChanged = c.correctModelLocked(old, true)
		return old != next || modelChanged
	})

	c.persist(func(ctx context.Context) error {
		return c.prefs.SaveSettings(ctx, next)
	})
	if modelChanged {
		c.persistModel()
	}
}

// correctModelLocked enforces the capability invariant for flags that went
// from off in old to on now. It reports whether the model changed. A notice
// is emitted only when notify is set and the model really changed.
func (c *Controller) correctModelLocked(old settings.Settings, notify bool) bool {
	stream, functions := c.settings.Enabling(old)

	checks := []struct {
		on         bool
		capability model.Capability
		desc       string
	}{
		{stream, model.CapStreaming, descStreamSwitch},
		{functions, model.CapFunctionCalling, descFunctionSwitch},
	}

	changed := false
	for _, chk := range checks {
		if !chk.on || c.catalog.Supports(c.model, chk.capability) {
			continue
		}
		replacement, ok := c.catalog.Fallback(c.requiredCapsLocked()...)
		if !ok {
			replacement, ok = c.catalog.Fallback(chk.capability)
		}
		if !ok || replacement == c.model {
			c.log.Warn().Str("model", c.model).Str("capability", string(chk.capability)).
				Msg("no compatible model in catalog")
			continue
		}
		mismatch := &CapabilityMismatchError{Model: c.model, Capability: chk.capability, Replacement: replacement}
		c.log.Info().Err(mismatch).Msg("model auto-corrected")
		c.model = replacement
		if notify {
			c.noticeLocked(NoticeInfo, titleModelChanged, chk.desc)
		}
		changed = true
	}
	return changed
}

// requiredCapsLocked lists the capabilities the current settings demand of
// the selected model.
func (c *Controller) requiredCapsLocked() []model.Capability {
	var caps []model.Capability
	if c.settings.StreamEnabled {
		caps = append(caps, model.CapStreaming)
	}
	if c.settings.FunctionCallingEnabled {
		caps = append(caps, model.CapFunctionCalling)
	}
	return caps
}

// Settings returns the current settings.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// =============================================================================
// MODEL AND MODE
// =============================================================================

// SelectModel changes the selected model. Unknown IDs return
// ErrUnknownModel. A model lacking an enabled capability returns a
// *CapabilityMismatchError and the selection is unchanged.
func (c *Controller) SelectModel(id string) error {
	var err error
	changed := c.update(func() bool {
		if _, ok := c.catalog.Get(id); !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownModel, id)
			return false
		}
		if c.settings.StreamEnabled && !c.catalog.Supports(id, model.CapStreaming) {
			err = &CapabilityMismatchError{Model: id, Capability: model.CapStreaming}
			return false
		}
		if c.settings.FunctionCallingEnabled && !c.catalog.Supports(id, model.CapFunctionCalling) {
			err = &CapabilityMismatchError{Model: id, Capability: model.CapFunctionCalling}
			return false
		}
		if c.model == id {
			return false
		}
		c.model = id
		return true
	})
	if changed {
		c.persistModel()
	}
	return err
}

// Model returns the selected model ID.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// RefreshModels replaces the catalog with the provider's list when the
// provider publishes one. An empty list keeps the current catalog. The
// selected model is then checked against the new catalog: a model that is
// gone, or lacks an enabled capability, is replaced with a notice.
func (c *Controller) RefreshModels(ctx context.Context) error {
	lister, ok := c.provider.(provider.ModelLister)
	if !ok {
		return nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		return nil
	}
	catalog := model.NewCatalog(models)

	var modelChanged bool
	c.update(func() bool {
		c.catalog = catalog
		modelChanged = c.reconcileModelLocked()
		return true
	})
	if modelChanged {
		c.persistModel()
	}
	return nil
}

// reconcileModelLocked re-checks the selected model after a catalog change.
func (c *Controller) reconcileModelLocked() bool {
	if _, known := c.catalog.Get(c.model); known {
		return c.correctModelLocked(settings.Settings{Theme: c.settings.Theme}, true)
	}
	replacement, ok := c.catalog.Fallback(c.requiredCapsLocked()...)
	if !ok {
		replacement, ok = c.catalog.Fallback()
	}
	if !ok || replacement == c.model {
		return false
	}
	c.log.Info().Str("model", c.model).Str("replacement", replacement).Msg("selected model no longer listed")
	c.model = replacement
	c.noticeLocked(NoticeInfo, titleModelChanged, descModelUnavailable)
	return true
}

// SetMode switches between chat and image generation.
func (c *Controller) SetMode(mode Mode) {
	c.update(func() bool {
		if c.mode == mode {
			return false
		}
		c.mode = mode
		return true
	})
}

// ToggleMode flips the mode and returns the new one.
func (c *Controller) ToggleMode() Mode {
	var mode Mode
	c.update(func() bool {
		if c.mode == ModeChat {
			c.mode = ModeTextToImage
		} else {
			c.mode = ModeChat
		}
		mode = c.mode
		return true
	})
	return mode
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetDraft replaces the not-yet-sent prompt text.
func (c *Controller) SetDraft(text string) {
	c.update(func() bool {
		if c.draft == text {
			return false
		}
		c.draft = text
		return true
	})
}

// Draft returns the not-yet-sent prompt text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) persistModel() {
	id := c.Model()
	c.persist(func(ctx context.Context) error {
		return c.prefs.SaveModel(ctx, id)
	})
}

// =============================================================================
// TOOLS
// =============================================================================

// ToggleTool enables or disables a tool and emits a notice.
func (c *Controller) ToggleTool(id string, enabled bool) (tools.Tool, error) {
	var (
		tool tools.Tool
		set  tools.Set
		err  error
	)
	c.update(func() bool {
		set, tool, err = c.tools.WithEnabled(id, enabled)
		if err != nil {
			return false
		}
		c.tools = set
		if enabled {
			c.noticeLocked(NoticeInfo, "Tool Enabled", tool.Name+" has been enabled.")
		} else {
			c.noticeLocked(NoticeInfo, "Tool Disabled", tool.Name+" has been disabled.")
		}
		return true
	})
	if err != nil {
		return tools.Tool{}, err
	}
	c.persist(func(ctx context.Context) error {
		return c.prefs.SaveTools(ctx, set)
	})
	return tool, nil
}

// Tools returns the current tool set.
func (c *Controller) Tools() tools.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tools
}
