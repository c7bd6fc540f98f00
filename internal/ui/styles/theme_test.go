// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ForcedModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	assert.True(t, dark.IsDark)

	light := NewTheme(ModeLight)
	assert.False(t, light.IsDark)
}

func TestTheme_StylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	tests := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"Panel", theme.Panel},
		{"Launcher", theme.Launcher},
		{"UserBubble", theme.UserBubble},
		{"BotBubble", theme.BotBubble},
		{"FallbackBubble", theme.FallbackBubble},
		{"Typing", theme.Typing},
		{"InputContainer", theme.InputContainer},
		{"SendButton", theme.SendButton},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, tc.style.Render("test"), "test")
		})
	}
}

func TestTheme_PanelHasBorder(t *testing.T) {
	theme := NewTheme(ModeLight)
	out := theme.Panel.Render("x")
	assert.Equal(t, 3, len(strings.Split(out, "\n")), "rounded border adds a top and bottom row")
}

func TestRenderHelpers(t *testing.T) {
	assert.Contains(t, RenderSuccess("saved"), "[OK] saved")
	assert.Contains(t, RenderError("failed"), "[X] failed")
	assert.Contains(t, RenderInfo("note"), "[i] note")
}
