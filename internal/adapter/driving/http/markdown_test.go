package httphandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderNotes_EmptyInput(t *testing.T) {
	assert.Equal(t, "", RenderNotes(""))
}

func TestRenderNotes_PlainText(t *testing.T) {
	assert.Contains(t, RenderNotes("rotate every 90 days"), "rotate every 90 days")
}

func TestRenderNotes_InlineCode(t *testing.T) {
	assert.Contains(t, RenderNotes("connect with `psql -U root`"), "<code>psql -U root</code>")
}

func TestRenderNotes_Link(t *testing.T) {
	result := RenderNotes("[runbook](https://wiki.example.com/db)")
	assert.Contains(t, result, `<a href="https://wiki.example.com/db"`)
	assert.Contains(t, result, "runbook</a>")
}

func TestRenderNotes_SanitizesScript(t *testing.T) {
	result := RenderNotes(`<script>alert("xss")</script>`)
	assert.NotContains(t, result, "<script>")
}

func TestRenderNotes_SanitizesEventHandlers(t *testing.T) {
	result := RenderNotes(`<img src="x" onerror="alert(1)">`)
	assert.NotContains(t, result, "onerror")
}

func TestRenderNotes_GFMStrikethrough(t *testing.T) {
	assert.Contains(t, RenderNotes("~~old host~~"), "<del>old host</del>")
}
