package guide

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	g, err := Default()
	require.NoError(t, err)

	require.Len(t, g.Steps, 3)
	assert.Equal(t, "📂 Upload File", g.Steps[0].Title)
	assert.Equal(t, "💬 Ask Question", g.Steps[1].Title)
	assert.Equal(t, "⚡ Get Answers", g.Steps[2].Title)
	assert.Contains(t, g.Steps[1].Details, "Ask specific questions about your content")
	assert.Equal(t, "Upload, Ask, Get Instant Answers", g.Overview.Headline)
	assert.Equal(t, "/", g.CallToAction.Href)

	again, _ := Default()
	assert.Same(t, g, again)
}

func TestParse(t *testing.T) {
	g, err := Parse(strings.NewReader(`
title: T
steps:
  - title: one
    details: [a, b]
`))
	require.NoError(t, err)
	assert.Equal(t, "T", g.Title)
	assert.Equal(t, []string{"a", "b"}, g.Steps[0].Details)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("title: [broken"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("title: no steps"))
	assert.Error(t, err)
}
