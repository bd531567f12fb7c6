package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresCommand(t *testing.T) {
	_, err := New(Config{Name: "empty"}, nil)
	assert.Error(t, err)
}

func TestNew_DefaultsNameToCommand(t *testing.T) {
	p, err := New(Config{Command: "my-server"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "my-server", p.Name())
}

func TestNew_RejectsInvalidPattern(t *testing.T) {
	_, err := New(Config{Command: "srv", Include: []string{"[unclosed"}}, nil)
	assert.Error(t, err)
}

func TestProvider_IncludeFiltering(t *testing.T) {
	p, err := New(Config{Command: "srv", Include: []string{"fetch_*", "search"}}, nil)
	require.NoError(t, err)

	assert.True(t, p.included("fetch_page"))
	assert.True(t, p.included("search"))
	assert.False(t, p.included("delete_all"))

	open, err := New(Config{Command: "srv"}, nil)
	require.NoError(t, err)
	assert.True(t, open.included("anything"))
}

func TestProvider_CloseWithoutConnect(t *testing.T) {
	p, err := New(Config{Command: "srv"}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
