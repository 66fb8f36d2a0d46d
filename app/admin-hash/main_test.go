//go:build !integration

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/pkg/utils"
)

func TestHashFromInput(t *testing.T) {
	hash, err := hashFromInput(strings.NewReader("letmein\n"))

	require.NoError(t, err)
	assert.True(t, utils.CheckPassword("letmein", hash))
	assert.False(t, utils.CheckPassword("letmein\n", hash))
}

func TestHashFromInput_WithoutNewline(t *testing.T) {
	hash, err := hashFromInput(strings.NewReader("s3cret"))

	require.NoError(t, err)
	assert.True(t, utils.CheckPassword("s3cret", hash))
}

func TestHashFromInput_Empty(t *testing.T) {
	_, err := hashFromInput(strings.NewReader("\n"))

	assert.Error(t, err)
}
