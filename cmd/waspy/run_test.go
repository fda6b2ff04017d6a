package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandCallsEntry(t *testing.T) {
	path := writeProgramFile(t, addProgram())

	buf := &bytes.Buffer{}
	cmd := newRunCommand(&rootOptions{})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "add", "40", "2"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "42\n", buf.String())
}

func TestEncodeOperandsRejectsGarbage(t *testing.T) {
	_, err := encodeOperands([]string{"not-a-number"})
	assert.Error(t, err)
}
