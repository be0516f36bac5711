package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("  alice \nrest")), "Username", &out)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "Username: ", out.String())

	got, err = GetSimpleText(bufio.NewReader(strings.NewReader("partial")), "X", &out)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "X", &out)
	require.Error(t, err)
}

func TestGetPassword_Terminal(t *testing.T) {
	origRead, origTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = origRead, origTerm })

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("secret"), nil }

	var out bytes.Buffer
	pw, err := GetPassword(bufio.NewReader(strings.NewReader("ignored\n")), "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pw)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err = GetPassword(bufio.NewReader(strings.NewReader("")), "Password", &out)
	require.Error(t, err)
}

func TestGetPassword_Piped(t *testing.T) {
	var out bytes.Buffer
	pw, err := GetPassword(bufio.NewReader(strings.NewReader("pw\n")), "Password", &out)
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), pw)
}
