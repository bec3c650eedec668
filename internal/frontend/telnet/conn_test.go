package telnet

import (
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T, input []byte) *Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	go func() {
		_, _ = client.Write(input)
		_ = client.Close()
	}()
	return NewConn(server, 0, 0)
}

func TestReadLine_StripsTelnetCommands(t *testing.T) {
	input := []byte{IAC, WILL, OptSuppressGoAhead, 'r', 'o', IAC, SB, 24, 0, 'x', IAC, SE, 'l', 'l', '\r', '\n'}
	c := pipeConn(t, input)

	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "roll", line)
}

func TestReadLine_Terminators(t *testing.T) {
	c := pipeConn(t, []byte("help\nroll 1\r\x07quit\r\n"))

	for _, want := range []string{"help", "roll 1", "quit"} {
		line, err := c.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := c.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_RejectsOverlongLine(t *testing.T) {
	long := strings.Repeat("a", MaxLineLength+10)
	c := pipeConn(t, []byte(long+"\r\nhelp\r\n"))

	_, err := c.ReadLine()
	require.ErrorIs(t, err, ErrLineTooLong)

	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "help", line)
}

func TestReadLine_AcceptsLineAtLimit(t *testing.T) {
	exact := strings.Repeat("b", MaxLineLength)
	c := pipeConn(t, []byte(exact+"\n"))

	line, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, exact, line)
}
