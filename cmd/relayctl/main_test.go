package main

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/transport"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_List_Renders_Table(t *testing.T) {
	req := require.New(t)
	// Given a directory answering one listing
	directory, err := transport.Listen("127.0.0.1", 0)
	req.NoError(err)
	defer directory.Close()
	go func() {
		_, from, err := directory.Receive(2 * time.Second)
		if err != nil {
			return
		}
		_ = directory.Send(from, domain.NewMessage(domain.OrderAck, domain.DirectorySender, "study 8100\n"))
	}()
	t.Setenv("RELAY_DIRECTORY_ADDR", directory.LocalAddr().String())
	t.Setenv("RELAY_COLOURS", "false")

	// When listing
	var out bytes.Buffer
	code, err := run([]string{"list"}, &out)

	// Then the group shows up in the table
	req.NoError(err)
	req.Equal(exitOK, code)
	req.Contains(out.String(), "study")
	req.Contains(out.String(), "8100")
}

func TestRun_Usage_Errors(t *testing.T) {
	req := require.New(t)
	t.Setenv("RELAY_DIRECTORY_ADDR", "127.0.0.1:1")

	code, err := run(nil, &bytes.Buffer{})
	req.Error(err)
	req.Equal(exitConfig, code)

	code, err = run([]string{"create"}, &bytes.Buffer{})
	req.Error(err)
	req.Equal(exitRuntime, code)

	code, err = run([]string{"say", "notaport", "hi"}, &bytes.Buffer{})
	req.ErrorContains(err, "invalid port")
	req.Equal(exitRuntime, code)
}

func TestRun_Invalid_Directory_Address(t *testing.T) {
	req := require.New(t)
	t.Setenv("RELAY_DIRECTORY_ADDR", "not-an-address")

	code, err := run([]string{"list"}, &bytes.Buffer{})

	req.Error(err)
	req.Equal(exitConfig, code)
}
