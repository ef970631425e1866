package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/five82/lumen/internal/chatrooms"
)

type commandKind int

const (
	cmdSend commandKind = iota
	cmdServer
	cmdRoom
	cmdNewRoom
	cmdLogin
	cmdRegister
	cmdLogout
)

// chatCommand is one parsed line of the chat input.
type chatCommand struct {
	kind commandKind
	args []string
	text string
}

var commandArity = map[string]struct {
	kind commandKind
	args int
}{
	"/server":   {cmdServer, 1},
	"/room":     {cmdRoom, 1},
	"/newroom":  {cmdNewRoom, 0},
	"/login":    {cmdLogin, 2},
	"/register": {cmdRegister, 2},
	"/logout":   {cmdLogout, 0},
}

// parseCommand turns an input line into a command. Lines that do not start
// with a slash are messages; "//" escapes a leading slash.
func parseCommand(line string) (chatCommand, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return chatCommand{}, fmt.Errorf("nothing to send")
	}
	if strings.HasPrefix(line, "//") {
		return chatCommand{kind: cmdSend, text: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return chatCommand{kind: cmdSend, text: line}, nil
	}

	fields := strings.Fields(line)
	def, ok := commandArity[strings.ToLower(fields[0])]
	if !ok {
		return chatCommand{}, fmt.Errorf("unknown command %s", fields[0])
	}
	args := fields[1:]
	if len(args) != def.args {
		return chatCommand{}, fmt.Errorf("%s takes %d argument(s), got %d", fields[0], def.args, len(args))
	}
	return chatCommand{kind: def.kind, args: args}, nil
}

// run executes the command against the session and returns a status note.
func (c chatCommand) run(ctx context.Context, s *chatrooms.Session) (string, error) {
	if s == nil {
		return "", fmt.Errorf("chat is disabled")
	}
	switch c.kind {
	case cmdServer:
		if err := s.SetServerAddress(ctx, c.args[0]); err != nil {
			return "", err
		}
		return "connected to " + c.args[0], nil
	case cmdRoom:
		if err := s.SetRoom(ctx, c.args[0]); err != nil {
			return "", err
		}
		return "joined room " + c.args[0], nil
	case cmdNewRoom:
		room, err := s.CreateRoom(ctx)
		if err != nil {
			return "", err
		}
		return "created room " + room, nil
	case cmdLogin:
		if err := s.Login(ctx, c.args[0], c.args[1]); err != nil {
			return "", err
		}
		return "logged in as " + c.args[0], nil
	case cmdRegister:
		if err := s.CreateUser(ctx, c.args[0], c.args[1]); err != nil {
			return "", err
		}
		return "registered " + c.args[0], nil
	case cmdLogout:
		s.Logout()
		return "logged out", nil
	default:
		if err := s.SendMessage(ctx, c.text); err != nil {
			return "", err
		}
		return "", nil
	}
}
