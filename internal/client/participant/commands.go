package participant

import (
	"errors"
	"strings"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

var ErrUsage = errors.New("usage: /join <name> <seat> | /move <seat> | /mute | /ping | <chat text>")

// ParseCommand turns one line of user input into a command. Lines that do
// not start with a slash are chat.
func ParseCommand(line string) (protocol.Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrUsage
	}
	if !strings.HasPrefix(line, "/") {
		return protocol.Chat{Message: line}, nil
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/join":
		if len(fields) < 3 {
			return nil, ErrUsage
		}
		name := strings.Join(fields[1:len(fields)-1], " ")
		return protocol.Join{Name: name, SeatID: domain.SeatID(fields[len(fields)-1])}, nil
	case "/move":
		if len(fields) != 2 {
			return nil, ErrUsage
		}
		return protocol.Move{SeatID: domain.SeatID(fields[1])}, nil
	case "/mute", "/unmute", "/audio":
		return protocol.ToggleAudio{}, nil
	case "/ping":
		return protocol.Ping{}, nil
	default:
		return nil, ErrUsage
	}
}
