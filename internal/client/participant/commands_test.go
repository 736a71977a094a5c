package participant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/protocol"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want protocol.Command
	}{
		{"hello there", protocol.Chat{Message: "hello there"}},
		{"/join Ann Lee seat-0-1", protocol.Join{Name: "Ann Lee", SeatID: "seat-0-1"}},
		{"/move seat-3-3", protocol.Move{SeatID: "seat-3-3"}},
		{"/mute", protocol.ToggleAudio{}},
		{" /ping ", protocol.Ping{}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "/join Ann", "/move", "/dance"} {
		_, err := ParseCommand(bad)
		assert.ErrorIs(t, err, ErrUsage, bad)
	}
}
