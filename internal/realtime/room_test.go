package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRoomKey(t *testing.T) {
	assert.Equal(t, "channel:5", ChannelRoom(5).Key())
	assert.Equal(t, RoomChannel, ChannelRoom(5).Kind())
	assert.Equal(t, int64(5), ChannelRoom(5).ChannelID())
}

func TestDirectRoomKeyOrderIndependent(t *testing.T) {
	// Both participants must resolve to the same room no matter who joins
	// first.
	assert.Equal(t, DirectRoom(3, 7), DirectRoom(7, 3))
	assert.Equal(t, "dm:3-7", DirectRoom(7, 3).Key())
}

func TestDirectRoomParticipants(t *testing.T) {
	room := DirectRoom(9, 2)
	a, b := room.Participants()
	assert.Equal(t, int64(2), a)
	assert.Equal(t, int64(9), b)
	assert.True(t, room.HasParticipant(2))
	assert.True(t, room.HasParticipant(9))
	assert.False(t, room.HasParticipant(5))
}

func TestParseRoom(t *testing.T) {
	tests := []struct {
		key     string
		want    Room
		wantErr bool
	}{
		{key: "channel:5", want: ChannelRoom(5)},
		{key: "dm:3-7", want: DirectRoom(3, 7)},
		{key: "dm:7-3", wantErr: true}, // non-canonical order
		{key: "dm:3-3", wantErr: true},
		{key: "dm:3", wantErr: true},
		{key: "channel:abc", wantErr: true},
		{key: "channel:-1", wantErr: true},
		{key: "lobby", wantErr: true},
		{key: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseRoom(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoomRoundTrips(t *testing.T) {
	for _, room := range []Room{ChannelRoom(1), ChannelRoom(9999), DirectRoom(1, 2), DirectRoom(42, 7)} {
		parsed, err := ParseRoom(room.Key())
		require.NoError(t, err)
		assert.Equal(t, room, parsed)
	}
}
