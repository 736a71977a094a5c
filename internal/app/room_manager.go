package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/core"
	"github.com/dkeye/SeatVoice/internal/domain"
)

type RoomManagerImpl struct {
	ctx  context.Context
	opts RoomOptions

	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

// NewRoomManager creates rooms lazily; every room is built with opts and
// stops when ctx is canceled.
func NewRoomManager(ctx context.Context, opts RoomOptions) *RoomManagerImpl {
	return &RoomManagerImpl{
		ctx:   ctx,
		opts:  opts,
		rooms: make(map[domain.RoomName]core.RoomService),
	}
}

var _ core.RoomManager = (*RoomManagerImpl)(nil)

func (f *RoomManagerImpl) GetOrCreate(name domain.RoomName) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[name]; ok {
		return room
	}
	room = NewRoom(f.ctx, name, f.opts)
	f.rooms[name] = room
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) GetRoom(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

// List reports every room sorted by name. Rooms that fail to answer before
// ctx expires are skipped.
func (f *RoomManagerImpl) List(ctx context.Context) []core.RoomInfo {
	f.mu.RLock()
	rooms := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		rooms = append(rooms, r)
	}
	f.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		info, err := r.Info(ctx)
		if err != nil {
			log.Warn().Str("module", "app.rooms").Str("room", string(r.Name())).Err(err).Msg("room info")
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *RoomManagerImpl) StopRoom(name domain.RoomName) {
	f.mu.Lock()
	room, ok := f.rooms[name]
	delete(f.rooms, name)
	f.mu.Unlock()
	if ok {
		room.Stop()
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room stopped")
	}
}

// StopAll stops every room.
func (f *RoomManagerImpl) StopAll() {
	f.mu.Lock()
	rooms := f.rooms
	f.rooms = make(map[domain.RoomName]core.RoomService)
	f.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
}
