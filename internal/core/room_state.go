package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/spatial"
)

// RoomState is the seat and participant aggregate of one room.
// It is not safe for concurrent use; the owning room serializes access.
type RoomState struct {
	seats        []domain.Seat
	seatIdx      map[domain.SeatID]int
	participants map[domain.ParticipantID]*domain.Participant
}

func NewRoomState(grid GridSpec) *RoomState {
	seats := grid.Seats()
	idx := make(map[domain.SeatID]int, len(seats))
	for i, s := range seats {
		idx[s.ID] = i
	}
	return &RoomState{
		seats:        seats,
		seatIdx:      idx,
		participants: make(map[domain.ParticipantID]*domain.Participant),
	}
}

// freeSeat returns the index of seat id if it exists and nobody holds it.
func (s *RoomState) freeSeat(id domain.SeatID) (int, error) {
	i, ok := s.seatIdx[id]
	if !ok || s.seats[i].Occupied {
		return 0, domain.ErrSeatUnavailable
	}
	return i, nil
}

func (s *RoomState) claim(i int, pid domain.ParticipantID) {
	s.seats[i].Occupied = true
	s.seats[i].Occupant = pid
}

func (s *RoomState) release(id domain.SeatID) {
	if i, ok := s.seatIdx[id]; ok {
		s.seats[i].Occupied = false
		s.seats[i].Occupant = ""
	}
}

// Join seats a new participant. The state is untouched on error.
func (s *RoomState) Join(pid domain.ParticipantID, name string, seat domain.SeatID) error {
	if _, ok := s.participants[pid]; ok {
		return domain.ErrAlreadyJoined
	}
	name, err := domain.NormalizeName(name)
	if err != nil {
		return err
	}
	i, err := s.freeSeat(seat)
	if err != nil {
		return err
	}
	s.claim(i, pid)
	s.participants[pid] = &domain.Participant{
		ID:       pid,
		Name:     name,
		Position: s.seats[i].Position,
		SeatID:   seat,
	}
	return nil
}

// Move claims the target seat first and only then frees the previous one.
func (s *RoomState) Move(pid domain.ParticipantID, seat domain.SeatID) error {
	p, ok := s.participants[pid]
	if !ok {
		return domain.ErrNotJoined
	}
	i, err := s.freeSeat(seat)
	if err != nil {
		return err
	}
	prev := p.SeatID
	s.claim(i, pid)
	p.SeatID = seat
	p.Position = s.seats[i].Position
	s.release(prev)
	return nil
}

// ToggleAudio flips the audio flag and returns the new value.
func (s *RoomState) ToggleAudio(pid domain.ParticipantID) (bool, error) {
	p, ok := s.participants[pid]
	if !ok {
		return false, domain.ErrNotJoined
	}
	p.AudioEnabled = !p.AudioEnabled
	return p.AudioEnabled, nil
}

// Leave frees the participant's seat. It reports whether anything changed.
func (s *RoomState) Leave(pid domain.ParticipantID) bool {
	p, ok := s.participants[pid]
	if !ok {
		return false
	}
	s.release(p.SeatID)
	delete(s.participants, pid)
	return true
}

func (s *RoomState) Participant(pid domain.ParticipantID) (domain.Participant, bool) {
	p, ok := s.participants[pid]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (s *RoomState) ParticipantCount() int { return len(s.participants) }

func (s *RoomState) Snapshot() domain.Snapshot {
	users := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		users = append(users, *p)
	}
	slices.SortFunc(users, func(a, b domain.Participant) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return domain.Snapshot{Seats: slices.Clone(s.seats), Users: users}
}

// Hearers returns who receives a chat line from pid: the sender itself and
// every other audio-enabled participant within hearing distance.
func (s *RoomState) Hearers(pid domain.ParticipantID) ([]domain.Participant, error) {
	from, ok := s.participants[pid]
	if !ok {
		return nil, domain.ErrNotJoined
	}
	out := []domain.Participant{*from}
	for id, p := range s.participants {
		if id == pid || !p.AudioEnabled {
			continue
		}
		if spatial.InRange(from.Position, p.Position) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// CheckInvariants verifies the seat/participant pairing.
func (s *RoomState) CheckInvariants() error {
	held := make(map[domain.SeatID]domain.ParticipantID, len(s.participants))
	for id, p := range s.participants {
		if p.ID != id {
			return fmt.Errorf("participant %s stored under %s", p.ID, id)
		}
		i, ok := s.seatIdx[p.SeatID]
		if !ok {
			return fmt.Errorf("participant %s holds unknown seat %s", id, p.SeatID)
		}
		if other, dup := held[p.SeatID]; dup {
			return fmt.Errorf("seat %s held by %s and %s", p.SeatID, other, id)
		}
		held[p.SeatID] = id
		seat := s.seats[i]
		if !seat.Occupied || seat.Occupant != id {
			return fmt.Errorf("seat %s does not point back to %s", seat.ID, id)
		}
		if p.Position != seat.Position {
			return fmt.Errorf("participant %s at %v but seat %s at %v", id, p.Position, seat.ID, seat.Position)
		}
	}
	for _, seat := range s.seats {
		if seat.Occupied != (seat.Occupant != "") {
			return fmt.Errorf("seat %s occupancy flag disagrees with occupant", seat.ID)
		}
		if seat.Occupied && held[seat.ID] != seat.Occupant {
			return fmt.Errorf("seat %s occupied by absent %s", seat.ID, seat.Occupant)
		}
	}
	return nil
}
