package mesh

import (
	"sort"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// Plan is what one snapshot asks of the mesh.
type Plan struct {
	Teardown []domain.ParticipantID
	// Initiate lists peers this side sends the offer to.
	Initiate []domain.ParticipantID
	// Await lists peers expected to send the offer.
	Await []domain.ParticipantID
}

// Required returns the peers local must be connected to: every other
// audio-enabled participant, or none while local itself is muted or seatless.
func Required(local domain.ParticipantID, snap domain.Snapshot) map[domain.ParticipantID]domain.Participant {
	out := make(map[domain.ParticipantID]domain.Participant)
	self, ok := snap.User(local)
	if !ok || !self.AudioEnabled {
		return out
	}
	for _, u := range snap.Users {
		if u.ID != local && u.AudioEnabled {
			out[u.ID] = u
		}
	}
	return out
}

// Initiates reports whether local sends the offer to peer. Exactly one of
// two peers initiates: the one with the smaller id.
func Initiates(local, peer domain.ParticipantID) bool {
	return local < peer
}

// Reconcile diffs current sessions against required. With restart every
// current session is torn down and all required peers start over.
func Reconcile[T any](
	local domain.ParticipantID,
	current map[domain.ParticipantID]T,
	required map[domain.ParticipantID]domain.Participant,
	restart bool,
) Plan {
	var p Plan
	for id := range current {
		if _, ok := required[id]; restart || !ok {
			p.Teardown = append(p.Teardown, id)
		}
	}
	for id := range required {
		if _, ok := current[id]; ok && !restart {
			continue
		}
		if Initiates(local, id) {
			p.Initiate = append(p.Initiate, id)
		} else {
			p.Await = append(p.Await, id)
		}
	}
	sortIDs(p.Teardown)
	sortIDs(p.Initiate)
	sortIDs(p.Await)
	return p
}

func sortIDs(ids []domain.ParticipantID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
