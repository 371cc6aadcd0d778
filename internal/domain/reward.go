package domain

import "slices"

// RewardEvent is the single reward produced for one participant in one
// round. Reward always lies in [0,1].
type RewardEvent struct {
	ParticipantID ParticipantID `json:"participant_id" yaml:"participant_id"`
	Reward        float64       `json:"reward" yaml:"reward"`
}

// ZeroRewards returns one zero-valued event per participant, in input order.
// It is the result of a round that failed before scoring could begin.
func ZeroRewards(participants []ParticipantResult) []RewardEvent {
	events := make([]RewardEvent, len(participants))
	for i, p := range participants {
		events[i] = RewardEvent{ParticipantID: p.ParticipantID}
	}
	return events
}

// PartitionByReward splits the participants of a finished round into those
// rewarded exactly zero and those rewarded anything else. Both slices are
// sorted ascending.
func PartitionByReward(events []RewardEvent) (zero, nonZero []ParticipantID) {
	for _, e := range events {
		if e.Reward == 0 {
			zero = append(zero, e.ParticipantID)
		} else {
			nonZero = append(nonZero, e.ParticipantID)
		}
	}
	slices.Sort(zero)
	slices.Sort(nonZero)
	return zero, nonZero
}
