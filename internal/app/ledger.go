package app

import "realm-trivia-bot/internal/domain"

// Ledger tracks per-participant scores for one session. Records are created
// lazily on first submission and live until the session is discarded.
//
// The ledger is not safe for concurrent use: during a question's active
// phase it is mutated only by that question's answer window, which applies
// events one at a time, and it is read-only at all other times.
type Ledger struct {
	records map[string]*domain.ParticipantRecord
	order   []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]*domain.ParticipantRecord)}
}

func (l *Ledger) record(participantID, displayName string) *domain.ParticipantRecord {
	if rec, ok := l.records[participantID]; ok {
		if displayName != "" {
			rec.DisplayName = displayName
		}
		return rec
	}
	rec := &domain.ParticipantRecord{
		ParticipantID: participantID,
		DisplayName:   displayName,
	}
	l.records[participantID] = rec
	l.order = append(l.order, participantID)
	return rec
}

// ApplyCorrect credits a correct submission.
func (l *Ledger) ApplyCorrect(participantID, displayName string, points float64) {
	rec := l.record(participantID, displayName)
	rec.CorrectCount++
	rec.TotalPoints += points
}

// ReverseCorrect undoes a previously applied correct submission with the
// exact points that were awarded. A reverse with no prior record creates a
// zeroed one; the window never does this, but the branch mirrors how
// unmatched withdrawals were absorbed historically.
func (l *Ledger) ReverseCorrect(participantID string, points float64) {
	rec := l.record(participantID, "")
	rec.CorrectCount--
	rec.TotalPoints -= points
}

// ApplyWrong debits a wrong submission. Totals are not clamped and may go
// negative.
func (l *Ledger) ApplyWrong(participantID, displayName string, penalty float64) {
	rec := l.record(participantID, displayName)
	rec.WrongCount++
	rec.TotalPoints -= penalty
}

// ReverseWrong undoes a previously applied penalty.
func (l *Ledger) ReverseWrong(participantID string, penalty float64) {
	rec := l.record(participantID, "")
	rec.WrongCount--
	rec.TotalPoints += penalty
}

// Len returns the number of participants seen so far.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Records returns copies of all records in first-seen order.
func (l *Ledger) Records() []domain.ParticipantRecord {
	out := make([]domain.ParticipantRecord, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.records[id])
	}
	return out
}
