package app

import (
	"sort"

	"realm-trivia-bot/internal/domain"
)

// displayLimit caps the leaderboard shown between questions. The final
// summary uses the full ranking.
const displayLimit = 20

// Rank returns every ledger record ordered by total points descending.
// Equal totals order by ascending participant ID, which keeps repeated
// rankings of the same ledger stable.
func Rank(l *Ledger) []domain.LeaderboardEntry {
	records := l.Records()
	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: rec.ParticipantID,
			DisplayName:   rec.DisplayName,
			CorrectCount:  rec.CorrectCount,
			WrongCount:    rec.WrongCount,
			TotalPoints:   rec.TotalPoints,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries
}

// DisplayView returns the ranking truncated for the live leaderboard.
func DisplayView(l *Ledger) []domain.LeaderboardEntry {
	entries := Rank(l)
	if len(entries) > displayLimit {
		entries = entries[:displayLimit]
	}
	return entries
}
