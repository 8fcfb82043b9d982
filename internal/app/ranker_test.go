package app

import "testing"

func TestRankOrdersByPointsDescending(t *testing.T) {
	l := NewLedger()
	l.ApplyCorrect("u1", "Alice", 10)
	l.ApplyCorrect("u2", "Bob", 50)
	l.ApplyWrong("u3", "Cara", 5)

	entries := DisplayView(l)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []float64{50, 10, -5}
	for i, points := range want {
		if entries[i].TotalPoints != points {
			t.Fatalf("entry %d: expected %v points, got %+v", i, points, entries[i])
		}
	}
}

func TestRankTieBreaksByParticipantID(t *testing.T) {
	l := NewLedger()
	l.ApplyCorrect("zed", "Zed", 100)
	l.ApplyCorrect("amy", "Amy", 100)

	entries := Rank(l)
	if entries[0].ParticipantID != "amy" || entries[1].ParticipantID != "zed" {
		t.Fatalf("expected tie broken by ascending ID, got %+v", entries)
	}
}

func TestDisplayViewTruncatesToTwenty(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 25; i++ {
		l.ApplyCorrect(participantID(i), "p", float64(i))
	}

	display := DisplayView(l)
	if len(display) != 20 {
		t.Fatalf("expected display view of 20, got %d", len(display))
	}
	full := Rank(l)
	if len(full) != 25 {
		t.Fatalf("expected full view of 25, got %d", len(full))
	}
	if display[0].TotalPoints != 24 {
		t.Fatalf("expected leader with 24 points, got %+v", display[0])
	}
}

func participantID(i int) string {
	return string(rune('a'+i/10)) + string(rune('a'+i%10))
}
