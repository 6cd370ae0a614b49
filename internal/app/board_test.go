package app

import (
	"testing"

	"quiz-arena-service/internal/domain"
)

func TestBoardSubscribeReceivesSnapshotAndUpdates(t *testing.T) {
	board := NewBoard()
	ch, cancel := board.Subscribe()
	defer cancel()

	<-ch // initial snapshot

	board.Publish(domain.Ranking{Entries: []domain.Standing{{UserID: "u1", Rank: 1}}})
	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].UserID != "u1" {
		t.Fatalf("expected published ranking, got %+v", update)
	}
}

func TestBoardDropsStaleUpdatesForSlowSubscribers(t *testing.T) {
	board := NewBoard()
	ch, cancel := board.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		board.Publish(domain.Ranking{Entries: []domain.Standing{{Rank: i + 1}}})
	}
	var last domain.Ranking
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Entries[0].Rank != 20 {
		t.Fatalf("expected latest ranking to survive, got %+v", last)
	}
	if board.Snapshot().Entries[0].Rank != 20 {
		t.Fatalf("snapshot should hold the latest ranking")
	}
}

func TestBoardCancelClosesChannel(t *testing.T) {
	board := NewBoard()
	ch, cancel := board.Subscribe()
	<-ch
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	if board.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
}
