package core

import (
	"context"
	"errors"
	"testing"
)

func TestDriver_Preview(t *testing.T) {
	store := newMemStore()
	store.products["3"] = ProductRecord{ID: "3", Title: "Stored"}
	acq := &memAcquirer{store: store}
	d := NewDriver(acq)

	feed := "id,title,price\n" +
		"1,Shoe,29.99\n" +
		"2,,10\n" +
		"1,Shoe2,15\n" +
		"3,Bag,5\n"

	resp, err := d.Preview(context.Background(), csvFeed("feed.csv", feed))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	want := PreviewSummary{TotalRows: 4, Accepted: 1, Rejected: 2, ExistingInStore: 1, DuplicateInFile: 1}
	if resp.Summary != want {
		t.Errorf("Summary = %+v, want %+v", resp.Summary, want)
	}
	if len(resp.DuplicateSamples) != 1 || resp.DuplicateSamples[0].ID != "1" {
		t.Fatalf("DuplicateSamples = %+v", resp.DuplicateSamples)
	}
	if got := resp.DuplicateSamples[0].Lines; len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("duplicate lines = %v, want [2 4]", got)
	}
	if len(resp.AcceptedSamples) != 2 || !resp.AcceptedSamples[1].Exists || resp.AcceptedSamples[0].Price != "29.99" {
		t.Errorf("AcceptedSamples = %+v", resp.AcceptedSamples)
	}
	if len(resp.ErrorSamples) != 2 || resp.ErrorSamples[0].Reasons[0] != "missing_title" {
		t.Errorf("ErrorSamples = %+v", resp.ErrorSamples)
	}

	if len(store.rejected) != 0 || len(store.products) != 1 {
		t.Error("Preview wrote to the store")
	}
	if acq.acquired != 1 || acq.released != 1 {
		t.Errorf("acquired %d, released %d; want 1, 1", acq.acquired, acq.released)
	}
}

func TestDriver_PreviewWithoutStore(t *testing.T) {
	d := NewDriver(nil)
	resp, err := d.Preview(context.Background(), csvFeed("feed.csv", threeRowFeed))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if resp.Summary.Accepted != 1 || resp.Summary.Rejected != 2 || resp.Summary.ExistingInStore != 0 {
		t.Errorf("Summary = %+v", resp.Summary)
	}
}

func TestDriver_PreviewErrors(t *testing.T) {
	d := NewDriver(nil)
	if _, err := d.Preview(context.Background(), csvFeed("feed.csv", "id,title\n1,Shoe\n")); !IsFatalIngest(err) {
		t.Errorf("missing column error = %v, want fatal ingest error", err)
	}

	boom := errors.New("pool closed")
	d = NewDriver(&memAcquirer{err: boom})
	if _, err := d.Preview(context.Background(), csvFeed("feed.csv", threeRowFeed)); !errors.Is(err, boom) {
		t.Errorf("acquire error = %v, want wrapped %v", err, boom)
	}
}
