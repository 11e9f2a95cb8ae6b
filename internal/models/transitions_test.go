package models

import (
	"errors"
	"testing"
	"time"
)

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		changed bool
		err     error
	}{
		{StatusWaiting, StatusCalled, true, nil},
		{StatusWaiting, StatusServed, true, nil},
		{StatusWaiting, StatusLeft, true, nil},
		{StatusWaiting, StatusCancelled, true, nil},
		{StatusCalled, StatusServed, true, nil},
		{StatusCalled, StatusLeft, true, nil},
		{StatusCalled, StatusCancelled, true, nil},
		{StatusCalled, StatusCalled, false, nil},
		{StatusServed, StatusServed, false, nil},
		{StatusLeft, StatusLeft, false, nil},
		{StatusCancelled, StatusCancelled, false, nil},
		{StatusServed, StatusLeft, false, ErrTerminal},
		{StatusServed, StatusCalled, false, ErrTerminal},
		{StatusLeft, StatusServed, false, ErrTerminal},
		{StatusCancelled, StatusCalled, false, ErrTerminal},
		{StatusCalled, StatusWaiting, false, ErrInvalidTarget},
		{StatusWaiting, Status("done"), false, ErrInvalidTarget},
	}

	for _, tt := range cases {
		changed, err := CheckTransition(tt.from, tt.to)
		if !errors.Is(err, tt.err) {
			t.Fatalf("CheckTransition(%q, %q) err=%v, want %v", tt.from, tt.to, err, tt.err)
		}
		if changed != tt.changed {
			t.Fatalf("CheckTransition(%q, %q)=%v, want %v", tt.from, tt.to, changed, tt.changed)
		}
	}
}

func TestApplyKeepsFirstTimestamp(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ticket := Ticket{Status: StatusWaiting, CreatedAt: created}

	firstCall := created.Add(time.Minute)
	if _, err := ticket.Apply(StatusCalled, firstCall); err != nil {
		t.Fatalf("call: %v", err)
	}
	if changed, err := ticket.Apply(StatusCalled, firstCall.Add(time.Minute)); err != nil || changed {
		t.Fatalf("repeat call: changed=%v err=%v", changed, err)
	}
	if !ticket.CalledAt.Equal(firstCall) {
		t.Fatalf("called_at overwritten: %v", ticket.CalledAt)
	}

	served := created.Add(5 * time.Minute)
	if _, err := ticket.Apply(StatusServed, served); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if changed, err := ticket.Apply(StatusServed, served.Add(time.Hour)); err != nil || changed {
		t.Fatalf("repeat serve: changed=%v err=%v", changed, err)
	}
	if !ticket.ServedAt.Equal(served) {
		t.Fatalf("served_at overwritten: %v", ticket.ServedAt)
	}
	if _, err := ticket.Apply(StatusLeft, served); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if ticket.LeftAt != nil {
		t.Fatalf("left_at must stay unset")
	}
}

func TestTicketBefore(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := Ticket{CreatedAt: at, Seq: 1}
	b := Ticket{CreatedAt: at, Seq: 2}
	c := Ticket{CreatedAt: at.Add(-time.Second), Seq: 3}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("sequence must break creation ties")
	}
	if !c.Before(a) {
		t.Fatalf("earlier creation must come first")
	}
}
