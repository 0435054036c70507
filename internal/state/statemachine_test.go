package state

import "testing"

func TestNextStateValidEdges(t *testing.T) {
	next, err := NextState(StateCreated, EvtOpen)
	if err != nil || next != StateOpen {
		t.Fatalf("created --open--> %s, err=%v", next, err)
	}
	next, err = NextState(StateOpen, EvtClose)
	if err != nil || next != StateClosed {
		t.Fatalf("open --close--> %s, err=%v", next, err)
	}
}

func TestNextStateRejectsInvalidEdges(t *testing.T) {
	cases := []struct{ cur, evt string }{
		{StateCreated, EvtClose}, // 未开放不能关闭
		{StateOpen, EvtOpen},
		{StateClosed, EvtOpen}, // closed 为终态
		{StateClosed, EvtClose},
	}
	for _, c := range cases {
		next, err := NextState(c.cur, c.evt)
		if err == nil {
			t.Fatalf("%s --%s--> should fail", c.cur, c.evt)
		}
		if next != c.cur {
			t.Fatalf("failed transition must keep state: got %s want %s", next, c.cur)
		}
	}
}

func TestAcceptsBets(t *testing.T) {
	if AcceptsBets(StateCreated) || AcceptsBets(StateClosed) {
		t.Fatalf("only open accepts bets")
	}
	if !AcceptsBets(StateOpen) {
		t.Fatalf("open must accept bets")
	}
}
