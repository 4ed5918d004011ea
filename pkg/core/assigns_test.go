package core

import (
	"context"
	"testing"
)

func TestAssigns_TracksChanges(t *testing.T) {
	a := NewAssigns()
	a.Set("step", 1)
	a.Set("errors", map[string]string{"name": "Name is required"})

	changed := a.Tracker().GetChanged()
	if len(changed) != 2 || changed[0] != "errors" || changed[1] != "step" {
		t.Fatalf("unexpected changes: %v", changed)
	}

	a.Set("step", 1)
	a.Set("errors", map[string]string{"name": "Name is required"})
	if a.Tracker().HasChanges() {
		t.Errorf("equal values must not count as changes: %v", a.Tracker().GetChanged())
	}

	a.Set("step", 2)
	if got := a.Tracker().GetChanged(); len(got) != 1 || got[0] != "step" {
		t.Errorf("expected [step], got %v", got)
	}
	if a.GetInt("step") != 2 {
		t.Errorf("expected step 2, got %d", a.GetInt("step"))
	}
}

func TestAssigns_MarkChangedAndDelete(t *testing.T) {
	a := NewAssigns()
	a.Set("flag", true)
	a.Tracker().GetChanged()

	a.MarkChanged("flag")
	if !a.Tracker().HasChanges() {
		t.Error("expected forced change")
	}
	a.Tracker().GetChanged()

	a.Delete("flag")
	if !a.Tracker().HasChanges() || a.GetBool("flag") {
		t.Error("expected delete to be tracked")
	}
	if v := a.Tracker().Version(); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

type named struct {
	BaseComponent
}

func (n *named) Name() string { return "named" }

func TestBaseComponent_Post(t *testing.T) {
	var n named
	if n.Post("x") {
		t.Error("post without mailbox must report false")
	}

	var got []any
	n.SetMailbox(MailboxFunc(func(msg any) bool {
		got = append(got, msg)
		return true
	}))
	if !n.Post("x") || len(got) != 1 {
		t.Errorf("expected delivery, got %v", got)
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s1")
	ctx = WithParams(ctx, Params{"step": "2"})

	if SessionIDFromContext(ctx) != "s1" {
		t.Error("session id lost")
	}
	if ParamsFromContext(ctx).GetDefault("step", "1") != "2" {
		t.Error("params lost")
	}
	if ParamsFromContext(context.Background()) == nil {
		t.Error("expected empty params")
	}
}
