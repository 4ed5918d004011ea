package wizard

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kindredhq/intake/pkg/forms"
)

type signup struct {
	Name  string
	Color string
	Tags  []string
}

func requireField(field, value, msg string, errs forms.ErrorMap) {
	if strings.TrimSpace(value) == "" {
		errs.Set(field, msg)
	}
}

func testSteps() []Step[signup] {
	return []Step[signup]{
		{
			Name: "name",
			Validate: func(r signup) forms.ErrorMap {
				errs := forms.NewErrorMap()
				requireField("name", r.Name, "Name is required", errs)
				return errs
			},
		},
		{
			Name: "color",
			Validate: func(r signup) forms.ErrorMap {
				errs := forms.NewErrorMap()
				requireField("color", r.Color, "Please select an option", errs)
				if len(r.Tags) == 0 {
					errs.Set("tags", "Select at least one preference")
				}
				return errs
			},
		},
		{Name: "review"},
	}
}

func cloneSignup(r signup) signup {
	r.Tags = append([]string(nil), r.Tags...)
	return r
}

func TestNew_RequiresSteps(t *testing.T) {
	if _, err := New[signup](nil, signup{}); err != ErrNoSteps {
		t.Fatalf("expected ErrNoSteps, got %v", err)
	}
}

func TestNext_StaysOnInvalidStep(t *testing.T) {
	c, err := New(testSteps(), signup{})
	if err != nil {
		t.Fatal(err)
	}

	c.Update(func(r *signup) { r.Name = "Ada" })
	if got := c.Next(context.Background()); got != Advanced {
		t.Fatalf("expected advance, got %s", got)
	}

	// Both rules of step two fail and are reported together.
	if got := c.Next(context.Background()); got != Stayed {
		t.Fatalf("expected stay, got %s", got)
	}
	if c.Step() != 2 {
		t.Fatalf("expected step 2, got %d", c.Step())
	}
	want := forms.ErrorMap{
		"color": "Please select an option",
		"tags":  "Select at least one preference",
	}
	if diff := cmp.Diff(want, c.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestNext_AdvanceClearsErrors(t *testing.T) {
	c, _ := New(testSteps(), signup{})

	c.Next(context.Background())
	if c.Errors().Empty() {
		t.Fatal("expected errors after invalid next")
	}

	c.Record().Name = "Ada"
	if got := c.Next(context.Background()); got != Advanced {
		t.Fatalf("expected advance, got %s", got)
	}
	if !c.Errors().Empty() {
		t.Fatalf("expected errors cleared, got %v", c.Errors())
	}
}

func TestNext_CompletesExactlyOnce(t *testing.T) {
	var calls int
	var got signup
	var transitions []Transition

	c, _ := New(testSteps(), signup{Name: "Ada"},
		WithCloner(cloneSignup),
		WithCompletion(func(_ context.Context, r signup) {
			calls++
			got = r
		}),
		WithTransitionHook[signup](func(tr Transition) {
			transitions = append(transitions, tr)
		}),
	)

	ctx := context.Background()
	c.Next(ctx)
	c.Update(func(r *signup) {
		r.Color = "teal"
		r.Tags = append(r.Tags, "hiking")
	})
	c.Next(ctx)
	if out := c.Next(ctx); out != Completed {
		t.Fatalf("expected completion, got %s", out)
	}
	if out := c.Next(ctx); out != Completed {
		t.Fatalf("expected completion to be terminal, got %s", out)
	}

	if calls != 1 {
		t.Fatalf("expected one completion call, got %d", calls)
	}
	want := signup{Name: "Ada", Color: "teal", Tags: []string{"hiking"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	// The callback received a copy.
	c.Record().Tags[0] = "mutated"
	if got.Tags[0] != "hiking" {
		t.Error("completion record shares memory with the live record")
	}

	wantTransitions := []Transition{
		{From: 1, To: 2},
		{From: 2, To: 3},
		{From: 3, Completed: true},
	}
	if diff := cmp.Diff(wantTransitions, transitions); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	if c.Back() {
		t.Error("back must be a no-op after completion")
	}
}

func TestBack_FloorIsFirstStep(t *testing.T) {
	c, _ := New(testSteps(), signup{})
	for i := 0; i < 5; i++ {
		if c.Back() {
			t.Fatal("back on first step reported a change")
		}
		if c.Step() != 1 {
			t.Fatalf("expected step 1, got %d", c.Step())
		}
	}
}

func TestBack_IsUnconditional(t *testing.T) {
	c, _ := New(testSteps(), signup{Name: "Ada"})
	c.Next(context.Background())
	c.Next(context.Background()) // invalid, stays on 2

	c.Record().Name = ""
	if !c.Back() {
		t.Fatal("expected back to succeed")
	}
	if c.Step() != 1 {
		t.Fatalf("expected step 1, got %d", c.Step())
	}
	if !c.Errors().Empty() {
		t.Errorf("expected errors to be reset on back, got %v", c.Errors())
	}
}

func TestSnapshotRestore(t *testing.T) {
	c, _ := New(testSteps(), signup{Name: "Ada"}, WithCloner(cloneSignup))
	c.Next(context.Background())
	c.Update(func(r *signup) { r.Tags = []string{"a"} })
	c.Next(context.Background())

	snap := c.Snapshot()
	if snap.Step != 2 || !snap.Errors.Has("color") {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	other, _ := New(testSteps(), signup{}, WithCloner(cloneSignup))
	other.Restore(snap)
	if other.Step() != 2 {
		t.Fatalf("expected step 2, got %d", other.Step())
	}
	if diff := cmp.Diff(c.Snapshot(), other.Snapshot()); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}

	other.Restore(Snapshot[signup]{Step: 99})
	if other.Step() != 3 {
		t.Errorf("expected clamp to 3, got %d", other.Step())
	}
	other.Restore(Snapshot[signup]{Step: -4})
	if other.Step() != 1 {
		t.Errorf("expected clamp to 1, got %d", other.Step())
	}
}

func TestFieldErrors(t *testing.T) {
	c, _ := New(testSteps(), signup{})
	c.SetFieldError("profileImagePreview", "Only JPG/PNG files are allowed")
	if c.Errors().Get("profileImagePreview") == "" {
		t.Fatal("expected field error")
	}
	c.ClearFieldError("profileImagePreview")
	if c.Errors().Has("profileImagePreview") {
		t.Fatal("expected field error cleared")
	}
	if c.Step() != 1 {
		t.Fatal("field errors must not move the wizard")
	}
}
