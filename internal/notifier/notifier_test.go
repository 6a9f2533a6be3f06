package notifier

import "testing"

func TestRegisterThenComplete(t *testing.T) {
	n := New()
	ch := n.Register(1)

	n.Complete(1, Result{Payload: "ok"})

	select {
	case res := <-ch:
		if res.Payload != "ok" {
			t.Fatalf("payload = %v, want ok", res.Payload)
		}
	default:
		t.Fatalf("expected a buffered result")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	n := New()
	ch := n.Register(1)

	n.Complete(1, Result{Payload: "first"})
	n.Complete(1, Result{Payload: "second"})

	res := <-ch
	if res.Payload != "first" {
		t.Fatalf("payload = %v, want first", res.Payload)
	}
	select {
	case <-ch:
		t.Fatalf("expected only one buffered result")
	default:
	}
}

func TestCompleteWithoutRegisterIsNoop(t *testing.T) {
	n := New()
	n.Complete(99, Result{Payload: "unreceived"})
}

func TestCancelRemovesWaiter(t *testing.T) {
	n := New()
	n.Register(1)
	n.Cancel(1)
	n.Complete(1, Result{Payload: "too late"})
}
