package core

import "testing"

func TestRegistryConnectionTransitions(t *testing.T) {
	r := NewRegistry()

	first := NewClient(1, "alice")
	second := NewClient(1, "alice")

	if !r.Register(first) {
		t.Fatal("first connection must report the 0->1 transition")
	}
	if r.Register(second) {
		t.Fatal("second connection must not report a transition")
	}
	if !r.Online(1) {
		t.Fatal("expected user online")
	}
	if got := len(r.ClientsOf(1)); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	if r.Unregister(first) {
		t.Fatal("removing one of two connections must not report the 1->0 transition")
	}
	if !r.Unregister(second) {
		t.Fatal("removing the last connection must report the 1->0 transition")
	}
	if r.Online(1) {
		t.Fatal("expected user offline")
	}

	// Unknown connections are a no-op.
	if r.Unregister(first) {
		t.Fatal("double unregister must not report a transition")
	}
}
