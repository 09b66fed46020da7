package main

import (
	"testing"

	"github.com/lucasferro/license-server/utils/keyformat"
)

func TestSeededKeyIsCanonical(t *testing.T) {
	seeded := keyformat.Format(exampleKey)
	if seeded == "" {
		t.Fatal("seeded key is empty")
	}
	// A validation lookup formats the raw input first, so the stored value
	// must already be in display form.
	if got := keyformat.Format(seeded); got != seeded {
		t.Errorf("seeded key %q is not canonical, Format gives %q", seeded, got)
	}
	if !keyformat.IsWellFormed(seeded) {
		t.Errorf("seeded key %q is not well formed", seeded)
	}
}
