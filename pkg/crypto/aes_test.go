package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	box, err := NewBoxFromHex(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("NewBoxFromHex: %v", err)
	}

	sealed, err := box.Seal([]byte(`{"access_token":"x"}`), "google")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := box.Open(sealed, "google")
	if err != nil || string(got) != `{"access_token":"x"}` {
		t.Errorf("Open = %q, %v", got, err)
	}

	if _, err := box.Open(sealed, "outlook"); err == nil {
		t.Error("Open with another label succeeded")
	}
	other, _ := NewBoxFromHex(strings.Repeat("cd", 32))
	if _, err := other.Open(sealed, "google"); err == nil {
		t.Error("Open with the wrong key succeeded")
	}
}

func TestBoxErrors(t *testing.T) {
	if _, err := NewBoxFromHex("abcd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key err = %v", err)
	}
	if _, err := NewBoxFromHex("zz"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad hex err = %v", err)
	}

	box, _ := NewBox(make([]byte, 32))
	for _, in := range []string{"AAAA", "%%%"} {
		if _, err := box.Open(in, ""); !errors.Is(err, ErrMalformed) {
			t.Errorf("Open(%q) err = %v", in, err)
		}
	}
}
