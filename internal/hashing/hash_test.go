package hashing

import "testing"

func TestDomainSeparation(t *testing.T) {
	uid := "User-123"
	hi := Interaction(uid)
	hn := Notification(uid)
	hr := Report(uid)
	hc := ChainLink(hi)

	all := []string{hi, hn, hr, hc}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i] == all[j] {
				t.Fatalf("expected pairwise distinct hashes, got collision at %d,%d: %s", i, j, all[i])
			}
		}
	}

	for _, h := range all {
		if len(h) != 64 {
			t.Errorf("expected 64 hex chars, got %d for %q", len(h), h)
		}
		for _, c := range h {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				t.Errorf("expected lowercase hex, got char %q in %q", c, h)
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	uid := "some-uid"
	if Interaction(uid) != Interaction(uid) {
		t.Error("Interaction hash is not deterministic")
	}
	if Notification(uid) != Notification(uid) {
		t.Error("Notification hash is not deterministic")
	}
	if Report(uid) != Report(uid) {
		t.Error("Report hash is not deterministic")
	}
	if ChainLink(uid) != ChainLink(uid) {
		t.Error("ChainLink hash is not deterministic")
	}
}

func TestCaseInsensitive(t *testing.T) {
	if Interaction("abc") != Interaction("ABC") {
		t.Error("Interaction hash should uppercase its input before hashing")
	}
}

func TestChainLinkAppliesOverHashedID(t *testing.T) {
	uid := "user-xyz"
	hi := Interaction(uid)
	// ChainLink(hi) must differ from hashing the raw uid directly.
	if ChainLink(hi) == ChainLink(uid) {
		t.Fatal("ChainLink(H_I(uid)) collided with ChainLink(uid); these must differ unless hi==uid")
	}
}
