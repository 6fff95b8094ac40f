package evidence

import "testing"

func TestCompositeIdentity_Deterministic(t *testing.T) {
	port := 9000
	id1 := CompositeIdentity("host-a", &port, "manifestH", "")
	id2 := CompositeIdentity("host-a", &port, "manifestH", "")
	if id1 != id2 {
		t.Fatal("expected deterministic composite identity")
	}
	if len(id1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(id1))
	}
}

func TestCompositeIdentity_MissingComponentsDiffer(t *testing.T) {
	port := 9000
	withPort := CompositeIdentity("host-a", &port, "", "")
	withoutPort := CompositeIdentity("host-a", nil, "", "")
	if withPort == withoutPort {
		t.Fatal("expected differing identities when port is present vs absent")
	}
}

func TestDeriveCompositeIdentity_FromHint(t *testing.T) {
	rec := &EvidenceRecord{
		HostIdentifier:   "host-a",
		CompositeKeyHint: &CompositeKeyHint{HostIdentifier: "host-a", Port: 9000, ManifestHash: "H"},
	}
	id := DeriveCompositeIdentity(rec)
	expected := CompositeIdentity("host-a", intPtr(9000), "H", "")
	if id != expected {
		t.Fatalf("expected %s, got %s", expected, id)
	}
}

func intPtr(i int) *int { return &i }
