package fingerprint

import "testing"

// Golden table: raw vendor strings observed in both catalog
// representations and the class they must reduce to.
func TestNormalizeGolden(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		// memory codes
		{"ram-64g-ecc-2400-24sk50", "ram-64g"},
		{"ram-16g-ecc-2133", "ram-16g"},
		{"ram-16g-24skstor01", "ram-16g"},
		{"ram-32g-noecc-2133", "ram-32g"},
		{"ram-32g-ecc-2666-24ska01", "ram-32g"},
		{"ram-64g-ecc-2133-24sklb01", "ram-64g"},
		{"ram-64g-ecc-2133-24sklb01-v1", "ram-64g"},
		{"ram-96g-ecc-2400-25sysle012", "ram-96g"},
		{"RAM-64G-ECC-2400 ", "ram-64g"},
		// storage codes
		{"softraid-2x480ssd-24ska01", "softraid-2x480ssd"},
		{"hybridsoftraid-4x4000sa-1x500nvme-24skstor", "hybridsoftraid-4x4000sa-1x500nvme"},
		{"softraid-3x4000sa-24rise", "softraid-3x4000sa"},
		{"softraid-2x450nvme-24sk40", "softraid-2x450nvme"},
		{"raid-4x6000sa-24sysstor", "raid-4x6000sa"},
		{"softraid-1x480ssd-ks4", "softraid-1x480ssd"},
		// regional suffix
		{"ram-32g-ecc-2400-sgp", "ram-32g"},
		// unrecognized input degrades to lower-case/trim, never errors
		{"  Totally Unrecognized!! ", "totally unrecognized!!"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.raw); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"ram-64g-ecc-2400-24sk50",
		"hybridsoftraid-4x4000sa-1x500nvme-24skstor",
		"softraid-2x480ssd-24ska01",
		"ram-16g",
		"anything-else-entirely",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestFingerprintEquality(t *testing.T) {
	a := New("ram-16g-24skstor01", "hybridsoftraid-4x4000sa-1x500nvme-24skstor")
	b := New("ram-16g-ecc-2133", "hybridsoftraid-4x4000sa-1x500nvme")
	if a != b {
		t.Fatalf("expected equal fingerprints, got %+v vs %+v", a, b)
	}
	c := New("ram-32g-ecc-2133", "hybridsoftraid-4x4000sa-1x500nvme")
	if a == c {
		t.Fatal("different memory classes must not collide")
	}
}
