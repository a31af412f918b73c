package lifecycle

import "testing"

func TestRedundantEncoding(t *testing.T) {
	cases := []struct {
		state State
		want  uint32
	}{
		{Raw, 0x00000000},
		{TestUnlocked0, 0x02108421},
		{TestLocked0, 0x04210842},
		{Dev, 0x21084210},
		{Scrap, 0x294A5294},
	}
	for _, tc := range cases {
		if got := tc.state.RedundantEncoding(); got != tc.want {
			t.Errorf("%s.RedundantEncoding() = 0x%08X, want 0x%08X", tc.state, got, tc.want)
		}
	}
}

func TestRequiresToken(t *testing.T) {
	required := []State{
		TestUnlocked0, TestUnlocked1, TestUnlocked2, TestUnlocked3,
		TestUnlocked4, TestUnlocked5, TestUnlocked6, TestUnlocked7, Rma,
	}
	for _, s := range required {
		if !s.RequiresToken() {
			t.Errorf("%s.RequiresToken() = false, want true", s)
		}
	}
	for _, s := range []State{Raw, TestLocked0, TestLocked6, Dev, Prod, ProdEnd, Scrap} {
		if s.RequiresToken() {
			t.Errorf("%s.RequiresToken() = true, want false", s)
		}
	}
}

func TestParseState(t *testing.T) {
	for state, name := range stateNames {
		got, err := ParseState(name)
		if err != nil || got != state {
			t.Errorf("ParseState(%q) = (%s, %v), want %s", name, got, err, state)
		}
	}
	if _, err := ParseState("unprovisioned"); err == nil {
		t.Error("ParseState accepted an unknown state name")
	}
}

func TestDeriveToken(t *testing.T) {
	secret := []byte("device-unlock-secret")
	first := DeriveToken(secret)
	if again := DeriveToken(secret); again != first {
		t.Fatalf("DeriveToken not deterministic: %v then %v", first, again)
	}
	if other := DeriveToken([]byte("different-secret")); other == first {
		t.Fatal("distinct secrets derived the same token")
	}
	if zero := (Token{}); first == zero {
		t.Fatal("derived token is all zeros")
	}
}
