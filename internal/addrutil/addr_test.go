package addrutil

import "testing"

func TestIsIPv4(t *testing.T) {
	cases := map[string]bool{
		"192.168.1.1": true,
		"0.0.0.0":     true,
		"256.1.1.1":   false,
		"::1":         false,
		"not-an-ip":   false,
	}
	for in, want := range cases {
		if got := IsIPv4(in); got != want {
			t.Errorf("IsIPv4(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsIPv6(t *testing.T) {
	cases := []struct {
		in        string
		bracketed bool
		want      bool
	}{
		{"::1", false, true},
		{"2001:db8::1", false, true},
		{"[::1]", true, true},
		{"[::1]", false, false}, // brackets not stripped
		{"fe80::1%eth0", false, true},
		{"::ffff:192.168.1.1", false, true},
		{"192.168.1.1", false, false},
		{"not-an-ip", false, false},
	}
	for _, c := range cases {
		if got := IsIPv6(c.in, c.bracketed); got != c.want {
			t.Errorf("IsIPv6(%q, %v) = %v, want %v", c.in, c.bracketed, got, c.want)
		}
	}
}

func TestBE16(t *testing.T) {
	b, err := BE16(0x1f90)
	if err != nil {
		t.Fatal(err)
	}
	if b != [2]byte{0x1f, 0x90} {
		t.Errorf("got %v", b)
	}
	if _, err := BE16(-1); err == nil {
		t.Error("expected error for negative port")
	}
	if _, err := BE16(65536); err == nil {
		t.Error("expected error for oversized port")
	}
}

func TestPackIPv4RoundTrip(t *testing.T) {
	for _, s := range []string{"1.2.3.4", "255.255.255.255", "0.0.0.0"} {
		packed, err := PackIPv4(s)
		if err != nil {
			t.Fatalf("PackIPv4(%q): %v", s, err)
		}
		text, err := UnpackIPv4ToText(packed)
		if err != nil {
			t.Fatalf("UnpackIPv4ToText: %v", err)
		}
		if !IsIPv4(text) {
			t.Errorf("round trip of %q produced non-IPv4 text %q", s, text)
		}
	}
}

func TestPackIPv4Invalid(t *testing.T) {
	if _, err := PackIPv4("not-an-ip"); err == nil {
		t.Error("expected error")
	}
	if _, err := PackIPv4("::1"); err == nil {
		t.Error("expected error for IPv6 input")
	}
}

func TestPackIPv6(t *testing.T) {
	packed, err := PackIPv6("[2001:db8::1]")
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) != 16 {
		t.Errorf("got %d bytes, want 16", len(packed))
	}
	if _, err := PackIPv6("1.2.3.4"); err == nil {
		t.Error("expected error for IPv4 input")
	}
}
