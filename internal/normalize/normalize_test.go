package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name, email, want string
	}{
		{"Alice", "alice@example.com", "Alice"},
		{"  ", "bob.smith@example.com", "bob.smith"},
		{"", "", "User"},
		{"", "@example.com", "User"},
	}
	for _, c := range cases {
		if got := DisplayName(c.name, c.email); got != c.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", c.name, c.email, got, c.want)
		}
	}
}

func TestID(t *testing.T) {
	if got := ID("  65f0c0ffee  \n"); got != "65f0c0ffee" {
		t.Fatalf("ID() = %q", got)
	}
}
