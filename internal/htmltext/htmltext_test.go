package htmltext

import "testing"

func TestPlain(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain passthrough", "just text", "just text"},
		{"trims", "  padded  ", "padded"},
		{"empty", "", ""},
		{"strips tags", "<p>Hello <i>world</i></p>", "Hello world"},
		{"decodes entities", "a &amp; b &gt; c", "a & b > c"},
		{"nested markup", "<div><p>one</p><p>two</p></div>", "onetwo"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Plain(c.in); got != c.want {
				t.Fatalf("Plain(%q)=%q, want %q", c.in, got, c.want)
			}
		})
	}
}
