package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsText(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	cases := []string{"0.1.0-dev", "1.2.3", "nightly", "1.2-rc1"}
	for _, v := range cases {
		if got := Colored(v); got != v {
			t.Errorf("Colored(%q) = %q", v, got)
		}
	}
}

func TestDefaultVersionIsSemver(t *testing.T) {
	if Version == "" {
		t.Fatal("Version is empty")
	}
}
