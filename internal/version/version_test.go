package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "chatrelay/"+Version {
		t.Fatalf("unexpected user agent %q", got)
	}
	if !strings.Contains(FullInfo(), Version) {
		t.Fatalf("full info must include the version: %q", FullInfo())
	}
}
