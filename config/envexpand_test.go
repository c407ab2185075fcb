package config_test

import (
	"testing"

	"github.com/justapithecus/sift/config"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("SIFT_SET", "value")
	t.Setenv("SIFT_EMPTY", "")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "channel: ${SIFT_SET}", "channel: value"},
		{"unset variable", "channel: ${SIFT_UNSET_XYZ}", "channel: "},
		{"default used when unset", "channel: ${SIFT_UNSET_XYZ:-fallback}", "channel: fallback"},
		{"default ignored when set", "channel: ${SIFT_SET:-fallback}", "channel: value"},
		{"default used when empty", "channel: ${SIFT_EMPTY:-fallback}", "channel: fallback"},
		{"multiple references", "${SIFT_SET}/${SIFT_UNSET_XYZ:-alt}", "value/alt"},
		{"no references", "channel: plain", "channel: plain"},
		{"malformed reference left alone", "channel: ${not valid}", "channel: ${not valid}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := config.ExpandEnv(tc.input); got != tc.want {
				t.Errorf("ExpandEnv(%q): expected %q, got %q", tc.input, tc.want, got)
			}
		})
	}
}
