package pipeline

import "testing"

func TestCleanDynamicOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no noise", "ran 3 tests\nok\n", "ran 3 tests\nok\n"},
		{
			"drops patch lines",
			"Patches applied: 2\nran 3 tests\n  Patches applied: patch_001.diff\nok\n",
			"ran 3 tests\nok\n",
		},
		{
			"keeps mentions mid-line",
			"note: Patches applied earlier\n",
			"note: Patches applied earlier\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanDynamicOutput(tc.in); got != tc.want {
				t.Errorf("CleanDynamicOutput(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
