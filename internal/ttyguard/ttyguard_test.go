package ttyguard

import "testing"

func TestShouldSuppressTTYQueries(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  bool
		want bool
	}{
		{"interactive", []string{"seltable", "people.jsonl"}, false, false},
		{"print", []string{"seltable", "--print", "people.jsonl"}, false, true},
		{"single dash", []string{"seltable", "-print"}, false, true},
		{"print=true", []string{"seltable", "--print=true"}, false, true},
		{"version", []string{"seltable", "--version"}, false, true},
		{"help", []string{"seltable", "-h"}, false, true},
		{"test mode", []string{"seltable"}, true, true},
		{"positional named print", []string{"seltable", "print"}, false, false},
		{"after terminator", []string{"seltable", "--", "--print"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSuppressTTYQueries(tt.args, tt.env); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
