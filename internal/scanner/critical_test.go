package scanner

import (
	"errors"
	"testing"
)

func TestIsCriticalError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"too many open files", errors.New("dial tcp: socket: too many open files"), true},
		{"out of memory", errors.New("fork/exec: out of memory"), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:80: connect: connection refused"), false},
		{"case insensitive", errors.New("TOO MANY OPEN FILES"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCriticalError(tc.err); got != tc.want {
				t.Errorf("IsCriticalError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
