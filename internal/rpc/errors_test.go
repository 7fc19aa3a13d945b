package rpc

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTooManyResults(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain failure", errors.New("connection refused"), false},
		{
			"alchemy style",
			errors.New("query returned more than 10000 results. Try with this block range [0xE4E58A, 0xFEE64F]"),
			true,
		},
		{
			"range hint only",
			errors.New("Try with this block range [0x1, 0x2]"),
			true,
		},
		{
			"wrapped",
			fmt.Errorf("RPC call eth_getLogs on ethereum failed: %w",
				errors.New("query returned more than 10000 results. Try with this block range [0xA, 0xB]")),
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTooManyResults(tc.err); got != tc.want {
				t.Errorf("IsTooManyResults() = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestParseSuggestedRange(t *testing.T) {
	err := errors.New("query returned more than 10000 results. Try with this block range [0xE4E58A, 0xFEE64F]")
	from, to, ok := ParseSuggestedRange(err)
	if !ok {
		t.Fatal("ParseSuggestedRange() ok = false")
	}
	if from != 0xE4E58A {
		t.Errorf("from = %#x, want 0xe4e58a", from)
	}
	if to != 0xFEE64F {
		t.Errorf("to = %#x, want 0xfee64f", to)
	}
}

func TestParseSuggestedRange_NoRange(t *testing.T) {
	if _, _, ok := ParseSuggestedRange(errors.New("query returned more than 10000 results")); ok {
		t.Error("ParseSuggestedRange() ok = true for an error without a range")
	}
	if _, _, ok := ParseSuggestedRange(nil); ok {
		t.Error("ParseSuggestedRange(nil) ok = true")
	}
}
