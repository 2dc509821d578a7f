package resolver

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	tests := []struct {
		name     string
		in       []netip.Addr
		expected []netip.Addr
	}{
		{
			name:     "empty",
			in:       nil,
			expected: []netip.Addr{},
		},
		{
			name: "order preserved",
			in: []netip.Addr{
				netip.MustParseAddr("2001:db8::1"),
				netip.MustParseAddr("192.0.2.1"),
			},
			expected: []netip.Addr{
				netip.MustParseAddr("2001:db8::1"),
				netip.MustParseAddr("192.0.2.1"),
			},
		},
		{
			name: "duplicates dropped keeping first",
			in: []netip.Addr{
				netip.MustParseAddr("192.0.2.1"),
				netip.MustParseAddr("192.0.2.2"),
				netip.MustParseAddr("192.0.2.1"),
			},
			expected: []netip.Addr{
				netip.MustParseAddr("192.0.2.1"),
				netip.MustParseAddr("192.0.2.2"),
			},
		},
		{
			name: "mapped form counts as duplicate",
			in: []netip.Addr{
				netip.MustParseAddr("192.0.2.1"),
				netip.MustParseAddr("::ffff:192.0.2.1"),
			},
			expected: []netip.Addr{
				netip.MustParseAddr("192.0.2.1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dedup(tt.in))
		})
	}
}
