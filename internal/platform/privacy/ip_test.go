package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ipv4", in: "192.168.1.47", want: "192.168.1.0"},
		{name: "ipv4 loopback", in: "127.0.0.1", want: "127.0.0.0"},
		{name: "ipv4 mapped", in: "::ffff:10.1.2.3", want: "10.1.2.0"},
		{name: "ipv6", in: "2001:db8:85a3::8a2e:370:7334", want: "2001:db8:85a3::"},
		{name: "ipv6 zone dropped", in: "fe80::1%eth0", want: "fe80::"},
		{name: "empty", in: "", want: "unknown"},
		{name: "unknown", in: "unknown", want: "unknown"},
		{name: "garbage", in: "not-an-ip", want: "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIP(tt.in))
		})
	}
}
