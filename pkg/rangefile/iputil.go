package rangefile

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// ipv4Len is the byte length of an IPv4 address.
const ipv4Len = 4

// IP2Long converts a dotted IPv4 address to its numeric form.
func IP2Long(ip string) (uint32, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return 0, errors.Errorf("not an IPv4 address: %q", ip)
	}

	return binary.BigEndian.Uint32(parsed), nil
}

// Long2IP converts a numeric IPv4 address back to dotted form.
func Long2IP(n uint32) string {
	ip := make(net.IP, ipv4Len)
	binary.BigEndian.PutUint32(ip, n)

	return ip.String()
}

// CIDRToRange returns the first and last numeric addresses of an IPv4 CIDR block.
func CIDRToRange(cidr string) (low, high uint32, err error) {
	_, ipv4Net, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "could not convert CIDR '%s' to IP range", cidr)
	}

	if len(ipv4Net.IP.To4()) != ipv4Len || len(ipv4Net.Mask) != ipv4Len {
		return 0, 0, errors.Errorf("not an IPv4 CIDR: %q", cidr)
	}

	mask := binary.BigEndian.Uint32(ipv4Net.Mask)
	start := binary.BigEndian.Uint32(ipv4Net.IP.To4()) & mask
	end := start | ^mask

	return start, end, nil
}
