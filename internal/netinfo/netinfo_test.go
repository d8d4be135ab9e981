package netinfo

import (
	"net"
	"testing"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

func TestClassifySubnetTypeFlagsDockerBridges(t *testing.T) {
	cases := map[string]model.SubnetType{
		"docker0":          model.SubnetDockerBridge,
		"br-abcdef123456":  model.SubnetDockerBridge,
		"veth1234":         model.SubnetDockerBridge,
		"eth0":             model.SubnetPhysical,
		"wlan0":            model.SubnetPhysical,
		"tun0":             model.SubnetVPN,
		"wg0":              model.SubnetVPN,
		"utun3":            model.SubnetVPN,
		"tap0":             model.SubnetVPN,
		"ppp0":             model.SubnetVPN,
	}
	for name, want := range cases {
		got := classifySubnetType(net.Interface{Name: name})
		if got != want {
			t.Errorf("classifySubnetType(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSynthesizedVPNSubnetCIDRZeroesLastOctet(t *testing.T) {
	ip := net.ParseIP("10.8.0.5")
	got := synthesizedVPNSubnetCIDR(ip)
	if got != "10.8.0.0/24" {
		t.Errorf("synthesizedVPNSubnetCIDR(10.8.0.5) = %q, want 10.8.0.0/24", got)
	}
}

func TestFirstHostInSubnetReturnsDotOne(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("192.168.1.57/24")
	if err != nil {
		t.Fatal(err)
	}
	got := firstHostInSubnet(ipNet)
	if got != "192.168.1.1" {
		t.Errorf("firstHostInSubnet = %q, want 192.168.1.1", got)
	}
}

func TestFirstHostInSubnetRejectsOutOfRange(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("10.0.0.4/31")
	if err != nil {
		t.Fatal(err)
	}
	if got := firstHostInSubnet(ipNet); got != "" {
		t.Errorf("firstHostInSubnet = %q, want empty — .1 isn't in this /31", got)
	}
}
