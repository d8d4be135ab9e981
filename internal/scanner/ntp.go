package scanner

import "github.com/beevik/ntp"

// probeNTP performs an SNTP time sync against the target and accepts the
// port as open only if the returned timestamp is strictly positive
// (spec.md §4.1 "123 (NTP)") — a server that answers with the zero epoch
// is treated as not actually serving time.
func probeNTP(ip string) bool {
	resp, err := ntp.QueryWithOptions(ip, ntp.QueryOptions{
		Timeout: udpProtocolTimeout,
		Port:    portNTP,
	})
	if err != nil || resp == nil {
		return false
	}
	if err := resp.Validate(); err != nil {
		return false
	}
	return resp.Time.Unix() > 0
}
