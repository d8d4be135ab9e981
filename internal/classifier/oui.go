package classifier

import "strings"

// ouiVendors maps a normalized OUI (the first three MAC octets, upper-cased
// hex with no separators) to the registered company name. The original
// implementation loads the full IEEE OUI database via a vendored crate; no
// equivalent database ships as an importable Go module in this dependency
// set, so this is a small embedded table covering the vendors the built-in
// definitions actually match against (see DESIGN.md).
var ouiVendors = map[string]string{
	"001788": "Philips Lighting BV",
	"ECB5FA": "Philips Lighting BV",
	"3C5AB4": "Google, Inc.",
	"F4F5D8": "Google, Inc.",
	"18B430": "Nest Labs Inc.",
	"64169D": "Nest Labs Inc.",
	"B0B98A": "eero Inc",
	"149D09": "eero Inc",
	"44650D": "eero Inc",
	"50C7BF": "TP-LINK TECHNOLOGIES CO.,LTD",
	"C4E984": "TP-LINK TECHNOLOGIES CO.,LTD",
	"EC086B": "TP-LINK TECHNOLOGIES CO.,LTD",
	"FC4463": "Ubiquiti Networks Inc",
	"74ACB9": "Ubiquiti Networks Inc",
	"802AA8": "Ubiquiti Networks Inc",
	"F0272D": "Amazon Technologies Inc.",
	"68371D": "Amazon Technologies Inc.",
	"000E58": "Sonos, Inc.",
	"5CAAFD": "Sonos, Inc.",
	"B8E937": "Sonos, Inc.",
	"0040B0": "ecobee inc",
	"B0FCA8": "ecobee inc",
	"D83134": "Roku, Inc",
	"CC6DA0": "Roku, Inc",
	"B0A737": "Roku, Inc",
	"3C520E": "HP Inc.",
	"D4C9EF": "HP Inc.",
}

// LookupVendor normalizes mac (any common MAC format) and reports the
// registered vendor name for its OUI, if known.
func LookupVendor(mac string) (string, bool) {
	oui := normalizeMAC(mac)
	if oui == "" {
		return "", false
	}
	vendor, ok := ouiVendors[oui]
	return vendor, ok
}

// normalizeMAC extracts the first three octets of mac (the OUI) as
// upper-case hex with no separators, e.g. "b0:b9:8a:11:22:33" -> "B0B98A".
func normalizeMAC(mac string) string {
	var hex strings.Builder
	for _, r := range mac {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			hex.WriteRune(r)
		}
	}
	s := strings.ToUpper(hex.String())
	if len(s) < 6 {
		return ""
	}
	return s[:6]
}
