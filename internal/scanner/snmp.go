package scanner

import "github.com/gosnmp/gosnmp"

// sysDescrOID is the standard MIB-II system description object.
const sysDescrOID = "1.3.6.1.2.1.1.1.0"

// probeSNMP opens a v2c session with the "public" community and GETs
// sysDescr; any non-empty varbind means the agent is listening (spec.md
// §4.1 "161 (SNMP)").
func probeSNMP(ip string) bool {
	g := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      portSNMP,
		Community: "public",
		Version:   gosnmp.Version2c,
		Timeout:   udpProtocolTimeout,
		Retries:   0,
	}

	if err := g.Connect(); err != nil {
		return false
	}
	defer g.Conn.Close()

	result, err := g.Get([]string{sysDescrOID})
	if err != nil || result == nil {
		return false
	}

	for _, v := range result.Variables {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}
		switch val := v.Value.(type) {
		case []byte:
			if len(val) > 0 {
				return true
			}
		case string:
			if val != "" {
				return true
			}
		default:
			if v.Value != nil {
				return true
			}
		}
	}
	return false
}
