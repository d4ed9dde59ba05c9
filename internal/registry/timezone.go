package registry

import "time"

// ValidTimezone reports whether name is a loadable IANA timezone. This
// backs meta.set's "timezone not a recognised IANA name" rejection (§4.1).
func ValidTimezone(name string) bool {
	if name == "UTC" || name == "" {
		return true
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
