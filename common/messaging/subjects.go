package messaging

import "strings"

// SubjectRealtimePrefix prefixes every realtime room subject.
// Room "/companies/c1/applications" maps to "realtime.companies.c1.applications".
const SubjectRealtimePrefix = "realtime"

// RoomSubject converts a realtime room path into a broker subject.
// Characters that carry meaning in NATS subjects or AMQP routing keys
// ('.', '*', '>', '#', whitespace) are replaced with '_'.
func RoomSubject(roomPath string) string {
	segments := strings.Split(strings.Trim(roomPath, "/"), "/")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, SubjectRealtimePrefix)
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		parts = append(parts, sanitizeToken(seg))
	}
	return strings.Join(parts, ".")
}

func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', '#', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
