package conversation

import (
	"slices"
	"strings"
)

// roomSep joins the two participant ids of a room id.
const roomSep = "_"

// RoomID derives the canonical room id for a pair of users: the two ids
// sorted and joined with "_". It is symmetric in its arguments.
func RoomID(a, b string) string {
	ids := []string{a, b}
	slices.Sort(ids)
	return strings.Join(ids, roomSep)
}

// Participants splits a room id into its two user ids.
func Participants(roomID string) (a, b string, ok bool) {
	a, b, ok = strings.Cut(roomID, roomSep)
	if !ok || a == "" || b == "" || strings.Contains(b, roomSep) {
		return "", "", false
	}
	return a, b, true
}

// IsParticipant reports whether userID is one of the two users of roomID.
func IsParticipant(roomID, userID string) bool {
	a, b, ok := Participants(roomID)
	return ok && userID != "" && (userID == a || userID == b)
}

// validUserID rejects ids that would make a room id ambiguous.
func validUserID(id string) bool {
	return id != "" && !strings.Contains(id, roomSep)
}
