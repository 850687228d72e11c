package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// DisplayName picks the name shown for a user: the explicit name when set,
// otherwise the local part of the email, otherwise "User".
func DisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local != "" {
		return local
	}
	return "User"
}

// ID trims an opaque identifier pasted by a user.
func ID(id string) string {
	return strings.TrimSpace(id)
}
