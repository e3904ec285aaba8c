package workspace

import "strings"

// Optional returns nil for an empty (or all-whitespace) value and a pointer to
// the trimmed value otherwise. It is the only way entity constructors turn
// user input into optional fields.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences an optional field, returning "" when absent.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
