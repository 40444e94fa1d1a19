package util

import (
	"net/mail"
	"strings"
)

const (
	UnknownSender  = "Unknown"
	DefaultSubject = "No Subject"
)

// NormalizeSender extracts a lowercased address from a From header value such
// as "Name <User@Example.COM>". Lists fall back to the first parsable entry.
// Returns "" when nothing parses.
func NormalizeSender(fromHeader string) string {
	addr := parseFirst(fromHeader)
	if addr == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr.Address))
}

// DisplayName returns the quoted name of a From header, or "" if it has none.
func DisplayName(fromHeader string) string {
	addr := parseFirst(fromHeader)
	if addr == nil {
		return ""
	}
	return strings.TrimSpace(addr.Name)
}

func parseFirst(fromHeader string) *mail.Address {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return nil
	}
	if addr, err := mail.ParseAddress(fromHeader); err == nil {
		return addr
	}
	for _, p := range strings.Split(fromHeader, ",") {
		if a, err := mail.ParseAddress(strings.TrimSpace(p)); err == nil {
			return a
		}
	}
	return nil
}

// SenderName derives the short name shown for a sender: the local part of the
// address, or "Unknown" when there is none.
func SenderName(address string) string {
	local, _, _ := strings.Cut(address, "@")
	if local = strings.TrimSpace(local); local == "" {
		return UnknownSender
	}
	return local
}

// SubjectOrDefault substitutes "No Subject" for a blank subject.
func SubjectOrDefault(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return DefaultSubject
	}
	return subject
}
