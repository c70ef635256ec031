package mq

import uuid "github.com/satori/go.uuid"

// newUUID returns a fresh random UUIDv4 string, stripped of dashes.
func newUUID() string {
	id := uuid.NewV4().String()
	out := make([]byte, 0, len(id))
	for _, r := range id {
		if r != '-' {
			out = append(out, byte(r))
		}
	}
	return string(out)
}
