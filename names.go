package mq

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// nameRe matches queue/exchange/topic leaf names:
// ^[a-z0-9_-]+(\.[a-z0-9_-]+)*$
var nameRe = regexp.MustCompile(`^[a-z0-9_-]+(\.[a-z0-9_-]+)*$`)

// ValidateName checks a queue/exchange/topic leaf name against the pattern
// shared by every broker family.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return errors.Wrapf(ErrInvalidArgument, "invalid name %q", name)
	}
	return nil
}

// Scheme identifies the broker protocol family carried by a host URI.
type Scheme string

const (
	SchemeAMQP  Scheme = "amqp"
	SchemeAMQPS Scheme = "amqps"
	SchemeMQTT  Scheme = "mqtt"
	SchemeMQTTS Scheme = "mqtts"
)

// IsAMQP reports whether the scheme belongs to the AMQP family.
func (s Scheme) IsAMQP() bool { return s == SchemeAMQP || s == SchemeAMQPS }

// IsMQTT reports whether the scheme belongs to the MQTT family.
func (s Scheme) IsMQTT() bool { return s == SchemeMQTT || s == SchemeMQTTS }

// ParseHostURI validates a broker host URI and returns its scheme.
func ParseHostURI(hostURI string) (Scheme, error) {
	u, err := url.Parse(hostURI)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidArgument, "malformed host URI: %s", err)
	}
	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeAMQP, SchemeAMQPS, SchemeMQTT, SchemeMQTTS:
		return scheme, nil
	default:
		return "", errors.Wrapf(ErrInvalidArgument, "unsupported scheme %q", u.Scheme)
	}
}

// RandomID returns a short random identifier suitable for MQTT client IDs,
// derived from a UUIDv4.
func RandomID(prefix string, length int) string {
	id := newUUID()
	if length <= 0 || length > len(id) {
		length = len(id)
	}
	return prefix + id[:length]
}
