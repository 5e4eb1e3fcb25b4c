package types

import "fmt"

// UserID identifies a user of the host messaging system.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// ChannelID identifies a channel (a group of users).
type ChannelID string

// String returns the string form of the channel identifier.
func (c ChannelID) String() string { return string(c) }

// ChannelMode is the encryption method of a channel.
type ChannelMode string

const (
	// ModeNone sends posts in clear.
	ModeNone ChannelMode = "none"
	// ModeP2P encrypts every post for each member's public key.
	ModeP2P ChannelMode = "p2p"
)

// String returns the wire form of the mode.
func (m ChannelMode) String() string { return string(m) }

// ParseChannelMode accepts "none" and "p2p".
func ParseChannelMode(s string) (ChannelMode, error) {
	switch ChannelMode(s) {
	case ModeNone, ModeP2P:
		return ChannelMode(s), nil
	default:
		return ModeNone, fmt.Errorf("unknown channel mode %q", s)
	}
}
