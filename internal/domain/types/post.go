package types

import "groupseal/internal/protocol/envelope"

// PostTypeE2EE marks a post whose real content is in Props.E2EE.
const PostTypeE2EE = "custom_e2ee"

// EncryptedPlaceholder replaces the message text of encrypted posts.
const EncryptedPlaceholder = "Encrypted message"

// PostProps carries structured attachments of a post.
type PostProps struct {
	E2EE *envelope.Raw `json:"e2ee,omitempty"`
}

// Post is a channel message as exchanged with the host transport.
type Post struct {
	ID            string    `json:"id,omitempty"`
	PendingPostID string    `json:"pending_post_id,omitempty"`
	ChannelID     ChannelID `json:"channel_id"`
	UserID        UserID    `json:"user_id"`
	Message       string    `json:"message"`
	Type          string    `json:"type,omitempty"`
	Props         PostProps `json:"props"`
}

// Encrypted reports whether the post carries an envelope.
func (p *Post) Encrypted() bool { return p.Props.E2EE != nil }

// Signature returns the envelope signature, or nil for clear posts.
func (p *Post) Signature() []byte {
	if p.Props.E2EE == nil {
		return nil
	}
	return p.Props.E2EE.Signature
}
