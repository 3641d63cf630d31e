package study

import "github.com/google/uuid"

// newID mints a surrogate key for rows that need one beyond their natural
// key (Review.ID, a newly-created Session.ID).
func newID() string {
	return uuid.NewString()
}
