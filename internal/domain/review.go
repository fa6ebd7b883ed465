package domain

import "time"

// ReviewTag is a fixed-vocabulary label attached to a review.
type ReviewTag string

const (
	TagPunctual     ReviewTag = "punctual"
	TagClean        ReviewTag = "clean"
	TagFriendly     ReviewTag = "friendly"
	TagSafe         ReviewTag = "safe"
	TagProfessional ReviewTag = "professional"
	TagRude         ReviewTag = "rude"
	TagDirty        ReviewTag = "dirty"
	TagUnsafe       ReviewTag = "unsafe"
)

// Valid reports whether t belongs to the tag vocabulary.
func (t ReviewTag) Valid() bool {
	switch t {
	case TagPunctual, TagClean, TagFriendly, TagSafe, TagProfessional, TagRude, TagDirty, TagUnsafe:
		return true
	}
	return false
}

// Review is a rating left by one party of a completed ride for the other.
type Review struct {
	ID           string
	RideID       string
	Reviewer     Party
	Reviewee     Party
	Rating       int
	Comment      string
	Tags         []ReviewTag
	IsAnonymous  bool
	IsPublic     bool
	HelpfulCount int
	CreatedAt    time.Time
}
