// Package models defines the core data structures for users, profiles and
// the onboarding step chain.
package models

import (
	"time"
)

// User represents an account known to the auth collaborator.
type User struct {
	// ID is the unique identifier for the user (a UUID string).
	ID string
	// Email is the login address; unique across users.
	Email string
	// PasswordHash is the bcrypt hash of the password, empty for magic-link only accounts.
	PasswordHash []byte
	// CreatedAt is when the account was first created.
	CreatedAt time.Time
}

// Gender is the profile owner's gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Smoking describes smoking habits.
type Smoking string

const (
	SmokingYes          Smoking = "yes"
	SmokingNo           Smoking = "no"
	SmokingOccasionally Smoking = "occasionally"
)

// Drinking describes drinking habits.
type Drinking string

const (
	DrinkingYes      Drinking = "yes"
	DrinkingNo       Drinking = "no"
	DrinkingSocially Drinking = "socially"
)

// Diet describes dietary observance.
type Diet string

const (
	DietHalalOnly      Diet = "halal-only"
	DietHalalPreferred Diet = "halal-preferred"
	DietNoPreference   Diet = "no-preference"
)

// Prayer describes prayer frequency.
type Prayer string

const (
	PrayerFiveTimes Prayer = "five-times"
	PrayerSometimes Prayer = "sometimes"
	PrayerRarely    Prayer = "rarely"
	PrayerLearning  Prayer = "learning"
)

// Religiosity describes self-assessed religiosity.
type Religiosity string

const (
	ReligiosityVery       Religiosity = "very-religious"
	ReligiosityModerately Religiosity = "moderately-religious"
	ReligiositySomewhat   Religiosity = "somewhat-religious"
	ReligiosityNot        Religiosity = "not-religious"
)

// MarriageTimeline describes how soon the user wants to marry.
type MarriageTimeline string

const (
	TimelineASAP      MarriageTimeline = "asap"
	TimelineOneToTwo  MarriageTimeline = "1-2-years"
	TimelineExploring MarriageTimeline = "exploring"
	TimelineNoRush    MarriageTimeline = "no-rush"
)

// WantChildren describes the user's wish for children.
type WantChildren string

const (
	ChildrenYes   WantChildren = "yes"
	ChildrenNo    WantChildren = "no"
	ChildrenMaybe WantChildren = "maybe"
	ChildrenOpen  WantChildren = "open"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func (s Smoking) Valid() bool {
	switch s {
	case SmokingYes, SmokingNo, SmokingOccasionally:
		return true
	}
	return false
}

func (d Drinking) Valid() bool {
	switch d {
	case DrinkingYes, DrinkingNo, DrinkingSocially:
		return true
	}
	return false
}

func (d Diet) Valid() bool {
	switch d {
	case DietHalalOnly, DietHalalPreferred, DietNoPreference:
		return true
	}
	return false
}

func (p Prayer) Valid() bool {
	switch p {
	case PrayerFiveTimes, PrayerSometimes, PrayerRarely, PrayerLearning:
		return true
	}
	return false
}

func (r Religiosity) Valid() bool {
	switch r {
	case ReligiosityVery, ReligiosityModerately, ReligiositySomewhat, ReligiosityNot:
		return true
	}
	return false
}

func (m MarriageTimeline) Valid() bool {
	switch m {
	case TimelineASAP, TimelineOneToTwo, TimelineExploring, TimelineNoRush:
		return true
	}
	return false
}

func (w WantChildren) Valid() bool {
	switch w {
	case ChildrenYes, ChildrenNo, ChildrenMaybe, ChildrenOpen:
		return true
	}
	return false
}

// Profile holds the user's matchmaking attributes. Every optional attribute is
// a pointer: nil means "not answered yet".
type Profile struct {
	// ID equals the owning user's ID.
	ID    string `json:"id"`
	Email string `json:"email"`

	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
	Gender   *Gender `json:"gender"`
	City     *string `json:"city"`
	Country  *string `json:"country"`

	Smoking     *Smoking     `json:"smoking"`
	Drinking    *Drinking    `json:"drinking"`
	Diet        *Diet        `json:"diet"`
	Prayer      *Prayer      `json:"prayer"`
	Religiosity *Religiosity `json:"religiosity"`

	Bio *string `json:"bio"`

	MarriageTimeline  *MarriageTimeline `json:"marriage_timeline"`
	WantChildren      *WantChildren     `json:"want_children"`
	WillingToRelocate *bool             `json:"willing_to_relocate"`

	// PhotoURLs are opaque photo references; upload itself is not handled here.
	PhotoURLs []string `json:"photo_urls"`

	PhoneVerified   bool `json:"phone_verified"`
	ProfileVerified bool `json:"profile_verified"`
	// OnboardingCompleted is monotonic: once true it is never reset.
	OnboardingCompleted bool `json:"onboarding_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply merges the fields present in upd into a copy of p and returns it.
// Fields absent from upd are left untouched.
func (p Profile) Apply(upd ProfileUpdate) Profile {
	if upd.FullName != nil {
		p.FullName = upd.FullName
	}
	if upd.Age != nil {
		p.Age = upd.Age
	}
	if upd.Gender != nil {
		p.Gender = upd.Gender
	}
	if upd.City != nil {
		p.City = upd.City
	}
	if upd.Country != nil {
		p.Country = upd.Country
	}
	if upd.Smoking != nil {
		p.Smoking = upd.Smoking
	}
	if upd.Drinking != nil {
		p.Drinking = upd.Drinking
	}
	if upd.Diet != nil {
		p.Diet = upd.Diet
	}
	if upd.Prayer != nil {
		p.Prayer = upd.Prayer
	}
	if upd.Religiosity != nil {
		p.Religiosity = upd.Religiosity
	}
	if upd.Bio != nil {
		p.Bio = upd.Bio
	}
	if upd.MarriageTimeline != nil {
		p.MarriageTimeline = upd.MarriageTimeline
	}
	if upd.WantChildren != nil {
		p.WantChildren = upd.WantChildren
	}
	if upd.WillingToRelocate != nil {
		p.WillingToRelocate = upd.WillingToRelocate
	}
	if len(upd.PhotoURLs) > 0 {
		p.PhotoURLs = append([]string(nil), upd.PhotoURLs...)
	}
	if upd.PhoneVerified != nil {
		p.PhoneVerified = *upd.PhoneVerified
	}
	if upd.CompleteOnboarding {
		p.OnboardingCompleted = true
	}
	return p
}

// Ptr returns a pointer to v. Handy for building updates and answers.
func Ptr[T any](v T) *T {
	return &v
}

// CodePurpose separates magic-link codes from password-reset codes.
type CodePurpose string

const (
	PurposeMagicLink     CodePurpose = "magic_link"
	PurposePasswordReset CodePurpose = "password_reset"
)

// AuthCode is a hashed one-time code waiting to be redeemed.
type AuthCode struct {
	Email     string
	Purpose   CodePurpose
	CodeHash  []byte
	ExpiresAt time.Time
	// Attempts counts wrong guesses against this code.
	Attempts int
}

// AuthToken is an issued session: the bearer token, its owner and expiry.
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
