package models

import (
	"strings"
	"unicode/utf8"

	"github.com/beitak/beitak/internal/apperr"
)

const (
	// MaxAge is the upper bound accepted for the age field.
	MaxAge = 120
	// MaxBioLength is the maximum bio length in runes.
	MaxBioLength = 500
	// MaxPhotos is the maximum number of photo references on a profile.
	MaxPhotos = 6
)

// ProfileUpdate is a partial update of a Profile. Only non-nil fields are
// written; everything else keeps its stored value.
//
// CompleteOnboarding can only set onboarding_completed to true, so no update
// can ever flip a completed profile back.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Age      *int    `json:"age,omitempty"`
	Gender   *Gender `json:"gender,omitempty"`
	City     *string `json:"city,omitempty"`
	Country  *string `json:"country,omitempty"`

	Smoking     *Smoking     `json:"smoking,omitempty"`
	Drinking    *Drinking    `json:"drinking,omitempty"`
	Diet        *Diet        `json:"diet,omitempty"`
	Prayer      *Prayer      `json:"prayer,omitempty"`
	Religiosity *Religiosity `json:"religiosity,omitempty"`

	Bio *string `json:"bio,omitempty"`

	MarriageTimeline  *MarriageTimeline `json:"marriage_timeline,omitempty"`
	WantChildren      *WantChildren     `json:"want_children,omitempty"`
	WillingToRelocate *bool             `json:"willing_to_relocate,omitempty"`

	// PhotoURLs replaces the stored list. An empty list is not an update.
	PhotoURLs     []string `json:"photo_urls,omitempty"`
	PhoneVerified *bool    `json:"phone_verified,omitempty"`

	CompleteOnboarding bool `json:"onboarding_completed,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u ProfileUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}

// Validate applies the field-level rules and returns the first violation as
// an *apperr.ValidationError.
func (u ProfileUpdate) Validate() error {
	if u.FullName != nil && strings.TrimSpace(*u.FullName) == "" {
		return apperr.Invalid(string(FieldFullName), "full name is required")
	}
	if u.Age != nil {
		if *u.Age <= 0 {
			return apperr.Invalid(string(FieldAge), "age must be positive")
		}
		if *u.Age > MaxAge {
			return apperr.Invalid(string(FieldAge), "age must be at most %d", MaxAge)
		}
	}
	if u.Gender != nil && !u.Gender.Valid() {
		return apperr.Invalid(string(FieldGender), "unknown gender %q", *u.Gender)
	}
	if u.City != nil && strings.TrimSpace(*u.City) == "" {
		return apperr.Invalid(string(FieldCity), "city must not be blank")
	}
	if u.Country != nil && strings.TrimSpace(*u.Country) == "" {
		return apperr.Invalid(string(FieldCountry), "country must not be blank")
	}
	if u.Smoking != nil && !u.Smoking.Valid() {
		return apperr.Invalid(string(FieldSmoking), "unknown smoking option %q", *u.Smoking)
	}
	if u.Drinking != nil && !u.Drinking.Valid() {
		return apperr.Invalid(string(FieldDrinking), "unknown drinking option %q", *u.Drinking)
	}
	if u.Diet != nil && !u.Diet.Valid() {
		return apperr.Invalid(string(FieldDiet), "unknown diet option %q", *u.Diet)
	}
	if u.Prayer != nil && !u.Prayer.Valid() {
		return apperr.Invalid(string(FieldPrayer), "unknown prayer option %q", *u.Prayer)
	}
	if u.Religiosity != nil && !u.Religiosity.Valid() {
		return apperr.Invalid(string(FieldReligiosity), "unknown religiosity option %q", *u.Religiosity)
	}
	if u.Bio != nil {
		bio := strings.TrimSpace(*u.Bio)
		if bio == "" {
			return apperr.Invalid(string(FieldBio), "bio must not be blank")
		}
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return apperr.Invalid(string(FieldBio), "bio must be at most %d characters", MaxBioLength)
		}
	}
	if u.MarriageTimeline != nil && !u.MarriageTimeline.Valid() {
		return apperr.Invalid(string(FieldMarriageTimeline), "unknown marriage timeline %q", *u.MarriageTimeline)
	}
	if u.WantChildren != nil && !u.WantChildren.Valid() {
		return apperr.Invalid(string(FieldWantChildren), "unknown children option %q", *u.WantChildren)
	}
	if len(u.PhotoURLs) > MaxPhotos {
		return apperr.Invalid(string(FieldPhotoURLs), "at most %d photos are allowed", MaxPhotos)
	}
	for _, ref := range u.PhotoURLs {
		if strings.TrimSpace(ref) == "" {
			return apperr.Invalid(string(FieldPhotoURLs), "photo reference must not be blank")
		}
	}
	return nil
}

// Column is a single column assignment of a partial update.
type Column struct {
	Name  Field
	Value any
}

// Columns lists the assignments carried by the update in a stable order.
// Enum values are converted to their string form so that drivers accept them.
func (u ProfileUpdate) Columns() []Column {
	var cols []Column
	add := func(f Field, v any) { cols = append(cols, Column{Name: f, Value: v}) }

	if u.FullName != nil {
		add(FieldFullName, strings.TrimSpace(*u.FullName))
	}
	if u.Age != nil {
		add(FieldAge, *u.Age)
	}
	if u.Gender != nil {
		add(FieldGender, string(*u.Gender))
	}
	if u.City != nil {
		add(FieldCity, strings.TrimSpace(*u.City))
	}
	if u.Country != nil {
		add(FieldCountry, strings.TrimSpace(*u.Country))
	}
	if u.Smoking != nil {
		add(FieldSmoking, string(*u.Smoking))
	}
	if u.Drinking != nil {
		add(FieldDrinking, string(*u.Drinking))
	}
	if u.Diet != nil {
		add(FieldDiet, string(*u.Diet))
	}
	if u.Prayer != nil {
		add(FieldPrayer, string(*u.Prayer))
	}
	if u.Religiosity != nil {
		add(FieldReligiosity, string(*u.Religiosity))
	}
	if u.Bio != nil {
		add(FieldBio, strings.TrimSpace(*u.Bio))
	}
	if u.MarriageTimeline != nil {
		add(FieldMarriageTimeline, string(*u.MarriageTimeline))
	}
	if u.WantChildren != nil {
		add(FieldWantChildren, string(*u.WantChildren))
	}
	if u.WillingToRelocate != nil {
		add(FieldWillingToRelocate, *u.WillingToRelocate)
	}
	if len(u.PhotoURLs) > 0 {
		add(FieldPhotoURLs, u.PhotoURLs)
	}
	if u.PhoneVerified != nil {
		add(FieldPhoneVerified, *u.PhoneVerified)
	}
	if u.CompleteOnboarding {
		add(FieldOnboardingCompleted, true)
	}
	return cols
}
