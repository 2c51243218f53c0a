package models

import (
	"errors"
	"fmt"
)

// Field names a Profile attribute. The values double as column names of the
// profiles table and JSON keys on the wire.
type Field string

const (
	FieldFullName            Field = "full_name"
	FieldAge                 Field = "age"
	FieldGender              Field = "gender"
	FieldCity                Field = "city"
	FieldCountry             Field = "country"
	FieldSmoking             Field = "smoking"
	FieldDrinking            Field = "drinking"
	FieldDiet                Field = "diet"
	FieldPrayer              Field = "prayer"
	FieldReligiosity         Field = "religiosity"
	FieldBio                 Field = "bio"
	FieldMarriageTimeline    Field = "marriage_timeline"
	FieldWantChildren        Field = "want_children"
	FieldWillingToRelocate   Field = "willing_to_relocate"
	FieldPhotoURLs           Field = "photo_urls"
	FieldPhoneVerified       Field = "phone_verified"
	FieldOnboardingCompleted Field = "onboarding_completed"
)

// Has reports whether the profile has a value for f. The second result is
// false when f is not a Profile attribute.
func (p Profile) Has(f Field) (set bool, known bool) {
	switch f {
	case FieldFullName:
		return p.FullName != nil, true
	case FieldAge:
		return p.Age != nil, true
	case FieldGender:
		return p.Gender != nil, true
	case FieldCity:
		return p.City != nil, true
	case FieldCountry:
		return p.Country != nil, true
	case FieldSmoking:
		return p.Smoking != nil, true
	case FieldDrinking:
		return p.Drinking != nil, true
	case FieldDiet:
		return p.Diet != nil, true
	case FieldPrayer:
		return p.Prayer != nil, true
	case FieldReligiosity:
		return p.Religiosity != nil, true
	case FieldBio:
		return p.Bio != nil, true
	case FieldMarriageTimeline:
		return p.MarriageTimeline != nil, true
	case FieldWantChildren:
		return p.WantChildren != nil, true
	case FieldWillingToRelocate:
		return p.WillingToRelocate != nil, true
	case FieldPhotoURLs:
		return len(p.PhotoURLs) > 0, true
	case FieldPhoneVerified:
		return p.PhoneVerified, true
	case FieldOnboardingCompleted:
		return p.OnboardingCompleted, true
	}
	return false, false
}

// StepName identifies one onboarding step.
type StepName string

const (
	StepBasicProfile      StepName = "basic-profile"
	StepLifestyle         StepName = "lifestyle"
	StepProfileDetails    StepName = "profile-details"
	StepRelationshipGoals StepName = "relationship-goals"
	StepPhotos            StepName = "photos"
	StepPhoneVerification StepName = "phone-verification"
	// StepDone is the terminal marker that follows the last step.
	StepDone StepName = "done"
)

// Step is one stage of the onboarding chain.
type Step struct {
	Name StepName
	// Required lists the fields that must be set to consider the step satisfied.
	Required []Field
	// Next is the successor step, StepDone for the terminal step.
	Next StepName
	// Skippable steps can be advanced with no answers.
	Skippable bool
}

// Chain is the onboarding sequence, first step first.
var Chain = []Step{
	{Name: StepBasicProfile, Required: []Field{FieldFullName, FieldAge}, Next: StepLifestyle},
	{Name: StepLifestyle, Required: []Field{FieldSmoking, FieldDrinking, FieldDiet, FieldPrayer, FieldReligiosity}, Next: StepProfileDetails},
	{Name: StepProfileDetails, Required: []Field{FieldBio}, Next: StepRelationshipGoals},
	{Name: StepRelationshipGoals, Required: []Field{FieldMarriageTimeline, FieldWantChildren, FieldWillingToRelocate}, Next: StepPhotos},
	{Name: StepPhotos, Next: StepPhoneVerification, Skippable: true},
	{Name: StepPhoneVerification, Next: StepDone, Skippable: true},
}

// FirstStep is where every new onboarding starts.
const FirstStep = StepBasicProfile

// LookupStep returns the chain entry named n.
func LookupStep(n StepName) (Step, bool) {
	for _, s := range Chain {
		if s.Name == n {
			return s, true
		}
	}
	return Step{}, false
}

// PreviousStep returns the step whose Next is n.
func PreviousStep(n StepName) (StepName, bool) {
	for _, s := range Chain {
		if s.Next == n {
			return s.Name, true
		}
	}
	return "", false
}

// Missing returns the required fields of step that p does not have yet.
func (p Profile) Missing(step Step) []Field {
	var missing []Field
	for _, f := range step.Required {
		if set, _ := p.Has(f); !set {
			missing = append(missing, f)
		}
	}
	return missing
}

// MissingForCompletion returns every required field of the chain that p lacks.
func (p Profile) MissingForCompletion() []Field {
	var missing []Field
	for _, s := range Chain {
		missing = append(missing, p.Missing(s)...)
	}
	return missing
}

// FirstUnsatisfied returns the first step whose required fields are not all
// present on p, or StepDone when onboarding is completed. A profile that has
// every required field but no completion flag resumes at the first skippable step.
func (p Profile) FirstUnsatisfied() StepName {
	if p.OnboardingCompleted {
		return StepDone
	}
	for _, s := range Chain {
		if len(s.Required) > 0 && len(p.Missing(s)) > 0 {
			return s.Name
		}
	}
	for _, s := range Chain {
		if len(s.Required) == 0 {
			return s.Name
		}
	}
	return Chain[len(Chain)-1].Name
}

// ValidateChain checks that steps form a single linear chain starting at the
// first entry, with no cycles, exactly one terminal step, and only real
// Profile attributes as required fields.
func ValidateChain(steps []Step) error {
	if len(steps) == 0 {
		return errors.New("empty chain")
	}
	byName := make(map[StepName]Step, len(steps))
	terminals := 0
	for _, s := range steps {
		if s.Name == StepDone {
			return fmt.Errorf("step name %q is reserved", StepDone)
		}
		if _, dup := byName[s.Name]; dup {
			return fmt.Errorf("duplicate step %q", s.Name)
		}
		byName[s.Name] = s
		if s.Next == StepDone {
			terminals++
		}
		for _, f := range s.Required {
			if _, known := (Profile{}).Has(f); !known {
				return fmt.Errorf("step %q requires unknown field %q", s.Name, f)
			}
		}
	}
	if terminals != 1 {
		return fmt.Errorf("chain must have exactly one terminal step, got %d", terminals)
	}

	visited := make(map[StepName]bool, len(steps))
	cur := steps[0].Name
	for cur != StepDone {
		if visited[cur] {
			return fmt.Errorf("cycle at step %q", cur)
		}
		visited[cur] = true
		s, ok := byName[cur]
		if !ok {
			return fmt.Errorf("unknown step %q", cur)
		}
		cur = s.Next
	}
	if len(visited) != len(steps) {
		return fmt.Errorf("chain reaches %d of %d steps", len(visited), len(steps))
	}
	return nil
}
