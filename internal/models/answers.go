package models

// Answers is the set of fields submitted for one onboarding step. Each step
// has its own struct so field names are checked at compile time.
type Answers interface {
	// Step names the step these answers belong to.
	Step() StepName
	// Update converts the answers to the partial profile update they persist.
	Update() ProfileUpdate
}

// BasicProfileAnswers carries the identity fields.
type BasicProfileAnswers struct {
	FullName *string
	Age      *int
	Gender   *Gender
}

func (BasicProfileAnswers) Step() StepName { return StepBasicProfile }

func (a BasicProfileAnswers) Update() ProfileUpdate {
	return ProfileUpdate{FullName: a.FullName, Age: a.Age, Gender: a.Gender}
}

// LifestyleAnswers carries the lifestyle enums.
type LifestyleAnswers struct {
	Smoking     *Smoking
	Drinking    *Drinking
	Diet        *Diet
	Prayer      *Prayer
	Religiosity *Religiosity
}

func (LifestyleAnswers) Step() StepName { return StepLifestyle }

func (a LifestyleAnswers) Update() ProfileUpdate {
	return ProfileUpdate{
		Smoking:     a.Smoking,
		Drinking:    a.Drinking,
		Diet:        a.Diet,
		Prayer:      a.Prayer,
		Religiosity: a.Religiosity,
	}
}

// ProfileDetailsAnswers carries the narrative and location fields.
type ProfileDetailsAnswers struct {
	Bio     *string
	City    *string
	Country *string
}

func (ProfileDetailsAnswers) Step() StepName { return StepProfileDetails }

func (a ProfileDetailsAnswers) Update() ProfileUpdate {
	return ProfileUpdate{Bio: a.Bio, City: a.City, Country: a.Country}
}

// RelationshipGoalsAnswers carries the relationship-goal fields.
type RelationshipGoalsAnswers struct {
	MarriageTimeline  *MarriageTimeline
	WantChildren      *WantChildren
	WillingToRelocate *bool
}

func (RelationshipGoalsAnswers) Step() StepName { return StepRelationshipGoals }

func (a RelationshipGoalsAnswers) Update() ProfileUpdate {
	return ProfileUpdate{
		MarriageTimeline:  a.MarriageTimeline,
		WantChildren:      a.WantChildren,
		WillingToRelocate: a.WillingToRelocate,
	}
}

// PhotosAnswers carries photo references. Empty means the step was skipped.
type PhotosAnswers struct {
	PhotoURLs []string
}

func (PhotosAnswers) Step() StepName { return StepPhotos }

func (a PhotosAnswers) Update() ProfileUpdate {
	if len(a.PhotoURLs) == 0 {
		return ProfileUpdate{}
	}
	return ProfileUpdate{PhotoURLs: a.PhotoURLs}
}

// PhoneVerificationAnswers marks the phone as verified. The verification
// itself is stubbed; a false value is the skip path.
type PhoneVerificationAnswers struct {
	Verified bool
}

func (PhoneVerificationAnswers) Step() StepName { return StepPhoneVerification }

func (a PhoneVerificationAnswers) Update() ProfileUpdate {
	if !a.Verified {
		return ProfileUpdate{}
	}
	return ProfileUpdate{PhoneVerified: Ptr(true)}
}

// EmptyAnswers returns the zero answers of step n, used by skip affordances.
func EmptyAnswers(n StepName) (Answers, bool) {
	switch n {
	case StepBasicProfile:
		return BasicProfileAnswers{}, true
	case StepLifestyle:
		return LifestyleAnswers{}, true
	case StepProfileDetails:
		return ProfileDetailsAnswers{}, true
	case StepRelationshipGoals:
		return RelationshipGoalsAnswers{}, true
	case StepPhotos:
		return PhotosAnswers{}, true
	case StepPhoneVerification:
		return PhoneVerificationAnswers{}, true
	}
	return nil, false
}
