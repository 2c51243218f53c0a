package shell

import (
	"fmt"

	"github.com/beitak/beitak/internal/models"
)

var (
	genderOptions      = options(models.GenderMale, models.GenderFemale)
	smokingOptions     = options(models.SmokingYes, models.SmokingNo, models.SmokingOccasionally)
	drinkingOptions    = options(models.DrinkingYes, models.DrinkingNo, models.DrinkingSocially)
	dietOptions        = options(models.DietHalalOnly, models.DietHalalPreferred, models.DietNoPreference)
	prayerOptions      = options(models.PrayerFiveTimes, models.PrayerSometimes, models.PrayerRarely, models.PrayerLearning)
	religiosityOptions = options(models.ReligiosityVery, models.ReligiosityModerately, models.ReligiositySomewhat, models.ReligiosityNot)
	timelineOptions    = options(models.TimelineASAP, models.TimelineOneToTwo, models.TimelineExploring, models.TimelineNoRush)
	childrenOptions    = options(models.ChildrenYes, models.ChildrenNo, models.ChildrenMaybe, models.ChildrenOpen)
)

var stepTitles = map[models.StepName]string{
	models.StepBasicProfile:      "Tell us about yourself",
	models.StepLifestyle:         "Your lifestyle",
	models.StepProfileDetails:    "About you",
	models.StepRelationshipGoals: "Relationship goals",
	models.StepPhotos:            "Add photos",
	models.StepPhoneVerification: "Verify your phone",
	models.StepDone:              "All done",
}

// collect asks the questions of step and returns the typed answers.
func (p *prompter) collect(step models.StepName) (models.Answers, error) {
	switch step {
	case models.StepBasicProfile:
		var a models.BasicProfileAnswers
		var err error
		if a.FullName, err = p.text("Full name"); err != nil {
			return nil, err
		}
		if a.Age, err = p.number(string(models.FieldAge), "Age"); err != nil {
			return nil, err
		}
		g, err := p.choice("Gender (optional)", genderOptions)
		if err != nil {
			return nil, err
		}
		a.Gender = enum[models.Gender](g)
		return a, nil

	case models.StepLifestyle:
		var a models.LifestyleAnswers
		answers := []struct {
			label string
			opts  []string
			set   func(*string)
		}{
			{"Do you smoke?", smokingOptions, func(v *string) { a.Smoking = enum[models.Smoking](v) }},
			{"Do you drink?", drinkingOptions, func(v *string) { a.Drinking = enum[models.Drinking](v) }},
			{"Diet", dietOptions, func(v *string) { a.Diet = enum[models.Diet](v) }},
			{"How often do you pray?", prayerOptions, func(v *string) { a.Prayer = enum[models.Prayer](v) }},
			{"How religious are you?", religiosityOptions, func(v *string) { a.Religiosity = enum[models.Religiosity](v) }},
		}
		for _, q := range answers {
			v, err := p.choice(q.label, q.opts)
			if err != nil {
				return nil, err
			}
			q.set(v)
		}
		return a, nil

	case models.StepProfileDetails:
		var a models.ProfileDetailsAnswers
		var err error
		if a.Bio, err = p.text(fmt.Sprintf("Bio (up to %d characters)", models.MaxBioLength)); err != nil {
			return nil, err
		}
		if a.City, err = p.text("City (optional)"); err != nil {
			return nil, err
		}
		if a.Country, err = p.text("Country (optional)"); err != nil {
			return nil, err
		}
		return a, nil

	case models.StepRelationshipGoals:
		var a models.RelationshipGoalsAnswers
		t, err := p.choice("When are you looking to marry?", timelineOptions)
		if err != nil {
			return nil, err
		}
		a.MarriageTimeline = enum[models.MarriageTimeline](t)
		c, err := p.choice("Do you want children?", childrenOptions)
		if err != nil {
			return nil, err
		}
		a.WantChildren = enum[models.WantChildren](c)
		if a.WillingToRelocate, err = p.yesNo(string(models.FieldWillingToRelocate), "Willing to relocate?"); err != nil {
			return nil, err
		}
		return a, nil

	case models.StepPhotos:
		urls, err := p.list(fmt.Sprintf("Photo references, comma separated (up to %d, empty to skip)", models.MaxPhotos))
		if err != nil {
			return nil, err
		}
		return models.PhotosAnswers{PhotoURLs: urls}, nil

	case models.StepPhoneVerification:
		v, err := p.yesNo(string(models.FieldPhoneVerified), "Mark phone as verified?")
		if err != nil {
			return nil, err
		}
		return models.PhoneVerificationAnswers{Verified: v != nil && *v}, nil
	}
	return nil, fmt.Errorf("no questions for step %q", step)
}
