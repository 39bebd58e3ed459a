package airquality

// Recommendation messages.
const (
	AdviceStayIndoors = "Please, stay indoors with purified air."
	AdviceWearMask    = "Please, wear a mask if going out."
	AdviceGoOutside   = "Feel free to go out!"
)

// Advise returns the recommendation for a tier. Indoors wins over Mask.
func Advise(tier Tier) string {
	if tier.Indoors {
		return AdviceStayIndoors
	}

	if tier.Mask {
		return AdviceWearMask
	}

	return AdviceGoOutside
}
