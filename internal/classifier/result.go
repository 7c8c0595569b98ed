package classifier

// Prediction is the class assigned to a text.
type Prediction string

const (
	Spam Prediction = "spam"
	Ham  Prediction = "ham"
)

// Result is a prediction with the probability mass assigned to it.
// Confidence is always in [0.5, 1].
type Result struct {
	Prediction Prediction `json:"prediction"`
	Confidence float64    `json:"confidence"`
}

// Decide maps a spam probability p in [0,1] to a Result. p == 0.5 is ham.
func Decide(p float64) Result {
	if p > 0.5 {
		return Result{Prediction: Spam, Confidence: p}
	}
	return Result{Prediction: Ham, Confidence: 1 - p}
}
