// Package emotion defines the fixed set of diary emotions and their risk
// severity weights.
//
// Seven emotions are recognised. Two are high-severity negative (weight 2),
// two are moderate-severity negative (weight 1), and the remaining positive
// and neutral emotions carry no weight.
package emotion

import (
	"errors"
	"fmt"
	"strings"
)

// Emotion is one of the seven labels produced by the diary classifier.
type Emotion string

const (
	Happy       Emotion = "happy"
	Neutral     Emotion = "neutral"
	Embarrassed Emotion = "embarrassed"
	Sad         Emotion = "sad"
	Angry       Emotion = "angry"
	Anxious     Emotion = "anxious"
	Disgust     Emotion = "disgust"
)

// Severity weights.
const (
	WeightNone     = 0
	WeightModerate = 1
	WeightHigh     = 2
)

// ErrUnknownEmotion is returned for labels outside the fixed set.
var ErrUnknownEmotion = errors.New("emotion: unknown emotion")

var weights = map[Emotion]int{
	Happy:       WeightNone,
	Neutral:     WeightNone,
	Embarrassed: WeightNone,
	Sad:         WeightHigh,
	Angry:       WeightHigh,
	Anxious:     WeightModerate,
	Disgust:     WeightModerate,
}

// The classifier emits Korean labels; stored rows may carry either form.
var aliases = map[string]Emotion{
	"행복": Happy,
	"중립": Neutral,
	"당황": Embarrassed,
	"슬픔": Sad,
	"분노": Angry,
	"불안": Anxious,
	"혐오": Disgust,
}

// All returns the seven emotions in a stable order.
func All() []Emotion {
	return []Emotion{Happy, Neutral, Embarrassed, Sad, Angry, Anxious, Disgust}
}

// Score returns the severity weight of e.
func Score(e Emotion) (int, error) {
	w, ok := weights[e]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEmotion, string(e))
	}
	return w, nil
}

// Parse maps a stored label (canonical or Korean) to an Emotion.
func Parse(s string) (Emotion, error) {
	s = strings.TrimSpace(s)
	if e, ok := aliases[s]; ok {
		return e, nil
	}
	e := Emotion(strings.ToLower(s))
	if _, ok := weights[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, s)
	}
	return e, nil
}

// Valid reports whether e is one of the seven emotions.
func (e Emotion) Valid() bool {
	_, ok := weights[e]
	return ok
}

// Negative reports whether e carries a non-zero weight.
func (e Emotion) Negative() bool {
	return weights[e] > 0
}
