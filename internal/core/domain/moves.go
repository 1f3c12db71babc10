package domain

// Rhetorical moves of a research introduction and their sub-moves, indexed by
// the numeric labels the sentence classifier emits.
var moveLabels = map[int]string{
	0: "Establishing the research territory",
	1: "Establishing the niche",
	2: "Occupying the niche",
}

var subMoveLabels = map[int]map[int]string{
	0: {
		0: "Show that the research area is important, problematic, or relevant in some way",
		1: "Introduce and review previous research in the field",
	},
	1: {
		0: "Claim something is wrong with the previous research",
		1: "Highlight a gap in the field",
		2: "Raise a question where research in field is unclear",
		3: "Extend prior research to add more information on the topic",
	},
	2: {
		0: "Outline your purpose (s) and state the nature of your research",
		1: "State your hypothesis or research question you seek to answer",
		2: "Share your findings",
		3: "Elaborate on the value of your research",
		4: "Outline the structure that the research paper will follow",
	},
}

// MoveLabel returns the description of a move.
func MoveLabel(move int) (string, bool) {
	l, ok := moveLabels[move]
	return l, ok
}

// SubMoveLabel returns the description of a sub-move within move.
func SubMoveLabel(move, subMove int) (string, bool) {
	l, ok := subMoveLabels[move][subMove]
	return l, ok
}
