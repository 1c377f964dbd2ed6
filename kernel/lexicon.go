package kernel

import (
	"regexp"
	"strings"

	"github.com/corebrain/robobrain/robot"
)

// lexiconEntry pairs a literal phrase or goal pattern with the interrupt
// kind it produces. Checked top-down; extensible without touching the
// matching loop (D.3).
type lexiconEntry struct {
	literal string
	pattern *regexp.Regexp
	kind    robot.InterruptKind
}

var goalPatternEN = regexp.MustCompile(`^go to (.+)$`)
var goalPatternZH = regexp.MustCompile(`^去(.+)$`)

var lexicon = []lexiconEntry{
	{literal: "stop", kind: robot.InterruptSTOP},
	{literal: "紧急停止", kind: robot.InterruptSTOP},
	{literal: "pause", kind: robot.InterruptPAUSE},
	{literal: "暂停", kind: robot.InterruptPAUSE},
}

// classify maps a normalized utterance to an interrupt kind and payload.
// Empty or unmatched input classifies as NONE.
func classify(utterance string) (robot.InterruptKind, map[string]string) {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return robot.InterruptNONE, nil
	}

	for _, entry := range lexicon {
		if normalized == entry.literal {
			return entry.kind, nil
		}
	}

	if m := goalPatternEN.FindStringSubmatch(normalized); m != nil {
		return robot.InterruptNEW_GOAL, map[string]string{"goal_text": "navigate_to:" + strings.TrimSpace(m[1])}
	}
	if m := goalPatternZH.FindStringSubmatch(normalized); m != nil {
		return robot.InterruptNEW_GOAL, map[string]string{"goal_text": "navigate_to:" + strings.TrimSpace(m[1])}
	}

	return robot.InterruptNONE, nil
}
