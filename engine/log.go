package engine

import log "github.com/sirupsen/logrus"

// fieldLogger scopes a logrus entry to the calling function, matching the
// other_examples PianoAI player's log.WithFields(log.Fields{"function": ...})
// convention. This is developer-facing diagnostics only; nothing user-visible
// goes through here (see ElapseStack's UI channel for that).
func fieldLogger(fn string) *log.Entry {
	return log.WithFields(log.Fields{"function": fn})
}
