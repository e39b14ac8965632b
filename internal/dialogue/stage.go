package dialogue

import "github.com/garyellow/uniflow-chat/internal/event"

// NextStage picks the stage after a turn. Rules apply in order:
// confirm previews, modify_field edits, a pending clarification clarifies,
// missing fields keep collecting, and a titled and typed draft previews.
func NextStage(intent event.Intent, missing []string, ev event.Event, clarifying bool) event.Stage {
	switch {
	case intent == event.IntentConfirm:
		return event.StagePreviewing
	case intent == event.IntentModifyField:
		return event.StageEditing
	case clarifying:
		return event.StageClarifying
	case len(missing) > 0:
		return event.StageCollecting
	case ev.Title != "" && ev.Type != "":
		return event.StagePreviewing
	default:
		return event.StageCollecting
	}
}
