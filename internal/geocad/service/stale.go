package service

// ============================================================
// Staleness
// ============================================================

// State - совпадает ли перегенерированный CAD-файл с сохранёнными записями.
type State int

const (
	Fresh State = iota
	Stale
)

func StateOf(stale bool) State {
	if stale {
		return Stale
	}
	return Fresh
}

func (s State) Stale() bool { return s == Stale }

func (s State) String() string {
	if s == Stale {
		return "stale"
	}
	return "fresh"
}

type EventKind int

const (
	Extracted EventKind = iota
	LayerCreated
	LayerUpdated
	LayerDeleted
	InsertionCreated
	InsertionUpdated
	InsertionDeleted
	InsertionResynced
	InsertionExploded
	Regenerated
)

var eventNames = [...]string{
	"extracted", "layer_created", "layer_updated", "layer_deleted",
	"insertion_created", "insertion_updated", "insertion_deleted",
	"insertion_resynced", "insertion_exploded", "regenerated",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event - одно изменение содержимого чертежа.
type Event struct {
	Kind EventKind
	ID   string
}

// Transition - состояние после ev. Свежим чертёж делает только перегенерация.
func Transition(s State, ev Event) State {
	if ev.Kind == Regenerated {
		return Fresh
	}
	return Stale
}

// Fold применяет события по порядку.
func Fold(s State, events []Event) State {
	for _, ev := range events {
		s = Transition(s, ev)
	}
	return s
}
