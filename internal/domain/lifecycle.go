package domain

type Operation string

const (
	OpPublish    Operation = "publish"
	OpUnpublish  Operation = "unpublish"
	OpRepublish  Operation = "republish"
	OpActivate   Operation = "activate"
	OpDeactivate Operation = "deactivate"
)

type transition struct {
	from Status
	op   Operation
}

// Allowed status changes of a single version. Edits never appear here:
// they append a new Draft version instead of moving an existing one.
//
//	Draft -> Published -> Active <-> Inactive
//	Published <-> Unpublished
//	Unpublished -> Active
var transitions = map[transition]Status{
	{StatusDraft, OpPublish}:         StatusPublished,
	{StatusPublished, OpUnpublish}:   StatusUnpublished,
	{StatusUnpublished, OpUnpublish}: StatusUnpublished,
	{StatusUnpublished, OpRepublish}: StatusPublished,
	{StatusPublished, OpActivate}:    StatusActive,
	{StatusUnpublished, OpActivate}:  StatusActive,
	{StatusInactive, OpActivate}:     StatusActive,
	{StatusActive, OpActivate}:       StatusActive,
	{StatusActive, OpDeactivate}:     StatusInactive,
	{StatusInactive, OpDeactivate}:   StatusInactive,
}

// NextStatus returns the status h moves to under op, or an
// InvalidStateTransition error when the guard does not hold.
func NextStatus(h Holon, op Operation) (Status, error) {
	next, ok := transitions[transition{h.Status, op}]
	if !ok {
		return h.Status, InvalidTransition(h.Status, op)
	}
	if op == OpActivate && !h.EverPublished() {
		return h.Status, InvalidTransition(h.Status, op)
	}
	return next, nil
}
