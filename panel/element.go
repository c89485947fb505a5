package panel

import "golang.org/x/exp/slices"

// ElementID identifies an element of the control page.
type ElementID string

const (
	CameraStartButton  ElementID = "cameraStartButton"
	CameraStopButton   ElementID = "cameraStopButton"
	AlarmButton        ElementID = "alarmButton"
	TriggerAlarmButton ElementID = "triggerAlarmButton"
	BuzzerOffButton    ElementID = "buzzerOffButton"
	BuzzerStateLabel   ElementID = "buzzerState"
	StartButton        ElementID = "startButton"
	ConfirmModal       ElementID = "confirmModal"
	ConfirmYes         ElementID = "confirmYes"
	ConfirmNo          ElementID = "confirmNo"
)

var elements = []ElementID{
	CameraStartButton,
	CameraStopButton,
	AlarmButton,
	TriggerAlarmButton,
	BuzzerOffButton,
	BuzzerStateLabel,
	StartButton,
	ConfirmModal,
	ConfirmYes,
	ConfirmNo,
}

// Elements lists every element the controller drives.
func Elements() []ElementID {
	return slices.Clone(elements)
}

var parents = map[ElementID]ElementID{
	ConfirmYes: ConfirmModal,
	ConfirmNo:  ConfirmModal,
}

// ParentOf returns the container of the given element, if it has one.
// Hiding the container hides the element.
func ParentOf(id ElementID) (ElementID, bool) {
	parent, ok := parents[id]
	return parent, ok
}

// View is the page surface the controller writes to.
type View interface {
	SetText(id ElementID, text string)
	SetDisabled(id ElementID, disabled bool)
	SetVisible(id ElementID, visible bool)
	Alert(message string)
}
