package job

import eventemitter "github.com/vansante/go-event-emitter"

const (
	CreatedPakEvent      eventemitter.EventType = "created-pak"
	StartPushingPakEvent eventemitter.EventType = "start-pushing-pak"
	PushedPakEvent       eventemitter.EventType = "pushed-pak"
	MarkPakDeletionEvent eventemitter.EventType = "mark-pak-deletion"
	DeletedPakEvent      eventemitter.EventType = "deleted-pak"
)
