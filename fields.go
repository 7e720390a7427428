package formz

import "github.com/zoobzio/capitan"

// Field keys for formz events.
var (
	// KeyNode is the name of the node emitting the event.
	KeyNode = capitan.NewStringKey("node")

	// KeyPhase is the validation phase after the event.
	KeyPhase = capitan.NewStringKey("phase")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyMember identifies a group member by name or index.
	KeyMember = capitan.NewStringKey("member")

	// KeyMembers is the number of members in a group.
	KeyMembers = capitan.NewIntKey("members")

	// KeyTimeout is the configured validation timeout.
	KeyTimeout = capitan.NewDurationKey("timeout")

	// KeyContentType is the MIME type of a baseline codec.
	KeyContentType = capitan.NewStringKey("content_type")

	// KeyPath is the file a baseline was read from.
	KeyPath = capitan.NewStringKey("path")
)
