package store

import "errors"

var (
	// ErrNotFound is returned for clan ids or instance names that are not
	// part of the tree.
	ErrNotFound = errors.New("not found")

	// ErrNotLoaded is returned when an operation needs a loaded clan but the
	// entry is still metadata only.
	ErrNotLoaded = errors.New("clan not loaded")

	// ErrNotMember is returned for machine ids that do not belong to the
	// clan a handle is bound to.
	ErrNotMember = errors.New("machine is not a member of this clan")

	// ErrIndexOutOfRange is returned for clan indexes outside the list.
	ErrIndexOutOfRange = errors.New("clan index out of range")

	// ErrDuplicateClan is returned when a clan id is already listed.
	ErrDuplicateClan = errors.New("clan already exists")

	// ErrDuplicateMachine is returned when a machine id is already used in
	// the clan.
	ErrDuplicateMachine = errors.New("machine already exists")

	// ErrDuplicateInstance is returned when an instance name is already used
	// in the clan.
	ErrDuplicateInstance = errors.New("service instance already exists")

	// ErrUnknownService is returned for service ids the clan does not offer.
	ErrUnknownService = errors.New("unknown service")
)
