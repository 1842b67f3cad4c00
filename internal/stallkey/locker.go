package stallkey

import "stallbook/internal/shared/keylock"

// Locker serializes mutations per Key. One instance is shared by every
// component that touches hold or queue state.
type Locker = keylock.Map[Key]

func NewLocker() *Locker {
	return keylock.New[Key]()
}
