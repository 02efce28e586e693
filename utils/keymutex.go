package utils

import "sync"

// KeyedMutex serializes read-check-write sequences per entity key (bounty id,
// application id, ...). Without it two contributors can both pass the
// "status = open" check before either write lands.
type KeyedMutex struct {
	locks sync.Map // key → *sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the mutex for key and returns the unlock func.
//
//	defer locks.Lock("bounty:" + id)()
func (k *KeyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
