package ethanol

import (
	"sync"
)

/*
Hands out users derived from consecutive indexes of one mnemonic, starting at
zero. Useful in tests that need several funded, independent accounts. Safe for
concurrent use; no index is handed out twice.
*/
type Vault struct {
	chain    *Blockchain
	mnemonic Mnemonic

	lock sync.Mutex
	next uint32
}

// Returns the user at the next unused index.
func (self *Vault) User() (User, error) {
	self.lock.Lock()
	index := self.next
	self.next++
	self.lock.Unlock()

	return self.chain.UserFromMnemonic(self.mnemonic, index)
}

// Number of users handed out so far.
func (self *Vault) Len() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return int(self.next)
}
