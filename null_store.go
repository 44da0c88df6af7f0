package hkv

// NullStore is a Store whose reads always miss and whose writes are
// silently discarded. It is useful as a /dev/null-style placeholder
// wherever a Store is required but no data need actually be kept —
// e.g. a session that has not opened a real store yet could, in an
// embedded deployment, be wired to one instead of nil.
type NullStore struct{}

func (NullStore) Lock(*LockToken)         {}
func (NullStore) Unlock(*LockToken) error { return nil }
func (NullStore) Close()                  {}

func (NullStore) Get(*LockToken, Path) ([]byte, error)                 { return nil, ErrNoKey }
func (NullStore) GetAll(*LockToken, Path) (map[string][]byte, error)   { return nil, ErrNoKey }
func (NullStore) List(*LockToken, Path, LClass) ([]string, error)      { return nil, ErrNoKey }
func (NullStore) Put(*LockToken, Path, []byte) error                   { return nil }
func (NullStore) PutAll(*LockToken, Path, map[string][]byte) error     { return nil }
func (NullStore) Replace(*LockToken, Path, map[string][]byte) error    { return nil }
func (NullStore) Delete(*LockToken, Path) error                        { return nil }
func (NullStore) DeleteAll(*LockToken, Path) error                     { return nil }

var _ Store = NullStore{}
