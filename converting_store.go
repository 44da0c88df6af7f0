package hkv

// ConvertingStore wraps another Store, translating keys and values at
// the boundary on every call. Its only contract with the core is that
// it forwards one call in and one call out; the concrete translation
// (e.g. a UTF-8 text adapter over the byte-string core) is left
// entirely to the four conversion functions supplied by the caller.
type ConvertingStore struct {
	Wrapped Store

	// ImportKey translates an external path component into the
	// internal byte-string form. isFragment distinguishes a leaf
	// component (e.g. a map key in a values argument) from a path
	// element, matching the original's two call sites.
	ImportKey func(external string, isFragment bool) string
	// ExportKey is ImportKey's inverse, used when returning keys
	// (e.g. from List or GetAll) to the caller.
	ExportKey func(internal string, isFragment bool) string
	// ImportValue/ExportValue translate scalar values at the boundary.
	ImportValue func(external []byte) []byte
	ExportValue func(internal []byte) []byte
}

func (c *ConvertingStore) Lock(owner *LockToken)         { c.Wrapped.Lock(owner) }
func (c *ConvertingStore) Unlock(owner *LockToken) error { return c.Wrapped.Unlock(owner) }
func (c *ConvertingStore) Close()                        { c.Wrapped.Close() }

func (c *ConvertingStore) importPath(path Path) Path {
	out := make(Path, len(path))
	for i, k := range path {
		out[i] = c.ImportKey(k, false)
	}
	return out
}

func (c *ConvertingStore) Get(owner *LockToken, path Path) ([]byte, error) {
	v, err := c.Wrapped.Get(owner, c.importPath(path))
	if err != nil {
		return nil, err
	}
	return c.ExportValue(v), nil
}

func (c *ConvertingStore) GetAll(owner *LockToken, path Path) (map[string][]byte, error) {
	res, err := c.Wrapped.GetAll(owner, c.importPath(path))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(res))
	for k, v := range res {
		out[c.ExportKey(k, true)] = c.ExportValue(v)
	}
	return out, nil
}

func (c *ConvertingStore) List(owner *LockToken, path Path, lclass LClass) ([]string, error) {
	items, err := c.Wrapped.List(owner, c.importPath(path), lclass)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, k := range items {
		out[i] = c.ExportKey(k, true)
	}
	return out, nil
}

func (c *ConvertingStore) Put(owner *LockToken, path Path, value []byte) error {
	return c.Wrapped.Put(owner, c.importPath(path), c.ImportValue(value))
}

func (c *ConvertingStore) importValues(values map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(values))
	for k, v := range values {
		out[c.ImportKey(k, true)] = c.ImportValue(v)
	}
	return out
}

func (c *ConvertingStore) PutAll(owner *LockToken, path Path, values map[string][]byte) error {
	return c.Wrapped.PutAll(owner, c.importPath(path), c.importValues(values))
}

func (c *ConvertingStore) Replace(owner *LockToken, path Path, values map[string][]byte) error {
	return c.Wrapped.Replace(owner, c.importPath(path), c.importValues(values))
}

func (c *ConvertingStore) Delete(owner *LockToken, path Path) error {
	return c.Wrapped.Delete(owner, c.importPath(path))
}

func (c *ConvertingStore) DeleteAll(owner *LockToken, path Path) error {
	return c.Wrapped.DeleteAll(owner, c.importPath(path))
}

var _ Store = (*ConvertingStore)(nil)
