package assetstore

import "certassets.dev/internal/coreerr"

// IsAuthorized reports whether p may call a mutating operation.
func (s *Store) IsAuthorized(p Principal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized[p]
}

// Authorize adds p to the allowlist. Only an already-authorized caller
// may extend it; there is no removal operation, mirroring
// original_source's authorize().
func (s *Store) Authorize(caller, p Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized[caller] {
		return coreerr.ErrNotAuthorized
	}
	if s.authorized[p] {
		return nil
	}
	s.authorized[p] = true
	s.authorizedList = append(s.authorizedList, p)
	return nil
}
