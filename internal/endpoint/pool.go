// Package endpoint defines network profiles and the ordered endpoint pool
// the connection manager fails over across.
package endpoint

// Profile identifies a logical Solana network. Immutable after load.
type Profile struct {
	// Name is the logical network name, e.g. "mainnet" or "devnet".
	Name string
	// Endpoints is the ordered list of RPC URLs. Earlier entries are
	// preferred on every reconnect.
	Endpoints []string
	// Commitment is the default consistency level for this network.
	Commitment string
}

// Pool yields the deterministic failover sequence for a profile. It carries
// no state beyond the static list.
type Pool struct {
	profile Profile
}

// NewPool builds a pool from a profile.
func NewPool(profile Profile) *Pool {
	return &Pool{profile: profile}
}

// Profile returns the underlying network profile.
func (p *Pool) Profile() Profile {
	return p.profile
}

// Sequence returns the ordered endpoint URLs to attempt. The returned slice
// is a copy; callers cannot mutate the pool.
func (p *Pool) Sequence() []string {
	return append([]string(nil), p.profile.Endpoints...)
}

// Len reports the number of candidate endpoints.
func (p *Pool) Len() int {
	return len(p.profile.Endpoints)
}
