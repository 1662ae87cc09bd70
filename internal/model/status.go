package model

// StatusNextAccessTime is the provider status key carrying the time at which
// an exhausted external quota becomes available again.
const StatusNextAccessTime = "next_access_time"

// ProviderStatus collects side-channel signals raised by providers during a
// request. It is merged into the persisted status file by the caller.
type ProviderStatus map[string]any

// Merge copies all entries of other into s.
func (s ProviderStatus) Merge(other ProviderStatus) {
	for k, v := range other {
		s[k] = v
	}
}
