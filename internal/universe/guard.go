package universe

import (
	"errors"
	"fmt"
)

// ErrIncompatibleVersions aborts orchestration before any storage
// interaction when the signal and policy versions do not pair.
var ErrIncompatibleVersions = errors.New(
	"Incompatible versions: signal-version and policy-version must both be v3, or both non-v3.")

// CheckVersions enforces the v3 pairing rule: both versions are v3, or
// neither is.
func CheckVersions(signalVersion, policyVersion string) error {
	if (signalVersion == "v3") != (policyVersion == "v3") {
		return fmt.Errorf("%w (signal-version=%s, policy-version=%s)",
			ErrIncompatibleVersions, signalVersion, policyVersion)
	}
	return nil
}
