package scorer

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid scoring configuration. It is fatal at
// startup: no listing may be scored with a configuration that fails validation.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "scorer: invalid configuration: " + describeProblems(e.Problems)
}

// InvalidListingError reports a single malformed listing. The listing is
// excluded and the rest of the batch is still scored.
type InvalidListingError struct {
	ListingID string
	Reason    string
}

func (e *InvalidListingError) Error() string {
	return fmt.Sprintf("scorer: invalid listing %q: %s", e.ListingID, e.Reason)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsInvalidListing reports whether err wraps an *InvalidListingError.
func IsInvalidListing(err error) bool {
	var ie *InvalidListingError
	return errors.As(err, &ie)
}
