package feed

import "fmt"

// FetchError reports a failed feed download. StatusCode is zero when the
// request never produced a response (network error, timeout).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed fetch failed: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed fetch failed: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fatal reports whether the failure is credential-class: retrying with the
// same configuration cannot succeed, so the polling loop must stop rather
// than hammer the upstream.
func (e *FetchError) Fatal() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// FeedParseError reports a payload that could not be decoded as a GTFS-RT
// feed message. The cycle proceeds with zero vehicle records.
type FeedParseError struct {
	Err error
}

func (e *FeedParseError) Error() string {
	return fmt.Sprintf("feed parse failed: %v", e.Err)
}

func (e *FeedParseError) Unwrap() error { return e.Err }
