package replicate

import "fmt"

// SubmissionError wraps any failure to create a prediction: transport errors,
// rejected requests, and malformed responses alike. Callers apply no retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("prediction submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusFetchError wraps any failure to fetch a prediction's status. A
// prediction in a failed or canceled state is not a StatusFetchError; only the
// call itself failing is.
type StatusFetchError struct {
	PredictionID string
	Err          error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("status fetch for prediction %s failed: %v", e.PredictionID, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }
