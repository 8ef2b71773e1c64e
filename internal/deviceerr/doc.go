// Package deviceerr defines the error taxonomy shared by every layer that
// talks to an ecoMAX controller.
//
// All failures are reported as *DeviceError values carrying an ErrorType:
//   - Encoding: malformed input to frame construction, never retried
//   - Decoding: a matched frame is too short for its schema
//   - Connection: the session could not be opened, or is closed
//   - Transport: a send or receive failed on an open session
//   - Timeout: a single receive saw no data before its deadline
//   - NoResponse: the retry budget ran out without a matching frame
//
// Errors wrap their cause, so errors.Is/errors.As work through the chain.
package deviceerr
