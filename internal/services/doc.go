// Package services talks to the Spotify Web API.
//
// # Now-Playing Fetcher
//
// [SpotifyService] implements [Fetcher]: one bearer GET to
// /v1/me/player/currently-playing per call, classified into a [Result]:
//
//   - 200 with is_playing=true → [KindPlaying]
//   - 200 otherwise → [KindPaused]
//   - 204 → [KindIdle]
//   - 401 → [KindUnauthorized]
//   - 5xx → [KindAPIError]
//   - transport failure or undecodable body → [KindNetworkError]
//   - anything else → [KindUnhandled]
//
// FetchOnce has no side effects. Clearing the token on 401, the grace period and
// rescheduling all belong to the session package.
//
// # Error Handling
//
// Result.Err wraps sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : token rejected (401)
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrAPIRequest] : transport failure or unhandled status
package services
