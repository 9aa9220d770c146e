// Package http provides HTTP handlers and middleware for the room booking API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expiresAt","user"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - GET /sessions/current, DELETE /sessions/current: report or revoke the caller's
//     session. Tokens are read from `Authorization: Bearer`, `X-Session-Token`, or
//     the session cookie.
//   - GET /bookings[?userId=&roomId=], POST /bookings, GET/PUT/DELETE /bookings/{id}:
//     booking management exchanging the `bookingDTO` payload defined in
//     booking_handler.go. PUT merges the supplied fields into the stored booking.
//     Create and update responses carry an advisory `conflict` report; when the
//     server rejects conflicts the report comes back with 409.
//   - POST /bookings/check: conflict pre-check returning
//     {"hasConflict","outsideRoomHours","conflictingEvents"}.
//   - GET /bookings/{id}/occurrences and GET /calendar?from=&to=[&roomId=]: expanded
//     recurrence dates.
//   - GET /rooms, GET /rooms/{id}: room catalog available to any authenticated
//     principal. POST /rooms, PUT/DELETE /rooms/{id} require admin privileges.
//   - GET /rooms/{id}/calendar.ics and GET /rooms/{id}/calendar.xlsx[?from=&to=]:
//     downloadable room calendars.
//   - GET/POST /users, GET/PUT/DELETE /users/{id}: administrator controlled user
//     management exchanging the `userDTO` payload defined in user_handler.go.
//   - GET /healthz: unauthenticated liveness probe.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
