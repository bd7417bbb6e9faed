// Package models defines the core domain models for gatherly.
//
// # Records
//
// The persisted records mirror the document collections the engine reads:
//   - Event: a planned gathering with locations, invites, an optional recurrence
//     rule and a cost distribution
//   - Friend: one directional friendship edge (userId -> friendId)
//   - FriendGroup: a user-owned, colored set of friend ids
//   - Budget: one user's spending for one calendar month
//   - Notification: a typed message for one user
//   - Chat and ChatMessage: the message thread of an event
//   - EventTemplate: reusable defaults for new events
//   - Preferences: per-user language, notification and calendar settings
//
// # Design Principles
//
//  1. **Normalized time**: every timestamp is a time.Time by the time it reaches this
//     package; storage adapters convert store-specific representations.
//  2. **Explicit asymmetry**: friendship is two independent edges, never inferred.
//  3. **Typed payloads**: notification data is a tagged union keyed by type.
//  4. **IDs, not pointers**: relationships use ID strings.
package models
