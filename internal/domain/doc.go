// Package domain contains the core domain entities and value objects for threadmirror.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [Post]: A top-level submission in a watched community
//   - [Comment]: A comment, including mirror comments and replies to them
//   - [Message]: An inbox notification
//   - [TrackedPair]: The association between a source post and its mirror comment
//   - [PairStore]: The bounded, ordered collection of tracked pairs
//
// # Design Principles
//
// Domain entities are:
//   - Immutable snapshots of remote objects ("refresh" means re-fetch by id)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
