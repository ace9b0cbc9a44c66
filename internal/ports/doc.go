// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [ForumClient]: Fetches posts, comments and inbox messages; posts and removes comments
//   - [PairRepository]: Persists and loads the tracked pair store
//   - [Logger]: Structured logging abstraction
//   - [HTTPDoer]: Request sender used by the Reddit adapter
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement these interfaces
// with concrete implementations (Reddit REST, file system, zerolog).
package ports
