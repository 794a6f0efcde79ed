// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package person manages the lifecycle of Person records.
//
// # Hooks
//
// Independent concerns attach to lifecycle transitions by implementing one or
// more of the stage interfaces:
//   - Validator - inspects a Request before anything is written
//   - Preparer - mutates a Request in place before persistence
//   - IdentifierPreparer - normalizes an ID before a targeted lookup
//   - Processor - observes the committed Person
//
// Hooks are added to a Registry in the order they must run. The Engine seals
// the registry on construction, after which it is shared read-only by every
// call.
//
// # Engine
//
// Engine runs Create, Read, Update and Delete as short pipelines with a single
// transaction each. Validation and preparation finish before a transaction is
// opened, so hashing never holds a database connection.
package person
