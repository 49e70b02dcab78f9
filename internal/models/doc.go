// Package models defines domain entities and persistence interfaces for the finport statement importer.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs passed between the importer stages and the store
//   - [CandidateTransaction] : A normalized, fingerprinted row eligible for persistence
//   - [Transaction] : A stored transaction with its import back-reference
//   - [Category] : A per-user spending or income category
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [ImportJob] : One import attempt, tracking status, row count and failure message
//
// Persistent entities implement the Model interface providing ID generation, timestamps, and validation.
package models
