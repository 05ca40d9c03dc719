// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside agentcrew.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Exchange core.Message values so tool calls look the same for every vendor
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI and compatible endpoints, Anthropic) implement the Model
// interface from this package so agents stay decoupled from vendor SDKs.
// WithRetry adds exponential backoff around any Model.
package model
