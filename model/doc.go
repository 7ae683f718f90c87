// Package model defines the provider‑agnostic abstractions and concrete
// helpers for calling language models from classifier adapters.
//
// Core goals:
//   - Keep a single channel based Generate contract for every provider
//   - Carry an optional JSON Schema so providers can request structured output
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (classifiers, runners) remain decoupled from vendor SDKs.
package model
