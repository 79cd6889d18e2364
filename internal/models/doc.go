// Package models defines the values that flow between the settings store, the polling session and the UI.
//
//   - [Settings] : user-tunable polling intervals, grace period and album display mode
//   - [Snapshot] : one decoded "currently playing" response, with the raw body kept for pass-through
//   - [Update] : a discrete state-update event delivered to the presenter
//   - [State] : the closed set of UI states an [Update] can carry
package models
