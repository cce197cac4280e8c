// Package logger wraps zap with a global sugared console logger and
// context helpers (ToContext, FromContext, WithName, WithKV).
//
// Every step of the updater receives a context and logs through it, so the
// step name travels with the messages.
package logger
