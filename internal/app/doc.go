// Package app contains the core application logic. It defines the main App
// struct, its configuration, the services offered to action modules, and
// the primary execution lifecycle, decoupled from any specific entrypoint.
package app
