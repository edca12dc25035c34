// Package audio decodes synthesized WAV audio and plays it through a single
// Output. OtoOutput drives the sound card with oto/v3; MockOutput is a
// scripted stand-in for tests and headless runs.
package audio
