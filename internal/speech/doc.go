// Package speech defines the inference engine boundary. The pipeline only
// depends on the Engine interface here; the whisper.cpp FFI binding lives
// in the whispercpp subpackage so nothing else references it directly.
package speech
