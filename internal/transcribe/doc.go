// Package transcribe implements the batch transcription engine: a periodic
// drain of the chunk queue guarded against overlapping runs, PCM
// conversion and padding, inference through the speech engine, non-speech
// segment filtering, and reconstruction of absolute wall-clock timestamps
// from model-relative offsets.
package transcribe
