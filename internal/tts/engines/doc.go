// Package engines implements tts.Synthesizer on top of external speech
// programs: gTTS (online, rendered to PCM through ffmpeg and played with
// the audio package) and espeak-ng (offline, plays directly).
package engines
