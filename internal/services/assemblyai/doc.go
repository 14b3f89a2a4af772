// Package assemblyai implements the transcription collaborator against the
// AssemblyAI v2 REST API: the audio file is uploaded, a diarized transcript
// job is submitted, and the job is polled with exponential backoff until it
// completes or reports an error.
package assemblyai
