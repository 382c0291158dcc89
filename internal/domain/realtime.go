package domain

// Upgrade switches a conversation to a richer transport.
// Realtime is currently the only kind.
type Upgrade struct {
	Realtime *RealtimeChannel
}

// RealtimeChannel connects a caller to a live audio session. The session
// closes Events when it ends; sending CmdStopSession asks it to end.
type RealtimeChannel struct {
	Events   <-chan RealtimeEvent
	Commands chan<- RealtimeCommand
}

type RealtimeEventKind string

const (
	EventSessionReady             RealtimeEventKind = "session_ready"
	EventAudioData                RealtimeEventKind = "audio_data"
	EventAudioTranscript          RealtimeEventKind = "audio_transcript"
	EventAudioTranscriptCompleted RealtimeEventKind = "audio_transcript_completed"
	EventUserTranscriptCompleted  RealtimeEventKind = "user_transcript_completed"
	EventSpeechStarted            RealtimeEventKind = "speech_started"
	EventSpeechStopped            RealtimeEventKind = "speech_stopped"
	EventResponseCompleted        RealtimeEventKind = "response_completed"
	EventFunctionCallRequest      RealtimeEventKind = "function_call_request"
	EventError                    RealtimeEventKind = "error"
)

// RealtimeEvent flows from the session to the caller. Only the fields
// relevant to Kind are set. Audio is PCM16.
type RealtimeEvent struct {
	Kind       RealtimeEventKind
	Audio      []byte
	Transcript string
	ItemID     string
	Name       string
	CallID     string
	Arguments  string
	Message    string
}

type RealtimeCommandKind string

const (
	CmdStopSession            RealtimeCommandKind = "stop_session"
	CmdSendAudio              RealtimeCommandKind = "send_audio"
	CmdSendText               RealtimeCommandKind = "send_text"
	CmdInterrupt              RealtimeCommandKind = "interrupt"
	CmdUpdateSessionConfig    RealtimeCommandKind = "update_session_config"
	CmdCreateGreetingResponse RealtimeCommandKind = "create_greeting_response"
	CmdSendFunctionCallResult RealtimeCommandKind = "send_function_call_result"
)

// RealtimeCommand flows from the caller to the session.
type RealtimeCommand struct {
	Kind               RealtimeCommandKind
	Audio              []byte
	Text               string
	Voice              string
	TranscriptionModel string
	CallID             string
	Output             string
}
