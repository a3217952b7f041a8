package wire

// Kind tags the variant a decoded packet carries.
type Kind uint8

const (
	KindUnknown Kind = 0

	KindConnectionRequest  Kind = 1
	KindConnectionDenied   Kind = 2
	KindChallenge          Kind = 3
	KindChallengeResponse  Kind = 4
	KindConnectionAccepted Kind = 5

	KindGameState  Kind = 10
	KindInputFrame Kind = 11

	KindDisconnect Kind = 20

	KindPause  Kind = 30
	KindResume Kind = 31

	KindClock         Kind = 40
	KindClockResponse Kind = 41
)

func (k Kind) String() string {
	switch k {
	case KindConnectionRequest:
		return "ConnectionRequest"
	case KindConnectionDenied:
		return "ConnectionDenied"
	case KindChallenge:
		return "Challenge"
	case KindChallengeResponse:
		return "ChallengeResponse"
	case KindConnectionAccepted:
		return "ConnectionAccepted"
	case KindGameState:
		return "GameState"
	case KindInputFrame:
		return "InputFrame"
	case KindDisconnect:
		return "Disconnect"
	case KindPause:
		return "Pause"
	case KindResume:
		return "Resume"
	case KindClock:
		return "Clock"
	case KindClockResponse:
		return "ClockResponse"
	default:
		return "Unknown"
	}
}
