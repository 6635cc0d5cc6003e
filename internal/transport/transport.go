package transport

import (
  "context"
  "errors"
  "fmt"
)

// Error codes the router and verification machine pattern-match on.
const (
  CodeThreadNotFound  = "thread_not_found"
  CodeUserUnreachable = "user_unreachable"
  CodeBadRequest      = "bad_request"
  CodeUnavailable     = "unavailable"
)

// Error is a transport failure with a machine-readable reason.
type Error struct {
  Code    string
  Message string
}

func (e *Error) Error() string {
  return fmt.Sprintf("transport: %s (%s)", e.Message, e.Code)
}

func IsThreadNotFound(err error) bool {
  var te *Error
  return errors.As(err, &te) && te.Code == CodeThreadNotFound
}

// MediaKind is the closed set of relayed content types. Anything the
// platform sends outside this set is reported as unsupported and
// dropped, never forwarded blind.
type MediaKind string

const (
  KindText      MediaKind = "text"
  KindPhoto     MediaKind = "photo"
  KindSticker   MediaKind = "sticker"
  KindVideo     MediaKind = "video"
  KindDocument  MediaKind = "document"
  KindAudio     MediaKind = "audio"
  KindVoice     MediaKind = "voice"
  KindAnimation MediaKind = "animation"
)

type UnsupportedKindError struct {
  Kind string
}

func (e *UnsupportedKindError) Error() string {
  return fmt.Sprintf("unsupported media kind %q", e.Kind)
}

// User identifies an end-user on the platform. The numeric ID is the
// sole identity key; the display fields are re-labeled on contact.
type User struct {
  ID        int64  `json:"id"`
  FirstName string `json:"first_name"`
  LastName  string `json:"last_name"`
  Username  string `json:"username"`
}

// Message is the transport's handle for a delivered message.
type Message struct {
  MessageID int64 `json:"message_id"`
}

type SendRequest struct {
  ChatID    int64
  ThreadID  int64  // 0 means no thread targeting
  Text      string
  Kind      MediaKind
  FileID    string // platform media handle for non-text kinds
  Caption   string
  ReplyToID int64
  Silent    bool
  Actions   []Action // inline affordances, encoded by the client
  PNG       []byte   // raw image payload for SendMedia with KindPhoto
}

// Action is a single inline affordance with an opaque callback
// payload round-tripped by the platform.
type Action struct {
  Label string `json:"label"`
  Data  string `json:"data"`
}

// Messenger is the consumed chat-platform capability. Every call must
// be bounded by the context; implementations translate vendor errors
// into *Error with one of the codes above.
type Messenger interface {
  SendMessage(ctx context.Context, req SendRequest) (*Message, error)
  SendMedia(ctx context.Context, req SendRequest) (*Message, error)
  CreateThread(ctx context.Context, chatID int64, title string) (int64, error)
  CloseThread(ctx context.Context, chatID, threadID int64) error
  PinMessage(ctx context.Context, chatID, messageID int64) error
}
