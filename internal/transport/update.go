package transport

// Update is one platform event delivered to the webhook. Exactly one
// of Message / Callback is set.
type Update struct {
  UpdateID int64            `json:"update_id"`
  Message  *IncomingMessage `json:"message,omitempty"`
  Callback *CallbackQuery   `json:"callback_query,omitempty"`
}

type IncomingMessage struct {
  MessageID int64            `json:"message_id"`
  ChatID    int64            `json:"chat_id"`
  ThreadID  int64            `json:"thread_id,omitempty"`
  From      User             `json:"from"`
  Kind      string           `json:"kind"`
  Text      string           `json:"text,omitempty"`
  Caption   string           `json:"caption,omitempty"`
  FileID    string           `json:"file_id,omitempty"`
  ReplyTo   *IncomingMessage `json:"reply_to,omitempty"`
}

type CallbackQuery struct {
  CallbackID string `json:"callback_id"`
  From       User   `json:"from"`
  ChatID     int64  `json:"chat_id"`
  MessageID  int64  `json:"message_id"`
  Data       string `json:"data"`
}
